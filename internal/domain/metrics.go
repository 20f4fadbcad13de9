package domain

import "time"

// PredictionRecord is one entry of the append-only prediction history.
type PredictionRecord struct {
	ID             string
	Title          string
	Predicted      []string
	GroundTruth    []string
	HasGroundTruth bool
	Backend        ClassifierType
	RecordedAt     time.Time
}

// OverallMetrics holds the aggregate quality figures.
type OverallMetrics struct {
	MicroF1              float64 `json:"micro_f1_score"`
	Precision            float64 `json:"precision"`
	Recall               float64 `json:"recall"`
	OverallAccuracy      float64 `json:"overall_accuracy"`
	TotalSamples         int     `json:"total_samples"`
	CorrectPredictions   int     `json:"correct_predictions"`
	IncorrectPredictions int     `json:"incorrect_predictions"`
}

// ConfusionSummary holds the micro-averaged confusion counts.
type ConfusionSummary struct {
	CorrectPredictions int     `json:"correct_predictions"`
	FalsePositives     int     `json:"false_positives"`
	FalseNegatives     int     `json:"false_negatives"`
	TotalPredictions   int     `json:"total_predictions"`
	Accuracy           float64 `json:"accuracy"`
}

// MetricsSnapshot is a point-in-time view over the prediction history.
type MetricsSnapshot struct {
	Overall     OverallMetrics   `json:"overall_metrics"`
	Confusion   ConfusionSummary `json:"overall_confusion_matrix"`
	Labels      []string         `json:"labels"`
	LastUpdated time.Time        `json:"last_updated"`
	HasData     bool             `json:"has_data"`
}

// EmptySnapshot is the snapshot reported when no predictions were recorded.
func EmptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{Labels: []string{}}
}
