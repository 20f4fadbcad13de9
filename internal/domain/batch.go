package domain

import "time"

// BatchRecord is one data row of a batch run, addressed by its 0-based position.
type BatchRecord struct {
	Index    int
	Title    string
	Abstract string
	Labels   []LabelScore
	Err      error
}

// Failed reports whether the row could not be classified.
func (r BatchRecord) Failed() bool {
	return r.Err != nil
}

// RowFailure describes why a single row was not classified.
type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// BatchOutcome summarizes a finished batch run.
type BatchOutcome struct {
	RunID         string        `json:"run_id"`
	InputName     string        `json:"input_name"`
	TotalRows     int           `json:"processed_rows"`
	SucceededRows int           `json:"succeeded_rows"`
	FailedRows    []RowFailure  `json:"failed_rows"`
	ArtifactName  string        `json:"output_filename"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"-"`
}

// Consistent checks that every row is accounted for exactly once.
func (o BatchOutcome) Consistent() bool {
	return o.SucceededRows+len(o.FailedRows) == o.TotalRows
}
