package domain

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ClassifierType enumerates the interchangeable classification backends.
type ClassifierType string

const (
	// ClassifierZeroShot scores every candidate label with a local model and keeps those above a threshold.
	ClassifierZeroShot ClassifierType = "zero_shot"
	// ClassifierFewShot prompts a generation endpoint with labelled exemplars.
	ClassifierFewShot ClassifierType = "few_shot"
)

// ClassifierTypes lists the supported backends in a stable order.
func ClassifierTypes() []ClassifierType {
	return []ClassifierType{ClassifierZeroShot, ClassifierFewShot}
}

// ParseClassifierType converts a configuration key to a ClassifierType.
// Unknown keys fail; there is no silent fallback.
func ParseClassifierType(s string) (ClassifierType, error) {
	key := ClassifierType(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case ClassifierZeroShot, ClassifierFewShot:
		return key, nil
	}
	err := errors.Wrapf(ErrUnknownClassifierType, "%q", s)
	return "", errors.WithHintf(err, "supported classifier types: %s, %s", ClassifierZeroShot, ClassifierFewShot)
}

func (t ClassifierType) String() string {
	return string(t)
}

// LabelScore is one predicted category with its confidence.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ClassificationResult is the normalized answer for a single article.
type ClassificationResult struct {
	Title    string         `json:"title"`
	Labels   []LabelScore   `json:"labels"`
	Backend  ClassifierType `json:"backend"`
	Duration time.Duration  `json:"-"`
}

// LabelNames returns the labels in result order.
func (r ClassificationResult) LabelNames() []string {
	names := make([]string, 0, len(r.Labels))
	for _, l := range r.Labels {
		names = append(names, l.Label)
	}
	return names
}

// DefaultLabels is the category vocabulary used when configuration does not override it.
var DefaultLabels = []string{"Cardiovascular", "Neurological", "Hepatorenal", "Oncological"}

// Vocabulary is the closed set of labels a backend may emit.
type Vocabulary struct {
	labels []string
	index  map[string]string
}

// NewVocabulary drops blanks and case-insensitive duplicates, keeping first spelling.
func NewVocabulary(labels []string) Vocabulary {
	v := Vocabulary{index: make(map[string]string, len(labels))}
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, ok := v.index[key]; ok {
			continue
		}
		v.index[key] = label
		v.labels = append(v.labels, label)
	}
	return v
}

// Labels returns a copy of the vocabulary in configured order.
func (v Vocabulary) Labels() []string {
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

// Len is the number of labels.
func (v Vocabulary) Len() int {
	return len(v.labels)
}

// Match maps a token to its canonical label, ignoring case and surrounding space.
func (v Vocabulary) Match(token string) (string, bool) {
	label, ok := v.index[strings.ToLower(strings.TrimSpace(token))]
	return label, ok
}
