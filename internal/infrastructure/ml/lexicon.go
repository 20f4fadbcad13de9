package ml

import (
	"context"
	"strings"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// DefaultLexicon maps the default vocabulary to lowercase keyword stems.
var DefaultLexicon = map[string][]string{
	"Cardiovascular": {
		"heart", "cardiac", "cardio", "coronary", "hypertens", "blood pressure", "myocard",
		"arrhythm", "atrial", "ventricular", "vascular", "arter", "tachycard", "echocardiograph",
	},
	"Neurological": {
		"brain", "neuro", "cerebr", "epilep", "seizure", "parkinson", "alzheimer",
		"dementia", "nerve", "spinal", "cognitive", "dopamine", "demyelinat", "migraine",
	},
	"Hepatorenal": {
		"liver", "hepat", "renal", "kidney", "nephr", "dialysis", "cirrhosis", "urinary", "glomerul",
	},
	"Oncological": {
		"cancer", "tumor", "tumour", "oncolog", "carcinoma", "malignan", "metasta", "chemotherap",
		"lymphoma", "leukemia", "brca", "neoplas",
	},
}

// LexiconModel is an in-process scoring model that counts keyword hits per label.
// A label scores hits/saturation, capped at 1. It needs no network and is deterministic.
type LexiconModel struct {
	lexicon    map[string][]string
	saturation int
}

var _ ports.ScoringModel = (*LexiconModel)(nil)

// NewLexiconModel builds the model; nil lexicon selects DefaultLexicon, saturation defaults to 3.
func NewLexiconModel(lexicon map[string][]string, saturation int) *LexiconModel {
	if len(lexicon) == 0 {
		lexicon = DefaultLexicon
	}
	if saturation <= 0 {
		saturation = 3
	}
	normalized := make(map[string][]string, len(lexicon))
	for label, words := range lexicon {
		key := strings.ToLower(strings.TrimSpace(label))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				normalized[key] = append(normalized[key], w)
			}
		}
	}
	return &LexiconModel{lexicon: normalized, saturation: saturation}
}

func (m *LexiconModel) Load(ctx context.Context) error {
	return ctx.Err()
}

// Score returns one entry per requested label, in request order.
func (m *LexiconModel) Score(ctx context.Context, text string, labels []string) ([]domain.LabelScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower := strings.ToLower(text)

	scores := make([]domain.LabelScore, 0, len(labels))
	for _, label := range labels {
		hits := 0
		for _, stem := range m.lexicon[strings.ToLower(label)] {
			hits += strings.Count(lower, stem)
		}
		score := float64(hits) / float64(m.saturation)
		if score > 1 {
			score = 1
		}
		scores = append(scores, domain.LabelScore{Label: label, Score: score})
	}
	return scores, nil
}

func (m *LexiconModel) Ping(ctx context.Context) error {
	return ctx.Err()
}
