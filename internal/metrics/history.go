package metrics

import (
	"context"
	"sync"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// MemoryHistory is an in-process append-only prediction log.
type MemoryHistory struct {
	mu      sync.RWMutex
	records []domain.PredictionRecord
}

var _ ports.PredictionHistory = (*MemoryHistory)(nil)

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) Append(ctx context.Context, record domain.PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.Predicted = cloneStrings(record.Predicted)
	record.GroundTruth = cloneStrings(record.GroundTruth)

	h.mu.Lock()
	h.records = append(h.records, record)
	h.mu.Unlock()
	return nil
}

// List returns a copy; later appends do not affect it.
func (h *MemoryHistory) List(ctx context.Context) ([]domain.PredictionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.PredictionRecord, len(h.records))
	for i, r := range h.records {
		r.Predicted = cloneStrings(r.Predicted)
		r.GroundTruth = cloneStrings(r.GroundTruth)
		out[i] = r
	}
	return out, nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
