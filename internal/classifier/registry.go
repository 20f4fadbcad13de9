// Package classifier resolves configured backend keys to long-lived classifier instances.
package classifier

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// DefaultWarmupTimeout bounds model loading and endpoint checks during warmup.
const DefaultWarmupTimeout = 5 * time.Minute

// Constructor builds a classifier. It is called at most once per registry.
type Constructor func() (ports.Classifier, error)

// Registry keeps a mapping from classifier types to lazily built instances.
type Registry struct {
	mu            sync.Mutex
	constructors  map[domain.ClassifierType]Constructor
	instances     map[domain.ClassifierType]ports.Classifier
	warmed        map[domain.ClassifierType]bool
	warmupTimeout time.Duration
	logger        *slog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(warmupTimeout time.Duration, logger *slog.Logger) *Registry {
	if warmupTimeout <= 0 {
		warmupTimeout = DefaultWarmupTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		constructors:  map[domain.ClassifierType]Constructor{},
		instances:     map[domain.ClassifierType]ports.Classifier{},
		warmed:        map[domain.ClassifierType]bool{},
		warmupTimeout: warmupTimeout,
		logger:        logger,
	}
}

// Register adds or replaces a constructor. A cached instance of the same type is dropped.
func (r *Registry) Register(t domain.ClassifierType, build Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[t] = build
	delete(r.instances, t)
	delete(r.warmed, t)
}

// Types lists the registered classifier types.
func (r *Registry) Types() []domain.ClassifierType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]domain.ClassifierType, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Resolve returns the instance for key, constructing it on first use.
// Unknown keys and known types without a constructor fail with ErrUnknownClassifierType.
func (r *Registry) Resolve(key string) (ports.Classifier, error) {
	t, err := domain.ParseClassifierType(key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.instances[t]; ok {
		return c, nil
	}
	build, ok := r.constructors[t]
	if !ok {
		return nil, errors.Wrapf(domain.ErrUnknownClassifierType, "%s is not registered", t)
	}
	c, err := build()
	if err != nil {
		return nil, errors.Wrapf(err, "construct %s classifier", t)
	}
	r.instances[t] = c
	r.logger.Debug("classifier constructed", "type", t)
	return c, nil
}

// Lookup returns an already constructed instance without building one.
func (r *Registry) Lookup(t domain.ClassifierType) (ports.Classifier, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.instances[t]
	return c, ok
}

// Warmup resolves key and loads its model or checks its endpoint, bounded by the warmup
// timeout. Once a warmup succeeded, later calls return immediately.
func (r *Registry) Warmup(ctx context.Context, key string) (ports.Classifier, error) {
	c, err := r.Resolve(key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	done := r.warmed[c.Type()]
	r.mu.Unlock()
	if done {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.warmupTimeout)
	defer cancel()

	started := time.Now()
	if err := c.Load(ctx); err != nil {
		return nil, errors.Wrapf(err, "warm up %s", c.Type())
	}

	r.mu.Lock()
	r.warmed[c.Type()] = true
	r.mu.Unlock()
	r.logger.Info("classifier warmed up", "type", c.Type(), "elapsed", time.Since(started))
	return c, nil
}

// Close tears down every constructed instance that holds resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for t, c := range r.instances {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = errors.CombineErrors(errs, errors.Wrapf(err, "close %s", t))
			}
		}
		delete(r.instances, t)
		delete(r.warmed, t)
	}
	return errs
}
