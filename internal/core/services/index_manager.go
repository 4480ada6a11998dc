package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Polling bounds for asynchronous index operations.
const (
	DefaultDeleteTimeout  = 90 * time.Second
	DefaultDeleteInterval = 5 * time.Second
	DefaultReadyTimeout   = 300 * time.Second
	DefaultReadyInterval  = 10 * time.Second
)

// IndexManager owns the lifecycle of per-document indexes: existence checks,
// creation with readiness polling, deletion with confirmation, and lookup by hash.
type IndexManager struct {
	store driven.VectorStore
	sleep Sleeper
	now   func() time.Time

	deleteTimeout  time.Duration
	deleteInterval time.Duration
	readyTimeout   time.Duration
	readyInterval  time.Duration
}

// IndexManagerOption configures an IndexManager.
type IndexManagerOption func(*IndexManager)

// WithIndexClock replaces the clock and the wait between polls.
func WithIndexClock(now func() time.Time, sleep Sleeper) IndexManagerOption {
	return func(m *IndexManager) {
		if now != nil {
			m.now = now
		}
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithDeletePolling sets how long and how often deletion is polled.
func WithDeletePolling(timeout, interval time.Duration) IndexManagerOption {
	return func(m *IndexManager) {
		m.deleteTimeout = timeout
		m.deleteInterval = interval
	}
}

// WithReadyPolling sets how long and how often readiness is polled.
func WithReadyPolling(timeout, interval time.Duration) IndexManagerOption {
	return func(m *IndexManager) {
		m.readyTimeout = timeout
		m.readyInterval = interval
	}
}

// NewIndexManager creates an index manager over store.
func NewIndexManager(store driven.VectorStore, opts ...IndexManagerOption) *IndexManager {
	m := &IndexManager{
		store:          store,
		sleep:          SleepContext,
		now:            time.Now,
		deleteTimeout:  DefaultDeleteTimeout,
		deleteInterval: DefaultDeleteInterval,
		readyTimeout:   DefaultReadyTimeout,
		readyInterval:  DefaultReadyInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists reports whether any index owned by hash is reachable and holds vectors.
// Candidates that cannot be opened or described are skipped.
func (m *IndexManager) Exists(ctx context.Context, hash domain.DocumentHash) bool {
	names, err := m.store.ListIndexes(ctx)
	if err != nil {
		logger.Warn("listing indexes: %v", err)
		return false
	}

	for _, name := range names {
		if !hash.OwnsIndex(name) {
			continue
		}
		handle, err := m.store.Index(ctx, name)
		if err != nil {
			logger.Warn("opening index %s: %v", name, err)
			continue
		}
		stats, err := handle.Stats(ctx)
		if err != nil {
			logger.Warn("describing index %s: %v", name, err)
			continue
		}
		if stats.TotalVectorCount > 0 {
			logger.Debug("index %s holds %d vectors", name, stats.TotalVectorCount)
			return true
		}
	}
	return false
}

// DeleteIfPresent deletes the named index if it exists and waits for the
// deletion to be visible. It returns whether the index is confirmed gone.
func (m *IndexManager) DeleteIfPresent(ctx context.Context, name string) bool {
	exists, err := m.store.HasIndex(ctx, name)
	if err != nil {
		logger.Warn("checking index %s: %v", name, err)
		return false
	}
	if !exists {
		return true
	}

	logger.Info("index %s already exists, deleting", name)
	if err := m.store.DeleteIndex(ctx, name); err != nil {
		logger.Warn("deleting index %s: %v", name, err)
		return false
	}

	err = m.poll(ctx, m.deleteTimeout, m.deleteInterval, func() bool {
		exists, err := m.store.HasIndex(ctx, name)
		return err == nil && !exists
	})
	if err != nil {
		logger.Warn("index %s still exists after %s", name, m.deleteTimeout)
		return false
	}
	logger.Info("index %s deleted", name)
	return true
}

// CreateAndAwaitReady creates an index and waits until it reports ready.
// Returns domain.ErrIndexTimeout when readiness is not reached in time.
func (m *IndexManager) CreateAndAwaitReady(ctx context.Context, spec domain.IndexSpec) error {
	logger.Info("creating index %s (dimension %d, %s)", spec.Name, spec.Dimension, spec.Metric)
	if err := m.store.CreateIndex(ctx, spec); err != nil {
		return fmt.Errorf("create index %s: %w", spec.Name, err)
	}

	err := m.poll(ctx, m.readyTimeout, m.readyInterval, func() bool {
		desc, err := m.store.DescribeIndex(ctx, spec.Name)
		if err != nil {
			logger.Debug("index %s status check failed: %v", spec.Name, err)
			return false
		}
		return desc.Ready
	})
	if err != nil {
		return fmt.Errorf("index %s: %w", spec.Name, err)
	}
	logger.Info("index %s is ready", spec.Name)
	return nil
}

// Open returns a data-plane handle on the named index.
func (m *IndexManager) Open(ctx context.Context, name string) (driven.IndexHandle, error) {
	handle, err := m.store.Index(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", name, err)
	}
	return handle, nil
}

// LookupByHashPrefix opens the first listed index owned by hash.
// Returns domain.ErrNotProcessed when there is none.
func (m *IndexManager) LookupByHashPrefix(ctx context.Context, hash domain.DocumentHash) (driven.IndexHandle, error) {
	names, err := m.store.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	for _, name := range names {
		if hash.OwnsIndex(name) {
			logger.Debug("found index %s for %s", name, hash)
			return m.Open(ctx, name)
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotProcessed, hash)
}

// poll calls done until it returns true or timeout elapses, waiting interval
// between calls. Returns domain.ErrIndexTimeout on expiry.
func (m *IndexManager) poll(ctx context.Context, timeout, interval time.Duration, done func() bool) error {
	deadline := m.now().Add(timeout)
	for m.now().Before(deadline) {
		if done() {
			return nil
		}
		if err := m.sleep(ctx, interval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %s", domain.ErrIndexTimeout, timeout)
}
