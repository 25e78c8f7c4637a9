package session

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// defaultTracerName is the tracer used for synchronization spans.
const defaultTracerName = "reeldeck/session"

// SyncWork is the unit of work a synchronization performs, typically a
// store load-and-populate.
type SyncWork func(ctx context.Context) (any, error)

// syncRun tracks one in-flight synchronization. Waiters block on done and
// then read result/err, which are written exactly once before close.
type syncRun struct {
	done   chan struct{}
	result any
	err    error
}

// SyncManager deduplicates synchronization attempts per identity:
// at most one load/save sequence runs per identity id at a time.
//
// Policy for concurrent calls on the same identity: await the existing run
// and return its result. Dropping the second call instead would risk a
// caller observing a half-initialized store.
type SyncManager struct {
	mu       sync.Mutex
	inflight map[string]*syncRun

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// SyncManagerOption configures SyncManager behavior.
type SyncManagerOption func(*syncManagerConfig)

type syncManagerConfig struct {
	logger     *slog.Logger
	tracerName string
	metrics    *Metrics
}

// WithSyncLogger sets the logger.
// Default: slog.Default().
func WithSyncLogger(logger *slog.Logger) SyncManagerOption {
	return func(c *syncManagerConfig) {
		c.logger = logger
	}
}

// WithSyncTracerName sets the OpenTelemetry tracer name.
// Default: "reeldeck/session".
func WithSyncTracerName(name string) SyncManagerOption {
	return func(c *syncManagerConfig) {
		c.tracerName = name
	}
}

// WithSyncMetrics attaches session metrics.
func WithSyncMetrics(m *Metrics) SyncManagerOption {
	return func(c *syncManagerConfig) {
		c.metrics = m
	}
}

// NewSyncManager creates a new synchronization manager.
func NewSyncManager(opts ...SyncManagerOption) *SyncManager {
	cfg := &syncManagerConfig{
		logger:     slog.Default(),
		tracerName: defaultTracerName,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &SyncManager{
		inflight: make(map[string]*syncRun),
		logger:   cfg.logger.With("component", "sync_manager"),
		tracer:   otel.Tracer(cfg.tracerName),
		metrics:  cfg.metrics,
	}
}

// ExecuteSync runs work for an identity, guaranteeing at most one
// in-flight synchronization per identity id. If a run is already in
// flight for the id, the call awaits it and returns its result.
func (m *SyncManager) ExecuteSync(ctx context.Context, identityID string, work SyncWork) (any, error) {
	m.mu.Lock()
	if existing, ok := m.inflight[identityID]; ok {
		m.mu.Unlock()

		m.metrics.recordDedup()
		m.logger.Debug("awaiting existing sync", "identity_id", identityID)

		select {
		case <-existing.done:
			return existing.result, existing.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	run := &syncRun{done: make(chan struct{})}
	m.inflight[identityID] = run
	m.mu.Unlock()

	m.metrics.syncStarted()

	sctx, span := m.tracer.Start(ctx, "session.sync",
		trace.WithAttributes(attribute.String("identity.id", identityID)))

	run.result, run.err = work(sctx)

	if run.err != nil {
		span.RecordError(run.err)
		span.SetStatus(codes.Error, run.err.Error())
		m.metrics.recordSync("error")
	} else {
		span.SetStatus(codes.Ok, "")
		m.metrics.recordSync("ok")
	}
	span.End()

	m.metrics.syncFinished()

	m.mu.Lock()
	// ClearUserSync may have replaced the bookkeeping; only remove our own.
	if m.inflight[identityID] == run {
		delete(m.inflight, identityID)
	}
	m.mu.Unlock()

	close(run.done)
	return run.result, run.err
}

// ClearUserSync drops the in-flight bookkeeping for an identity. Called
// when a store's cache is cleared on identity switch so a new sync for a
// different identity is never blocked by a stale marker. An already
// running work function still completes, but later calls start fresh.
func (m *SyncManager) ClearUserSync(identityID string) {
	m.mu.Lock()
	delete(m.inflight, identityID)
	m.mu.Unlock()
}

// InFlight reports whether a synchronization is currently running for the
// identity.
func (m *SyncManager) InFlight(identityID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[identityID]
	return ok
}
