package amrviz

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/aretw0/amrviz/internal/logging"
	"github.com/aretw0/amrviz/internal/storage"
	"github.com/aretw0/amrviz/pkg/adapters/memory"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/observability"
	"github.com/aretw0/amrviz/pkg/obstacle"
	"github.com/aretw0/amrviz/pkg/pipeline"
	"github.com/aretw0/amrviz/pkg/ports"
	"github.com/aretw0/amrviz/pkg/service"
	"github.com/aretw0/amrviz/pkg/session"
)

// Engine is the high-level entry point for the library.
// It wires storage, sessions and a solver into a service.Service.
type Engine struct {
	svc       *service.Service
	artifacts *storage.Store
	sessions  *session.Manager

	store         ports.SessionStore
	locker        ports.DistributedLocker
	solver        ports.Solver
	solverFactory func(ports.ArtifactStore) (ports.Solver, error)
	solverOpts    *obstacle.Options
	lockTTL       time.Duration
	metrics       *observability.Metrics
	notifier      service.Notifier
	logger        *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed session locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL bounds how long a distributed session lock may be held.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithSolver replaces the native solver.
func WithSolver(solver ports.Solver) Option {
	return func(e *Engine) {
		e.solver = solver
	}
}

// WithSolverFactory builds the solver once the artifact store exists,
// for solvers that write into it.
func WithSolverFactory(factory func(ports.ArtifactStore) (ports.Solver, error)) Option {
	return func(e *Engine) {
		e.solverFactory = factory
	}
}

// WithSolverOptions tunes the native projected iteration.
func WithSolverOptions(opts obstacle.Options) Option {
	return func(e *Engine) {
		e.solverOpts = &opts
	}
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithNotifier publishes solve events.
func WithNotifier(n service.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// New initializes an Engine whose files live under storageDir.
func New(storageDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	artifacts, err := storage.New(storageDir, storage.WithLogger(eng.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	eng.artifacts = artifacts

	switch {
	case eng.solver != nil:
	case eng.solverFactory != nil:
		if eng.solver, err = eng.solverFactory(artifacts); err != nil {
			return nil, err
		}
	default:
		runnerOpts := []pipeline.Option{pipeline.WithLogger(eng.logger)}
		if eng.metrics != nil {
			runnerOpts = append(runnerOpts, pipeline.WithObserver(eng.metrics))
		}
		if eng.solverOpts != nil {
			runnerOpts = append(runnerOpts, pipeline.WithSolverOptions(*eng.solverOpts))
		}
		eng.solver = pipeline.NewNativeSolver(pipeline.NewRunner(runnerOpts...), artifacts)
	}

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	svcOpts := []service.Option{service.WithLogger(eng.logger)}
	if eng.metrics != nil {
		svcOpts = append(svcOpts, service.WithMetrics(eng.metrics))
	}
	if eng.notifier != nil {
		svcOpts = append(svcOpts, service.WithNotifier(eng.notifier))
	}
	eng.svc = service.New(eng.sessions, artifacts, eng.solver, svcOpts...)
	return eng, nil
}

// Service returns the use-case layer, for transports.
func (e *Engine) Service() *service.Service {
	return e.svc
}

// StorageDir returns the absolute storage root.
func (e *Engine) StorageDir() string {
	return e.artifacts.Root()
}

// Solve runs one solve request in sessionID ("" selects the default session).
func (e *Engine) Solve(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error) {
	return e.svc.Solve(ctx, sessionID, params)
}

// Files lists the descriptor files of the session.
func (e *Engine) Files(ctx context.Context, sessionID string) ([]string, error) {
	return e.svc.Files(ctx, sessionID)
}

// Open returns the content of one stored file.
func (e *Engine) Open(ctx context.Context, sessionID, name string) (io.ReadCloser, fs.FileInfo, error) {
	return e.svc.Open(ctx, sessionID, name)
}

// Geometry decodes one stored file for a viewer.
func (e *Engine) Geometry(ctx context.Context, sessionID, name, scalar string) (*service.Geometry, error) {
	return e.svc.Geometry(ctx, sessionID, name, scalar)
}

// Clear empties the session storage.
func (e *Engine) Clear(ctx context.Context, sessionID string) error {
	return e.svc.Clear(ctx, sessionID)
}

// Reset clears every session directory under the storage root and removes
// the loose files next to them.
func (e *Engine) Reset(ctx context.Context) error {
	ids, err := e.artifacts.Sessions()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.svc.Clear(ctx, id); err != nil {
			return err
		}
	}
	stray, err := e.artifacts.ClearRoot(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("Storage cleared", "root", e.artifacts.Root(), "sessions", len(ids), "stray_files", stray)
	return nil
}
