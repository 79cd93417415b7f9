// Package service implements the use cases behind every transport:
// solving into a session, listing and serving its files, and decoding a
// file into viewer geometry.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/aretw0/amrviz/internal/logging"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/observability"
	"github.com/aretw0/amrviz/pkg/ports"
	"github.com/aretw0/amrviz/pkg/session"
	"github.com/aretw0/amrviz/pkg/vtk"
	"github.com/google/uuid"
)

// Event types published to a Notifier.
const (
	EventSolveStarted   = "solve_started"
	EventSolveCompleted = "solve_completed"
	EventSolveFailed    = "solve_failed"
)

// Event describes a change of a session's solve state.
type Event struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	Files     []string `json:"files,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Notifier receives serialized events for live viewers.
type Notifier interface {
	Broadcast(sessionID string, msg string)
}

// Service glues sessions, the artifact store and a solver.
type Service struct {
	sessions  *session.Manager
	artifacts ports.ArtifactStore
	solver    ports.Solver
	metrics   *observability.Metrics
	notifier  Notifier
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithNotifier publishes solve events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// New creates a Service.
func New(sessions *session.Manager, artifacts ports.ArtifactStore, solver ports.Solver, opts ...Option) *Service {
	s := &Service{
		sessions:  sessions,
		artifacts: artifacts,
		solver:    solver,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionOrDefault(id string) string {
	if id == "" {
		return domain.DefaultSessionID
	}
	return id
}

// Solve clears the session's files, runs the solver and records the files
// it produced. The whole sequence holds the session lock, so concurrent
// requests on one session run one after the other.
func (s *Service) Solve(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error) {
	sessionID = sessionOrDefault(sessionID)
	start := time.Now()

	if err := domain.ValidateSessionID(sessionID); err != nil {
		s.observe(params.Problem, observability.OutcomeInvalid, start)
		return nil, err
	}
	params, err := params.Normalize()
	if err != nil {
		s.observe(params.Problem, observability.OutcomeInvalid, start)
		return nil, err
	}

	logger := s.logger.With("session_id", sessionID)
	var result *domain.SolveResult
	err = s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		store := s.sessions.Store()
		sess, err := session.LoadOrCreate(ctx, store, sessionID)
		if err != nil {
			return err
		}
		sess.Begin(params)
		if err := store.Save(ctx, sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}

		logger.Info("Starting new solve request", "params", params.Summary())
		s.notify(Event{Type: EventSolveStarted, SessionID: sessionID})
		if err := s.artifacts.Clear(ctx, sessionID); err != nil {
			return s.fail(ctx, sess, fmt.Errorf("failed to clear storage: %w", err))
		}

		res, err := s.solver.Solve(ctx, sessionID, params)
		if err != nil {
			return s.fail(ctx, sess, err)
		}
		for _, name := range res.Files {
			if _, err := s.artifacts.Stat(ctx, sessionID, name); err != nil {
				return s.fail(ctx, sess, fmt.Errorf("solver reported %s: %w", name, err))
			}
		}

		sess.Complete(res.Files)
		if err := store.Save(ctx, sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		res.SessionID = sessionID
		result = res
		return nil
	})
	if err != nil {
		outcome := observability.OutcomeFailure
		if errors.Is(err, domain.ErrInvalidParams) {
			outcome = observability.OutcomeInvalid
		}
		s.observe(params.Problem, outcome, start)
		s.notify(Event{Type: EventSolveFailed, SessionID: sessionID, Error: err.Error()})
		logger.Error("Error during computation", "error", err)
		return nil, err
	}

	s.observe(params.Problem, observability.OutcomeSuccess, start)
	s.notify(Event{Type: EventSolveCompleted, SessionID: sessionID, Files: result.Files})
	logger.Info("Generated files", "files", result.Files, "duration", time.Since(start))
	return result, nil
}

// fail records err on the session and returns it. The files cleared
// before the solve stay cleared.
func (s *Service) fail(ctx context.Context, sess *domain.Session, err error) error {
	sess.Fail(err)
	if saveErr := s.sessions.Store().Save(context.WithoutCancel(ctx), sess); saveErr != nil {
		s.logger.Warn("Failed to record solve failure", "session_id", sess.ID, "err", saveErr)
	}
	return err
}

func (s *Service) observe(problem domain.ProblemType, outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSolve(problem, outcome, time.Since(start))
	}
}

func (s *Service) notify(ev Event) {
	if s.notifier == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.notifier.Broadcast(ev.SessionID, string(data))
}

// CreateSession starts an idle session under a generated ID.
func (s *Service) CreateSession(ctx context.Context) (*domain.Session, error) {
	return s.sessions.LoadOrCreate(ctx, uuid.NewString())
}

// Clear empties the session's storage namespace.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	sessionID = sessionOrDefault(sessionID)
	return s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s.logger.Info("Cleaning storage directory", "session_id", sessionID)
		return s.artifacts.Clear(ctx, sessionID)
	})
}

// DeleteSession clears the files of the session and forgets its record.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return err
	}
	return s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if err := s.artifacts.Clear(ctx, sessionID); err != nil {
			return err
		}
		s.logger.Info("Session deleted", "session_id", sessionID)
		return s.sessions.Store().Delete(ctx, sessionID)
	})
}

// Files lists the descriptor files currently stored for the session.
func (s *Service) Files(ctx context.Context, sessionID string) ([]string, error) {
	return s.artifacts.List(ctx, sessionOrDefault(sessionID))
}

// Open returns the content of a stored file. Files are replaced
// atomically, so a reader sees either a whole file or ErrFileNotFound.
func (s *Service) Open(ctx context.Context, sessionID, name string) (io.ReadCloser, fs.FileInfo, error) {
	sessionID = sessionOrDefault(sessionID)
	f, err := s.artifacts.Open(ctx, sessionID, name)
	if s.metrics != nil {
		s.metrics.ObserveFile(err == nil)
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// Session returns the session record.
func (s *Service) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.sessions.Load(ctx, sessionOrDefault(sessionID))
}

// Sessions lists the known session IDs.
func (s *Service) Sessions(ctx context.Context) ([]string, error) {
	return s.sessions.List(ctx)
}

// Geometry is what a 3D viewer needs to draw one file.
type Geometry struct {
	File         string      `json:"file"`
	Scalar       string      `json:"scalar,omitempty"`
	Range        [2]float64  `json:"range"`
	Bounds       [6]float64  `json:"bounds"`
	Points       []float64   `json:"points"`
	Connectivity []int       `json:"connectivity"`
	Offsets      []int       `json:"offsets"`
	Types        []int       `json:"types"`
	PointData    []vtk.Field `json:"point_data,omitempty"`
	CellData     []vtk.Field `json:"cell_data,omitempty"`
}

// NumPoints returns the number of points.
func (g *Geometry) NumPoints() int { return len(g.Points) / 3 }

// Geometry reads name and selects scalar as the active array. An empty
// scalar selects "solution" when present, then the first point array.
func (s *Service) Geometry(ctx context.Context, sessionID, name, scalar string) (*Geometry, error) {
	sessionID = sessionOrDefault(sessionID)
	if _, err := s.artifacts.Stat(ctx, sessionID, name); err != nil {
		return nil, err
	}
	fsys, err := s.artifacts.FS(sessionID)
	if err != nil {
		return nil, err
	}
	g, err := vtk.Open(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, fmt.Errorf("%w: %v", domain.ErrFileNotFound, err)
		}
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return newGeometry(name, g, scalar)
}

func newGeometry(name string, g *vtk.Grid, scalar string) (*Geometry, error) {
	out := &Geometry{
		File:         name,
		Bounds:       g.Bounds(),
		Points:       g.Points,
		Connectivity: g.Connectivity,
		Offsets:      g.Offsets,
		Types:        make([]int, len(g.Types)),
		PointData:    g.PointData,
		CellData:     g.CellData,
	}
	for i, t := range g.Types {
		out.Types[i] = int(t)
	}
	if scalar == "" {
		if _, ok := g.Scalars("solution"); ok {
			scalar = "solution"
		} else if len(g.PointData) > 0 {
			scalar = g.PointData[0].Name
		}
	}
	if scalar == "" {
		return out, nil
	}
	f, ok := g.Scalars(scalar)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no array %q", domain.ErrInvalidParams, name, scalar)
	}
	out.Scalar = scalar
	out.Range[0], out.Range[1] = f.Range()
	return out, nil
}
