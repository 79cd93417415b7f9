package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/amrviz/internal/storage"
	"github.com/aretw0/amrviz/pkg/adapters/memory"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/observability"
	"github.com/aretw0/amrviz/pkg/pipeline"
	"github.com/aretw0/amrviz/pkg/ports"
	"github.com/aretw0/amrviz/pkg/service"
	"github.com/aretw0/amrviz/pkg/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *service.Service
	store   *storage.Store
	metrics *observability.Metrics
}

func newFixture(t *testing.T, solver func(*storage.Store) ports.Solver) *fixture {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	svc := service.New(session.NewManager(memory.NewStore()), store, solver(store), service.WithMetrics(metrics))
	return &fixture{svc: svc, store: store, metrics: metrics}
}

func native(store *storage.Store) ports.Solver {
	return pipeline.NewNativeSolver(pipeline.NewRunner(), store)
}

func params(iterations int) domain.SolveParams {
	p := domain.DefaultSolveParams()
	p.InitTriHeight = 0.5
	p.MaxIterations = iterations
	return p
}

func writeFile(t *testing.T, ctx context.Context, store *storage.Store, sessionID, name string) {
	t.Helper()
	w, err := store.Create(ctx, sessionID, name)
	require.NoError(t, err)
	_, _ = io.WriteString(w, "x")
	require.NoError(t, w.Close())
}

func TestService_SolveRecordsSession(t *testing.T) {
	f := newFixture(t, native)
	ctx := context.Background()

	res, err := f.svc.Solve(ctx, "", params(2))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSessionID, res.SessionID)
	assert.Equal(t, []string{"solution_0.pvd", "solution_1.pvd"}, res.Files)

	sess, err := f.svc.Session(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, sess.Status)
	assert.Equal(t, res.Files, sess.Files)
	require.NotNil(t, sess.Params)
	assert.Equal(t, 2, sess.Params.MaxIterations)

	files, err := f.svc.Files(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, res.Files, files)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SolveRequests.WithLabelValues("Sphere", observability.OutcomeSuccess)))
}

func TestService_SolveClearsPreviousFiles(t *testing.T) {
	f := newFixture(t, native)
	ctx := context.Background()

	writeFile(t, ctx, f.store, "s1", "solution_7.pvd")

	_, err := f.svc.Solve(ctx, "s1", params(1))
	require.NoError(t, err)

	files, err := f.svc.Files(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"solution_0.pvd"}, files)
}

func TestService_SolverFailure(t *testing.T) {
	boom := errors.New("solver exploded")
	f := newFixture(t, func(*storage.Store) ports.Solver {
		return ports.SolverFunc(func(ctx context.Context, id string, p domain.SolveParams) (*domain.SolveResult, error) {
			return nil, boom
		})
	})
	ctx := context.Background()
	writeFile(t, ctx, f.store, "s1", "solution_0.pvd")

	_, err := f.svc.Solve(ctx, "s1", params(1))
	assert.ErrorIs(t, err, boom)

	sess, err := f.svc.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, sess.Status)
	assert.Equal(t, "solver exploded", sess.Error)

	files, err := f.svc.Files(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, files, "no partial results survive a failed solve")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SolveRequests.WithLabelValues("Sphere", observability.OutcomeFailure)))
}

func TestService_SolverReportsMissingFile(t *testing.T) {
	f := newFixture(t, func(*storage.Store) ports.Solver {
		return ports.SolverFunc(func(ctx context.Context, id string, p domain.SolveParams) (*domain.SolveResult, error) {
			return &domain.SolveResult{Files: []string{"solution_0.pvd"}}, nil
		})
	})
	_, err := f.svc.Solve(context.Background(), "s1", params(1))
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestService_InvalidInput(t *testing.T) {
	called := false
	f := newFixture(t, func(*storage.Store) ports.Solver {
		return ports.SolverFunc(func(ctx context.Context, id string, p domain.SolveParams) (*domain.SolveResult, error) {
			called = true
			return &domain.SolveResult{}, nil
		})
	})
	ctx := context.Background()

	bad := params(1)
	bad.Bracket = []float64{0.9, 0.1}
	_, err := f.svc.Solve(ctx, "s1", bad)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = f.svc.Solve(ctx, "../etc", params(1))
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	assert.False(t, called)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SolveRequests.WithLabelValues("Sphere", observability.OutcomeInvalid)))
}

func TestService_ExplicitZerosAreRejected(t *testing.T) {
	called := false
	f := newFixture(t, func(*storage.Store) ports.Solver {
		return ports.SolverFunc(func(ctx context.Context, id string, p domain.SolveParams) (*domain.SolveResult, error) {
			called = true
			return &domain.SolveResult{}, nil
		})
	})
	ctx := context.Background()

	zeroHeight := params(1)
	zeroHeight.InitTriHeight = 0
	zeroIterations := params(0)
	zeroDepth := params(1)
	zeroDepth.Method = domain.MethodUDO
	zeroDepth.Neighbors = 0

	for _, p := range []domain.SolveParams{zeroHeight, zeroIterations, zeroDepth} {
		_, err := f.svc.Solve(ctx, "zeros", p)
		assert.ErrorIs(t, err, domain.ErrInvalidParams, p.Summary())
	}
	assert.False(t, called)
}

func TestService_SolvesOnOneSessionDoNotOverlap(t *testing.T) {
	var running, overlaps int32
	f := newFixture(t, func(store *storage.Store) ports.Solver {
		return ports.SolverFunc(func(ctx context.Context, id string, p domain.SolveParams) (*domain.SolveResult, error) {
			if atomic.AddInt32(&running, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			defer atomic.AddInt32(&running, -1)
			time.Sleep(5 * time.Millisecond)
			w, err := store.Create(ctx, id, "solution_0.pvd")
			if err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return &domain.SolveResult{Files: []string{"solution_0.pvd"}}, nil
		})
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Solve(context.Background(), "shared", params(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, atomic.LoadInt32(&overlaps))
}

func TestService_OpenAndGeometry(t *testing.T) {
	f := newFixture(t, native)
	ctx := context.Background()
	res, err := f.svc.Solve(ctx, "viewer", params(1))
	require.NoError(t, err)

	rc, info, err := f.svc.Open(ctx, "viewer", res.Files[0])
	require.NoError(t, err)
	defer rc.Close()
	assert.Positive(t, info.Size())

	_, _, err = f.svc.Open(ctx, "viewer", "solution_9.pvd")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	geo, err := f.svc.Geometry(ctx, "viewer", res.Files[0], "")
	require.NoError(t, err)
	assert.Equal(t, "solution", geo.Scalar)
	assert.Equal(t, res.Iterations[0].Vertices, geo.NumPoints())
	assert.LessOrEqual(t, geo.Range[0], geo.Range[1])
	assert.Equal(t, [6]float64{-2, 2, -2, 2, 0, 0}, geo.Bounds)

	geo, err = f.svc.Geometry(ctx, "viewer", res.Files[0], "mark")
	require.NoError(t, err)
	assert.Equal(t, "mark", geo.Scalar)

	_, err = f.svc.Geometry(ctx, "viewer", res.Files[0], "pressure")
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = f.svc.Geometry(ctx, "viewer", "solution_3.pvd", "")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestService_Clear(t *testing.T) {
	f := newFixture(t, native)
	ctx := context.Background()
	writeFile(t, ctx, f.store, domain.DefaultSessionID, "solution_0.pvd")

	require.NoError(t, f.svc.Clear(ctx, ""))
	files, err := f.svc.Files(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

type captured struct {
	mu   sync.Mutex
	msgs map[string][]string
}

func (c *captured) Broadcast(sessionID, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.msgs == nil {
		c.msgs = map[string][]string{}
	}
	c.msgs[sessionID] = append(c.msgs[sessionID], msg)
}

func TestService_NotifiesSolveEvents(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	events := &captured{}
	svc := service.New(session.NewManager(memory.NewStore()), store, native(store), service.WithNotifier(events))

	_, err = svc.Solve(context.Background(), "live", params(1))
	require.NoError(t, err)

	require.Len(t, events.msgs["live"], 2)
	assert.Contains(t, events.msgs["live"][0], service.EventSolveStarted)
	assert.Contains(t, events.msgs["live"][1], service.EventSolveCompleted)
	assert.Contains(t, events.msgs["live"][1], "solution_0.pvd")
}

func TestService_CreateSession(t *testing.T) {
	f := newFixture(t, native)
	ctx := context.Background()

	a, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	b, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NoError(t, domain.ValidateSessionID(a.ID))

	ids, err := f.svc.Sessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}

func TestService_DeleteSession(t *testing.T) {
	f := newFixture(t, native)
	ctx := context.Background()

	_, err := f.svc.Solve(ctx, "gone", params(1))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteSession(ctx, "gone"))

	_, err = f.svc.Session(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	files, err := f.svc.Files(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, files)

	assert.ErrorIs(t, f.svc.DeleteSession(ctx, "../x"), domain.ErrInvalidParams)
}
