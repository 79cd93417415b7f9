package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/aretw0/amrviz/internal/storage"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/pipeline"
	"github.com/aretw0/amrviz/pkg/vtk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu    sync.Mutex
	files fstest.MapFS
}

type sinkFile struct {
	bytes.Buffer
	name string
	s    *sink
}

func (f *sinkFile) Close() error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.files[f.name] = &fstest.MapFile{Data: f.Bytes()}
	return nil
}

func newSink() *sink {
	return &sink{files: fstest.MapFS{}}
}

func (s *sink) create(name string) (io.WriteCloser, error) {
	return &sinkFile{name: name, s: s}, nil
}

type recorder struct {
	its []domain.IterationSummary
}

func (r *recorder) ObserveIteration(_ domain.ProblemType, it domain.IterationSummary, _ time.Duration) {
	r.its = append(r.its, it)
}

func coarse(problem domain.ProblemType, iterations int) domain.SolveParams {
	p := domain.DefaultSolveParams()
	p.Problem = problem
	p.InitTriHeight = 0.5
	p.MaxIterations = iterations
	return p
}

func TestRunner_OneFilePerIteration(t *testing.T) {
	s := newSink()
	rec := &recorder{}
	r := pipeline.NewRunner(pipeline.WithObserver(rec))

	res, err := r.Run(context.Background(), coarse(domain.ProblemSphere, 3), s.create)
	require.NoError(t, err)

	assert.Equal(t, pipeline.SuccessMessage, res.Message)
	assert.Equal(t, []string{"solution_0.pvd", "solution_1.pvd", "solution_2.pvd"}, res.Files)
	require.Len(t, res.Iterations, 3)
	assert.Equal(t, res.Iterations, rec.its)

	for i, name := range res.Files {
		g, err := vtk.Open(s.files, name)
		require.NoError(t, err, name)
		require.NoError(t, g.Validate())
		assert.Equal(t, res.Iterations[i].Vertices, g.NumPoints())
		assert.Equal(t, res.Iterations[i].Cells, g.NumCells())
		for _, field := range []string{pipeline.FieldSolution, pipeline.FieldObstacle, pipeline.FieldMark} {
			_, ok := g.Scalars(field)
			assert.True(t, ok, "%s has %s", name, field)
		}
	}
	for i := 1; i < len(res.Iterations); i++ {
		prev := res.Iterations[i-1]
		if prev.Marked > 0 {
			assert.Greater(t, res.Iterations[i].Cells, prev.Cells, "marked cells are refined")
		} else {
			assert.Equal(t, prev.Cells, res.Iterations[i].Cells)
		}
	}
}

func TestRunner_SolutionAboveObstacle(t *testing.T) {
	s := newSink()
	p := coarse(domain.ProblemSpiral, 1)
	p.Method = domain.MethodUDO
	p.Neighbors = 1
	res, err := pipeline.NewRunner().Run(context.Background(), p, s.create)
	require.NoError(t, err)

	g, err := vtk.Open(s.files, res.Files[0])
	require.NoError(t, err)
	u, _ := g.Scalars(pipeline.FieldSolution)
	lower, _ := g.Scalars(pipeline.FieldObstacle)
	for i := range u.Values {
		assert.GreaterOrEqual(t, u.Values[i], lower.Values[i]-1e-12)
	}
}

func TestRunner_InvalidParams(t *testing.T) {
	p := coarse(domain.ProblemSphere, 1)
	p.InitTriHeight = -1
	_, err := pipeline.NewRunner().Run(context.Background(), p, newSink().create)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestRunner_SinkFailureAborts(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	create := func(name string) (io.WriteCloser, error) {
		calls++
		return nil, boom
	}
	_, err := pipeline.NewRunner().Run(context.Background(), coarse(domain.ProblemSphere, 3), create)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "loop stops at the first failure")
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipeline.NewRunner().Run(ctx, coarse(domain.ProblemSphere, 1), newSink().create)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNativeSolver_WritesIntoSession(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	solver := pipeline.NewNativeSolver(pipeline.NewRunner(), store)

	res, err := solver.Solve(context.Background(), "s1", coarse(domain.ProblemSphere, 2))
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionID)

	listed, err := store.List(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, res.Files, listed)

	fsys, err := store.FS("s1")
	require.NoError(t, err)
	_, err = vtk.Open(fsys, res.Files[1])
	assert.NoError(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "solution_4.pvd", pipeline.FileName(4))
}
