// Package pipeline runs the solve-and-refine loop natively: solve the
// obstacle problem on the current mesh, mark cells near the free boundary,
// write the solution, refine, and repeat.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/amrviz/pkg/amr"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/mesh"
	"github.com/aretw0/amrviz/pkg/obstacle"
	"github.com/aretw0/amrviz/pkg/vtk"
)

// SuccessMessage is reported with every completed run.
const SuccessMessage = "Solutions generated successfully"

// Field names written into every solution file.
const (
	FieldSolution = "solution"
	FieldObstacle = "obstacle"
	FieldMark     = "mark"
)

// Observer receives one call per completed iteration.
type Observer interface {
	ObserveIteration(problem domain.ProblemType, it domain.IterationSummary, elapsed time.Duration)
}

// Runner executes the loop. The zero value is not usable; call NewRunner.
type Runner struct {
	opts     obstacle.Options
	logger   *slog.Logger
	observer Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for iteration progress.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

// WithSolverOptions overrides the projected iteration settings.
func WithSolverOptions(opts obstacle.Options) Option {
	return func(r *Runner) {
		r.opts = opts
	}
}

// NewRunner creates a Runner with default solver options.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		opts:   obstacle.DefaultOptions(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FileName returns the descriptor name written for iteration i.
func FileName(i int) string {
	pvd, _ := vtk.SeriesPaths(seriesBase(i))
	return pvd
}

func seriesBase(i int) string {
	return fmt.Sprintf("solution_%d", i)
}

// Run executes params.MaxIterations passes and writes one series per pass
// through create. The first error aborts the run; files already written
// are left for the caller to discard.
func (r *Runner) Run(ctx context.Context, params domain.SolveParams, create vtk.CreateFunc) (*domain.SolveResult, error) {
	params, err := params.Normalize()
	if err != nil {
		return nil, err
	}
	problem, err := obstacle.New(params.Problem)
	if err != nil {
		return nil, err
	}
	m, err := obstacle.InitialMesh(problem, params.InitTriHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to build initial mesh: %w", err)
	}

	result := &domain.SolveResult{Files: make([]string, 0, params.MaxIterations)}
	var u []float64
	for i := 0; i < params.MaxIterations; i++ {
		start := time.Now()
		r.logger.Info("Processing iteration", "iteration", i+1, "of", params.MaxIterations,
			"vertices", m.NumVertices(), "cells", m.NumCells())

		sol, err := obstacle.Solve(ctx, problem, m, u, r.opts)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		marked, err := amr.Mark(params, m, sol.U, sol.Lower)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}

		name, err := vtk.WriteSeries(create, seriesBase(i), m,
			[]vtk.Field{
				{Name: FieldSolution, Values: sol.U},
				{Name: FieldObstacle, Values: sol.Lower},
			},
			[]vtk.Field{{Name: FieldMark, Values: amr.Indicator(marked)}},
		)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}

		summary := domain.IterationSummary{
			Index:    i,
			File:     name,
			Vertices: m.NumVertices(),
			Cells:    m.NumCells(),
			Marked:   mesh.CountMarked(marked),
			Sweeps:   sol.Sweeps,
			Residual: sol.Residual,
		}
		result.Files = append(result.Files, name)
		result.Iterations = append(result.Iterations, summary)
		r.logger.Info("Wrote solution file", "iteration", i+1, "file", name,
			"marked", summary.Marked, "sweeps", sol.Sweeps)
		if r.observer != nil {
			r.observer.ObserveIteration(params.Problem, summary, time.Since(start))
		}

		// The mesh after the last pass is never solved on, so skip it.
		if i == params.MaxIterations-1 {
			break
		}
		ref, err := m.Refine(marked)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: refine: %w", i, err)
		}
		if u, err = ref.Prolong(sol.U); err != nil {
			return nil, fmt.Errorf("iteration %d: prolong: %w", i, err)
		}
		m = ref.Mesh
	}

	result.Message = SuccessMessage
	return result, nil
}
