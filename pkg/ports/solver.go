package ports

import (
	"context"

	"github.com/aretw0/amrviz/pkg/domain"
)

// Solver runs the solve-and-refine loop for one request. Implementations
// write their files into the session namespace of an ArtifactStore and
// report one filename per iteration, in iteration order.
type Solver interface {
	Solve(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error) {
	return f(ctx, sessionID, params)
}
