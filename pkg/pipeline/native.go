package pipeline

import (
	"context"
	"io"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/ports"
)

// NativeSolver runs the loop in-process and writes into an ArtifactStore.
type NativeSolver struct {
	runner    *Runner
	artifacts ports.ArtifactStore
}

var _ ports.Solver = (*NativeSolver)(nil)

// NewNativeSolver creates a ports.Solver backed by runner.
func NewNativeSolver(runner *Runner, artifacts ports.ArtifactStore) *NativeSolver {
	return &NativeSolver{runner: runner, artifacts: artifacts}
}

// Solve implements ports.Solver.
func (s *NativeSolver) Solve(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error) {
	res, err := s.runner.Run(ctx, params, func(name string) (io.WriteCloser, error) {
		return s.artifacts.Create(ctx, sessionID, name)
	})
	if err != nil {
		return nil, err
	}
	res.SessionID = sessionID
	return res, nil
}
