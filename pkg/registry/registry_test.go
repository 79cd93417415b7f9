package registry_test

import (
	"context"
	"testing"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/ports"
	"github.com/aretw0/amrviz/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("stub", ports.SolverFunc(func(ctx context.Context, id string, p domain.SolveParams) (*domain.SolveResult, error) {
		return &domain.SolveResult{SessionID: id, Files: []string{"solution_0.pvd"}}, nil
	}))
	r.Register(registry.Native, ports.SolverFunc(func(ctx context.Context, id string, p domain.SolveParams) (*domain.SolveResult, error) {
		return nil, nil
	}))

	assert.Equal(t, []string{"native", "stub"}, r.Names())

	res, err := r.Solve(context.Background(), "stub", "s1", domain.DefaultSolveParams())
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionID)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSolverUnavailable)
}
