// Package registry maps solver names to ports.Solver implementations.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/ports"
)

// Native is the name of the built-in solver.
const Native = "native"

// Registry manages the available solvers.
type Registry struct {
	mu      sync.RWMutex
	solvers map[string]ports.Solver
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		solvers: make(map[string]ports.Solver),
	}
}

// Register adds a solver to the registry.
// If a solver with the same name exists, it is overwritten.
func (r *Registry) Register(name string, s ports.Solver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solvers[name] = s
}

// Get looks up a solver by name.
func (r *Registry) Get(name string) (ports.Solver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", domain.ErrSolverUnavailable, name)
	}
	return s, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Solve looks up a solver by name and runs it.
func (r *Registry) Solve(ctx context.Context, name, sessionID string, params domain.SolveParams) (*domain.SolveResult, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return s.Solve(ctx, sessionID, params)
}
