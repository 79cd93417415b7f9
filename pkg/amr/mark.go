// Package amr computes refinement markings that concentrate resolution
// around the free boundary of an obstacle problem.
//
// Both strategies start from the nodal active-set indicator (1 where the
// solution touches the obstacle, 0 elsewhere). VCES averages it per cell
// and marks cells whose average falls inside a bracket; UDO takes the cells
// straddling the free boundary and grows that set through vertex neighbors.
package amr

import (
	"fmt"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/mesh"
)

// ActiveTolerance is the gap below which a vertex counts as touching the obstacle.
const ActiveTolerance = 1e-10

// NodalActive returns 1 for vertices where u - lower < tol and 0 elsewhere.
func NodalActive(u, lower []float64, tol float64) ([]float64, error) {
	if len(u) != len(lower) {
		return nil, fmt.Errorf("solution has %d values, obstacle %d", len(u), len(lower))
	}
	active := make([]float64, len(u))
	for i := range u {
		if u[i]-lower[i] < tol {
			active[i] = 1
		}
	}
	return active, nil
}

// CellAverage projects a nodal field onto piecewise constants.
func CellAverage(m *mesh.Mesh, nodal []float64) []float64 {
	avg := make([]float64, m.NumCells())
	for c, cell := range m.Cells {
		avg[c] = (nodal[cell[0]] + nodal[cell[1]] + nodal[cell[2]]) / 3
	}
	return avg
}

// VCESMark marks cells whose averaged active indicator lies strictly inside bracket.
func VCESMark(m *mesh.Mesh, u, lower []float64, bracket []float64) ([]bool, error) {
	if len(bracket) != 2 {
		return nil, fmt.Errorf("%w: bracket must have two values, got %d", domain.ErrInvalidParams, len(bracket))
	}
	if len(u) != m.NumVertices() {
		return nil, fmt.Errorf("solution has %d values for %d vertices", len(u), m.NumVertices())
	}
	active, err := NodalActive(u, lower, ActiveTolerance)
	if err != nil {
		return nil, err
	}
	lo, hi := bracket[0], bracket[1]
	marked := make([]bool, m.NumCells())
	for c, a := range CellAverage(m, active) {
		marked[c] = a > lo && a < hi
	}
	return marked, nil
}

// BorderCells flags cells that have both active and inactive vertices.
func BorderCells(m *mesh.Mesh, active []float64) []bool {
	border := make([]bool, m.NumCells())
	for c, a := range CellAverage(m, active) {
		border[c] = a > 0 && a < 1
	}
	return border
}

// UDOMark marks the free-boundary cells and every cell reachable from them
// through at most n shared-vertex steps.
func UDOMark(m *mesh.Mesh, u, lower []float64, n int) ([]bool, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: neighborhood depth must be non-negative, got %d", domain.ErrInvalidParams, n)
	}
	if len(u) != m.NumVertices() {
		return nil, fmt.Errorf("solution has %d values for %d vertices", len(u), m.NumVertices())
	}
	active, err := NodalActive(u, lower, ActiveTolerance)
	if err != nil {
		return nil, err
	}
	return Dilate(m, BorderCells(m, active), n), nil
}

// Dilate grows a cell set by n levels of vertex adjacency.
func Dilate(m *mesh.Mesh, seed []bool, n int) []bool {
	marked := append([]bool(nil), seed...)
	frontier := make([]int, 0)
	for c, s := range seed {
		if s {
			frontier = append(frontier, c)
		}
	}
	vc := m.VertexCells()
	for level := 0; level < n && len(frontier) > 0; level++ {
		var next []int
		for _, c := range frontier {
			for _, v := range m.Cells[c] {
				for _, o := range vc[v] {
					if !marked[o] {
						marked[o] = true
						next = append(next, o)
					}
				}
			}
		}
		frontier = next
	}
	return marked
}

// Mark dispatches on the marking method of params.
func Mark(params domain.SolveParams, m *mesh.Mesh, u, lower []float64) ([]bool, error) {
	switch params.Method {
	case domain.MethodVCES:
		return VCESMark(m, u, lower, params.Bracket)
	case domain.MethodUDO:
		return UDOMark(m, u, lower, params.Neighbors)
	}
	return nil, fmt.Errorf("%w: unknown refinement method %q", domain.ErrInvalidParams, params.Method)
}

// Indicator converts a marking into a cell field (1 marked, 0 not).
func Indicator(marked []bool) []float64 {
	out := make([]float64, len(marked))
	for i, mk := range marked {
		if mk {
			out[i] = 1
		}
	}
	return out
}
