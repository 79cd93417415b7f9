package obstacle

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aretw0/amrviz/pkg/mesh"
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
)

// ErrNotConverged is returned when the projected iteration hits MaxSweeps.
var ErrNotConverged = errors.New("obstacle solve did not converge")

// Options tunes the projected successive over-relaxation.
type Options struct {
	Omega     float64 // Relaxation factor in (0, 2)
	Tolerance float64 // Stop when the largest nodal update falls below this
	MaxSweeps int
}

// DefaultOptions returns settings that converge on the meshes produced by
// a handful of refinements of the default problems.
func DefaultOptions() Options {
	return Options{
		Omega:     1.85,
		Tolerance: 1e-9,
		MaxSweeps: 50000,
	}
}

// Solution is the discrete solution on one mesh.
type Solution struct {
	U        []float64 // Nodal values
	Lower    []float64 // Obstacle interpolated at the vertices
	Sweeps   int
	Residual float64 // Max-norm of the discrete complementarity residual
}

// Assemble builds the P1 stiffness matrix of the Laplacian on m.
func Assemble(m *mesh.Mesh) *sparse.CSR {
	n := m.NumVertices()
	k := sparse.NewDOK(n, n)
	for c, cell := range m.Cells {
		area := m.Area(c)
		var b, d [3]float64
		for i := 0; i < 3; i++ {
			p1 := m.Points[cell[(i+1)%3]]
			p2 := m.Points[cell[(i+2)%3]]
			b[i] = p1[1] - p2[1]
			d[i] = p2[0] - p1[0]
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				v := (b[i]*b[j] + d[i]*d[j]) / (4 * area)
				k.Set(cell[i], cell[j], k.At(cell[i], cell[j])+v)
			}
		}
	}
	return k.ToCSR()
}

// Solve computes the discrete obstacle solution on m. u0, when it has one
// value per vertex, is used as the starting guess; it is projected onto the
// admissible set first.
func Solve(ctx context.Context, p Problem, m *mesh.Mesh, u0 []float64, opts Options) (*Solution, error) {
	if opts.Omega <= 0 || opts.Omega >= 2 {
		return nil, fmt.Errorf("relaxation factor %v outside (0, 2)", opts.Omega)
	}
	if opts.MaxSweeps <= 0 {
		opts.MaxSweeps = DefaultOptions().MaxSweeps
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions().Tolerance
	}

	n := m.NumVertices()
	onBoundary := m.BoundaryVertices()
	lower := make([]float64, n)
	u := make([]float64, n)
	for i, pt := range m.Points {
		lower[i] = p.Obstacle(pt[0], pt[1])
		switch {
		case onBoundary[i]:
			u[i] = p.Boundary(pt[0], pt[1])
		case len(u0) == n:
			u[i] = math.Max(u0[i], lower[i])
		default:
			u[i] = lower[i]
		}
	}

	raw := Assemble(m).RawMatrix()
	sol := &Solution{U: u, Lower: lower}
	for sweep := 1; sweep <= opts.MaxSweeps; sweep++ {
		if sweep == 1 || sweep%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var change float64
		for i := 0; i < n; i++ {
			if onBoundary[i] {
				continue
			}
			var diag, sum float64
			for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
				j := raw.Ind[k]
				if j == i {
					diag = raw.Data[k]
					continue
				}
				sum += raw.Data[k] * u[j]
			}
			if diag == 0 {
				continue
			}
			next := math.Max(lower[i], (1-opts.Omega)*u[i]+opts.Omega*(-sum/diag))
			change = math.Max(change, math.Abs(next-u[i]))
			u[i] = next
		}
		sol.Sweeps = sweep
		if change < opts.Tolerance {
			sol.Residual = residual(raw.Indptr, raw.Ind, raw.Data, u, lower, onBoundary)
			return sol, nil
		}
	}
	return nil, fmt.Errorf("%w after %d sweeps on %d vertices", ErrNotConverged, opts.MaxSweeps, n)
}

// residual is the max-norm of min(u - lower, Ku) over interior vertices.
func residual(indptr, ind []int, data, u, lower []float64, onBoundary []bool) float64 {
	r := make([]float64, 0, len(u))
	for i := range u {
		if onBoundary[i] {
			continue
		}
		var ku float64
		for k := indptr[i]; k < indptr[i+1]; k++ {
			ku += data[k] * u[ind[k]]
		}
		r = append(r, math.Min(u[i]-lower[i], ku))
	}
	if len(r) == 0 {
		return 0
	}
	return floats.Norm(r, math.Inf(1))
}

// MaxError returns the max-norm of u minus the exact solution at the vertices.
func MaxError(e Exact, m *mesh.Mesh, u []float64) float64 {
	diff := make([]float64, len(u))
	for i, pt := range m.Points {
		diff[i] = u[i] - e.Exact(pt[0], pt[1])
	}
	return floats.Norm(diff, math.Inf(1))
}
