// Package obstacle defines the obstacle problems offered by amrviz and a
// native piecewise-linear solver for them.
//
// Each problem seeks u >= psi on a square domain with u = g on the boundary
// and -Δu = 0 wherever u > psi.
package obstacle

import (
	"fmt"
	"math"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/mesh"
)

// Problem describes one obstacle problem.
type Problem interface {
	Name() domain.ProblemType
	// Domain returns xmin, xmax, ymin, ymax.
	Domain() (float64, float64, float64, float64)
	Obstacle(x, y float64) float64
	Boundary(x, y float64) float64
}

// Exact is implemented by problems with a known closed-form solution.
type Exact interface {
	Exact(x, y float64) float64
}

// New returns the problem named by p.
func New(p domain.ProblemType) (Problem, error) {
	switch p {
	case domain.ProblemSphere:
		return Sphere{}, nil
	case domain.ProblemSpiral:
		return Spiral{}, nil
	}
	return nil, fmt.Errorf("%w: unknown problem %q", domain.ErrInvalidParams, p)
}

// InitialMesh triangulates the problem domain with triangles of height h.
func InitialMesh(p Problem, h float64) (*mesh.Mesh, error) {
	xmin, xmax, ymin, ymax := p.Domain()
	return mesh.NewRectangle(xmin, xmax, ymin, ymax, h)
}

// Sphere is the radial problem with a spherical cap obstacle on [-2,2]^2.
// Outside r0 the cap continues along its tangent so the obstacle is C^1.
type Sphere struct{}

const (
	sphereR0    = 0.9
	sphereAfree = 0.697965148223374
	sphereA     = 0.680259411891719
	sphereB     = 0.471519893402112
)

var (
	spherePsi0  = math.Sqrt(1 - sphereR0*sphereR0)
	sphereDpsi0 = -sphereR0 / spherePsi0
)

func (Sphere) Name() domain.ProblemType { return domain.ProblemSphere }

func (Sphere) Domain() (float64, float64, float64, float64) { return -2, 2, -2, 2 }

func (Sphere) Obstacle(x, y float64) float64 {
	r := math.Hypot(x, y)
	if r <= sphereR0 {
		return math.Sqrt(1 - r*r)
	}
	return spherePsi0 + sphereDpsi0*(r-sphereR0)
}

func (s Sphere) Boundary(x, y float64) float64 { return s.Exact(x, y) }

// Exact is the radial solution: the cap inside the free boundary, a
// harmonic logarithm outside.
func (s Sphere) Exact(x, y float64) float64 {
	r := math.Hypot(x, y)
	if r <= sphereAfree {
		return s.Obstacle(x, y)
	}
	return -sphereA*math.Log(r) + sphereB
}

// FreeBoundaryRadius is the radius of the exact contact set.
func (Sphere) FreeBoundaryRadius() float64 { return sphereAfree }

// Spiral is the spiral-shaped obstacle on [-1,1]^2 with zero boundary data.
type Spiral struct{}

func (Spiral) Name() domain.ProblemType { return domain.ProblemSpiral }

func (Spiral) Domain() (float64, float64, float64, float64) { return -1, 1, -1, 1 }

func (Spiral) Obstacle(x, y float64) float64 {
	r := math.Hypot(x, y)
	if r <= 1e-8 {
		return 3.6
	}
	theta := math.Atan2(y, x)
	return math.Sin(2*math.Pi/r+math.Pi/2-theta) + r*(r+1)/(r-2) - 3*r + 3.6
}

func (Spiral) Boundary(x, y float64) float64 { return 0 }
