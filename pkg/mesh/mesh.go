// Package mesh provides the unstructured triangle meshes refined by the AMR loop.
package mesh

import (
	"errors"
	"fmt"
	"math"
)

// Point is a vertex position in the plane.
type Point [2]float64

// Cell holds the three vertex indexes of a triangle, counterclockwise.
type Cell [3]int

// Edge is an undirected edge with Edge[0] < Edge[1].
type Edge [2]int

// NewEdge returns the canonical edge between vertices a and b.
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// ErrDegenerate is returned when a mesh has a cell with non-positive area.
var ErrDegenerate = errors.New("degenerate cell")

// Mesh is a conforming triangulation.
type Mesh struct {
	Points []Point
	Cells  []Cell
}

// NumVertices returns the number of vertices.
func (m *Mesh) NumVertices() int { return len(m.Points) }

// NumCells returns the number of triangles.
func (m *Mesh) NumCells() int { return len(m.Cells) }

// NewRectangle builds a structured triangulation of [xmin,xmax]x[ymin,ymax]
// whose triangle legs are no longer than h.
func NewRectangle(xmin, xmax, ymin, ymax, h float64) (*Mesh, error) {
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return nil, fmt.Errorf("triangle height must be positive, got %v", h)
	}
	if xmax <= xmin || ymax <= ymin {
		return nil, fmt.Errorf("empty rectangle [%v,%v]x[%v,%v]", xmin, xmax, ymin, ymax)
	}
	nx := int(math.Ceil((xmax - xmin) / h))
	ny := int(math.Ceil((ymax - ymin) / h))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}

	m := &Mesh{
		Points: make([]Point, 0, (nx+1)*(ny+1)),
		Cells:  make([]Cell, 0, 2*nx*ny),
	}
	dx := (xmax - xmin) / float64(nx)
	dy := (ymax - ymin) / float64(ny)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.Points = append(m.Points, Point{xmin + float64(i)*dx, ymin + float64(j)*dy})
		}
	}
	idx := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			p00, p10, p11, p01 := idx(i, j), idx(i+1, j), idx(i+1, j+1), idx(i, j+1)
			// Alternate the diagonal so the mesh has no preferred direction.
			if (i+j)%2 == 0 {
				m.Cells = append(m.Cells, Cell{p00, p10, p11}, Cell{p00, p11, p01})
			} else {
				m.Cells = append(m.Cells, Cell{p00, p10, p01}, Cell{p10, p11, p01})
			}
		}
	}
	return m, nil
}

// Area returns the signed area of cell c (positive when counterclockwise).
func (m *Mesh) Area(c int) float64 {
	a, b, d := m.Points[m.Cells[c][0]], m.Points[m.Cells[c][1]], m.Points[m.Cells[c][2]]
	return 0.5 * ((b[0]-a[0])*(d[1]-a[1]) - (d[0]-a[0])*(b[1]-a[1]))
}

// TotalArea sums the areas of all cells.
func (m *Mesh) TotalArea() float64 {
	var sum float64
	for c := range m.Cells {
		sum += m.Area(c)
	}
	return sum
}

// EdgeLength returns the Euclidean length of e.
func (m *Mesh) EdgeLength(e Edge) float64 {
	p, q := m.Points[e[0]], m.Points[e[1]]
	return math.Hypot(q[0]-p[0], q[1]-p[1])
}

// LocalEdge returns edge k of cell c, joining local vertices k and k+1.
func (m *Mesh) LocalEdge(c, k int) Edge {
	cell := m.Cells[c]
	return NewEdge(cell[k], cell[(k+1)%3])
}

// LongestEdge returns the local index of the longest edge of cell c.
// Ties resolve to the lowest local index.
func (m *Mesh) LongestEdge(c int) int {
	best, bestLen := 0, -1.0
	for k := 0; k < 3; k++ {
		l := m.EdgeLength(m.LocalEdge(c, k))
		if l > bestLen*(1+1e-12) {
			best, bestLen = k, l
		}
	}
	return best
}

// Diameter returns the longest edge length in the mesh.
func (m *Mesh) Diameter() float64 {
	var h float64
	for c := range m.Cells {
		h = math.Max(h, m.EdgeLength(m.LocalEdge(c, m.LongestEdge(c))))
	}
	return h
}

// EdgeCells maps every edge to the cells containing it.
func (m *Mesh) EdgeCells() map[Edge][]int {
	ec := make(map[Edge][]int, 3*len(m.Cells)/2+len(m.Points))
	for c := range m.Cells {
		for k := 0; k < 3; k++ {
			e := m.LocalEdge(c, k)
			ec[e] = append(ec[e], c)
		}
	}
	return ec
}

// CellNeighbors returns, for each cell, the neighbor across each local edge (-1 on the boundary).
func (m *Mesh) CellNeighbors() [][3]int {
	ec := m.EdgeCells()
	nb := make([][3]int, len(m.Cells))
	for c := range m.Cells {
		for k := 0; k < 3; k++ {
			nb[c][k] = -1
			for _, o := range ec[m.LocalEdge(c, k)] {
				if o != c {
					nb[c][k] = o
				}
			}
		}
	}
	return nb
}

// VertexCells returns the cells incident to each vertex.
func (m *Mesh) VertexCells() [][]int {
	vc := make([][]int, len(m.Points))
	for c, cell := range m.Cells {
		for _, v := range cell {
			vc[v] = append(vc[v], c)
		}
	}
	return vc
}

// BoundaryEdges returns the edges that belong to exactly one cell.
func (m *Mesh) BoundaryEdges() []Edge {
	var out []Edge
	ec := m.EdgeCells()
	for c := range m.Cells {
		for k := 0; k < 3; k++ {
			e := m.LocalEdge(c, k)
			if len(ec[e]) == 1 {
				out = append(out, e)
			}
		}
	}
	return out
}

// BoundaryVertices flags the vertices lying on the boundary.
func (m *Mesh) BoundaryVertices() []bool {
	on := make([]bool, len(m.Points))
	for _, e := range m.BoundaryEdges() {
		on[e[0]], on[e[1]] = true, true
	}
	return on
}

// Validate checks that every cell references existing vertices, is
// counterclockwise with positive area, and that no edge is shared by more
// than two cells.
func (m *Mesh) Validate() error {
	if len(m.Points) == 0 || len(m.Cells) == 0 {
		return fmt.Errorf("mesh is empty: %d points, %d cells", len(m.Points), len(m.Cells))
	}
	for c, cell := range m.Cells {
		for _, v := range cell {
			if v < 0 || v >= len(m.Points) {
				return fmt.Errorf("cell %d references vertex %d out of range", c, v)
			}
		}
		if m.Area(c) <= 0 {
			return fmt.Errorf("%w: cell %d has area %g", ErrDegenerate, c, m.Area(c))
		}
	}
	for e, cells := range m.EdgeCells() {
		if len(cells) > 2 {
			return fmt.Errorf("edge %v shared by %d cells", e, len(cells))
		}
	}
	return nil
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Points: append([]Point(nil), m.Points...),
		Cells:  append([]Cell(nil), m.Cells...),
	}
}
