// Package vtk reads and writes the VTK XML interchange formats exchanged
// between the solving and the viewing processes: UnstructuredGrid pieces
// (.vtu) and the Collection time-series descriptor (.pvd).
package vtk

import (
	"fmt"
	"math"

	"github.com/aretw0/amrviz/pkg/mesh"
)

// Cell type codes from the VTK file format documentation.
const (
	CellVertex   uint8 = 1
	CellLine     uint8 = 3
	CellTriangle uint8 = 5
	CellQuad     uint8 = 9
	CellTetra    uint8 = 10
)

// Field is a named scalar array.
type Field struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Range returns the minimum and maximum of the field values.
func (f Field) Range() (float64, float64) {
	if len(f.Values) == 0 {
		return 0, 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range f.Values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return lo, hi
}

// Grid is an unstructured grid: the geometry handed to a 3D viewer.
type Grid struct {
	// Points holds x, y, z triples.
	Points       []float64 `json:"points"`
	Connectivity []int     `json:"connectivity"`
	// Offsets[i] is the end of cell i in Connectivity.
	Offsets   []int   `json:"offsets"`
	Types     []uint8 `json:"types"`
	PointData []Field `json:"point_data,omitempty"`
	CellData  []Field `json:"cell_data,omitempty"`
}

// NumPoints returns the number of points.
func (g *Grid) NumPoints() int { return len(g.Points) / 3 }

// NumCells returns the number of cells.
func (g *Grid) NumCells() int { return len(g.Offsets) }

// FromMesh converts a triangle mesh and its fields into a grid with z = 0.
func FromMesh(m *mesh.Mesh, pointData, cellData []Field) (*Grid, error) {
	g := &Grid{
		Points:       make([]float64, 0, 3*m.NumVertices()),
		Connectivity: make([]int, 0, 3*m.NumCells()),
		Offsets:      make([]int, 0, m.NumCells()),
		Types:        make([]uint8, 0, m.NumCells()),
	}
	for _, p := range m.Points {
		g.Points = append(g.Points, p[0], p[1], 0)
	}
	for _, c := range m.Cells {
		g.Connectivity = append(g.Connectivity, c[0], c[1], c[2])
		g.Offsets = append(g.Offsets, len(g.Connectivity))
		g.Types = append(g.Types, CellTriangle)
	}
	for _, f := range pointData {
		if len(f.Values) != m.NumVertices() {
			return nil, fmt.Errorf("point field %q has %d values for %d points", f.Name, len(f.Values), m.NumVertices())
		}
	}
	for _, f := range cellData {
		if len(f.Values) != m.NumCells() {
			return nil, fmt.Errorf("cell field %q has %d values for %d cells", f.Name, len(f.Values), m.NumCells())
		}
	}
	g.PointData = pointData
	g.CellData = cellData
	return g, nil
}

// Scalars returns the point (preferred) or cell field called name.
func (g *Grid) Scalars(name string) (Field, bool) {
	for _, f := range g.PointData {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range g.CellData {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Bounds returns xmin, xmax, ymin, ymax, zmin, zmax.
func (g *Grid) Bounds() [6]float64 {
	b := [6]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for i := 0; i+2 < len(g.Points); i += 3 {
		for k := 0; k < 3; k++ {
			b[2*k] = math.Min(b[2*k], g.Points[i+k])
			b[2*k+1] = math.Max(b[2*k+1], g.Points[i+k])
		}
	}
	return b
}

// Validate checks the structural consistency of the grid.
func (g *Grid) Validate() error {
	if len(g.Points)%3 != 0 {
		return fmt.Errorf("points array length %d is not a multiple of 3", len(g.Points))
	}
	if g.NumPoints() == 0 {
		return fmt.Errorf("grid contains no points")
	}
	if len(g.Types) != len(g.Offsets) {
		return fmt.Errorf("%d cell types for %d offsets", len(g.Types), len(g.Offsets))
	}
	prev := 0
	for i, off := range g.Offsets {
		if off <= prev {
			return fmt.Errorf("offset %d (%d) is not increasing", i, off)
		}
		prev = off
	}
	if prev != len(g.Connectivity) {
		return fmt.Errorf("last offset %d does not match connectivity length %d", prev, len(g.Connectivity))
	}
	for i, v := range g.Connectivity {
		if v < 0 || v >= g.NumPoints() {
			return fmt.Errorf("connectivity[%d] = %d out of range", i, v)
		}
	}
	for _, f := range g.PointData {
		if len(f.Values) != g.NumPoints() {
			return fmt.Errorf("point field %q has %d values for %d points", f.Name, len(f.Values), g.NumPoints())
		}
	}
	for _, f := range g.CellData {
		if len(f.Values) != g.NumCells() {
			return fmt.Errorf("cell field %q has %d values for %d cells", f.Name, len(f.Values), g.NumCells())
		}
	}
	return nil
}

// Warp returns a copy of the grid whose z coordinate is factor times the
// named point field, the usual way to show a scalar over a planar mesh.
func (g *Grid) Warp(name string, factor float64) (*Grid, error) {
	var field *Field
	for i := range g.PointData {
		if g.PointData[i].Name == name {
			field = &g.PointData[i]
		}
	}
	if field == nil {
		return nil, fmt.Errorf("no point field %q", name)
	}
	w := *g
	w.Points = append([]float64(nil), g.Points...)
	for i, v := range field.Values {
		w.Points[3*i+2] += factor * v
	}
	return &w, nil
}
