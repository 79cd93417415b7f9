package mesh

import "fmt"

// Refinement is the result of refining a parent mesh.
type Refinement struct {
	Parent *Mesh
	Mesh   *Mesh
	// Midpoints holds, for every vertex appended to the child mesh, the
	// parent edge it bisects. Vertex len(Parent.Points)+i bisects Midpoints[i].
	Midpoints []Edge
}

// Refine bisects the marked cells along their longest edge and closes the
// refinement so that the result has no hanging nodes. A cell whose longest
// edge is split is cut in two; each additional split edge adds one more cut.
func (m *Mesh) Refine(marked []bool) (*Refinement, error) {
	if len(marked) != len(m.Cells) {
		return nil, fmt.Errorf("marked has %d entries for %d cells", len(marked), len(m.Cells))
	}

	longest := make([]int, len(m.Cells))
	for c := range m.Cells {
		longest[c] = m.LongestEdge(c)
	}

	split := make(map[Edge]bool)
	for c, mk := range marked {
		if mk {
			split[m.LocalEdge(c, longest[c])] = true
		}
	}

	// Closure: any cell with a split edge must also split its longest edge.
	for changed := true; changed; {
		changed = false
		for c := range m.Cells {
			le := m.LocalEdge(c, longest[c])
			if split[le] {
				continue
			}
			for k := 0; k < 3; k++ {
				if split[m.LocalEdge(c, k)] {
					split[le] = true
					changed = true
					break
				}
			}
		}
	}

	child := &Mesh{
		Points: append(make([]Point, 0, len(m.Points)+len(split)), m.Points...),
		Cells:  make([]Cell, 0, len(m.Cells)+2*len(split)),
	}
	mid := make(map[Edge]int, len(split))
	midpoints := make([]Edge, 0, len(split))
	midpoint := func(e Edge) int {
		if v, ok := mid[e]; ok {
			return v
		}
		p, q := m.Points[e[0]], m.Points[e[1]]
		v := len(child.Points)
		child.Points = append(child.Points, Point{0.5 * (p[0] + q[0]), 0.5 * (p[1] + q[1])})
		mid[e] = v
		midpoints = append(midpoints, e)
		return v
	}

	for c, cell := range m.Cells {
		k := longest[c]
		a, b, d := cell[k], cell[(k+1)%3], cell[(k+2)%3]
		if !split[NewEdge(a, b)] {
			child.Cells = append(child.Cells, cell)
			continue
		}
		mab := midpoint(NewEdge(a, b))

		if e := NewEdge(d, a); split[e] {
			p := midpoint(e)
			child.Cells = append(child.Cells, Cell{a, mab, p}, Cell{mab, d, p})
		} else {
			child.Cells = append(child.Cells, Cell{a, mab, d})
		}

		if e := NewEdge(b, d); split[e] {
			q := midpoint(e)
			child.Cells = append(child.Cells, Cell{mab, b, q}, Cell{mab, q, d})
		} else {
			child.Cells = append(child.Cells, Cell{mab, b, d})
		}
	}

	return &Refinement{Parent: m, Mesh: child, Midpoints: midpoints}, nil
}

// Prolong interpolates a piecewise linear field from the parent mesh onto
// the refined mesh. New vertices are edge midpoints, so the interpolant is
// the mean of the two edge endpoints.
func (r *Refinement) Prolong(u []float64) ([]float64, error) {
	n := len(r.Parent.Points)
	if len(u) != n {
		return nil, fmt.Errorf("field has %d values for %d parent vertices", len(u), n)
	}
	out := make([]float64, len(r.Mesh.Points))
	copy(out, u)
	for i, e := range r.Midpoints {
		out[n+i] = 0.5 * (out[e[0]] + out[e[1]])
	}
	return out, nil
}

// CountMarked returns the number of true entries.
func CountMarked(marked []bool) int {
	n := 0
	for _, mk := range marked {
		if mk {
			n++
		}
	}
	return n
}
