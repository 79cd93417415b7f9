// Package tui formats solve results and stored grids for the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/service"
)

// ResultMarkdown renders a solve result as a markdown report.
func ResultMarkdown(res *domain.SolveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", res.Message)
	if res.SessionID != "" {
		fmt.Fprintf(&b, "Session `%s`\n\n", res.SessionID)
	}
	if len(res.Iterations) > 0 {
		b.WriteString("| # | File | Vertices | Cells | Marked | Sweeps |\n")
		b.WriteString("|---|------|---------:|------:|-------:|-------:|\n")
		for _, it := range res.Iterations {
			fmt.Fprintf(&b, "| %d | %s | %d | %d | %d | %d |\n", it.Index, it.File, it.Vertices, it.Cells, it.Marked, it.Sweeps)
		}
		return b.String()
	}
	for _, f := range res.Files {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}

// GeometryMarkdown renders a summary of a decoded file.
func GeometryMarkdown(g *service.Geometry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", g.File)
	fmt.Fprintf(&b, "- Points: %d\n", g.NumPoints())
	fmt.Fprintf(&b, "- Cells: %d\n", len(g.Offsets))
	fmt.Fprintf(&b, "- Bounds: x [%g, %g], y [%g, %g], z [%g, %g]\n",
		g.Bounds[0], g.Bounds[1], g.Bounds[2], g.Bounds[3], g.Bounds[4], g.Bounds[5])
	if g.Scalar != "" {
		fmt.Fprintf(&b, "- Scalar `%s`: [%g, %g]\n", g.Scalar, g.Range[0], g.Range[1])
	}
	b.WriteString("\n| Array | Association | Min | Max |\n|---|---|---:|---:|\n")
	for _, f := range g.PointData {
		lo, hi := f.Range()
		fmt.Fprintf(&b, "| %s | point | %g | %g |\n", f.Name, lo, hi)
	}
	for _, f := range g.CellData {
		lo, hi := f.Range()
		fmt.Fprintf(&b, "| %s | cell | %g | %g |\n", f.Name, lo, hi)
	}
	return b.String()
}
