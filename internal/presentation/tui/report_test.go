package tui_test

import (
	"bytes"
	"testing"

	"github.com/aretw0/amrviz/internal/presentation/tui"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/service"
	"github.com/aretw0/amrviz/pkg/vtk"
	"github.com/stretchr/testify/assert"
)

func TestResultMarkdown(t *testing.T) {
	res := &domain.SolveResult{
		Message:   "Solutions generated successfully",
		SessionID: "s1",
		Files:     []string{"solution_0.pvd"},
		Iterations: []domain.IterationSummary{
			{Index: 0, File: "solution_0.pvd", Vertices: 25, Cells: 32, Marked: 6, Sweeps: 40},
		},
	}
	md := tui.ResultMarkdown(res)
	assert.Contains(t, md, "## Solutions generated successfully")
	assert.Contains(t, md, "| 0 | solution_0.pvd | 25 | 32 | 6 | 40 |")

	res.Iterations = nil
	assert.Contains(t, tui.ResultMarkdown(res), "- solution_0.pvd")
}

func TestGeometryMarkdown(t *testing.T) {
	g := &service.Geometry{
		File:      "solution_0.pvd",
		Scalar:    "solution",
		Range:     [2]float64{0, 0.5},
		Points:    []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Offsets:   []int{3},
		PointData: []vtk.Field{{Name: "solution", Values: []float64{0, 0.25, 0.5}}},
		CellData:  []vtk.Field{{Name: "mark", Values: []float64{1}}},
	}
	md := tui.GeometryMarkdown(g)
	assert.Contains(t, md, "- Points: 3")
	assert.Contains(t, md, "| solution | point | 0 | 0.5 |")
	assert.Contains(t, md, "| mark | cell | 1 | 1 |")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|")
}

func TestNewRenderer_NonTerminal(t *testing.T) {
	render := tui.NewRenderer()
	out, err := render("# title")
	assert.NoError(t, err)
	assert.Contains(t, out, "title")
}
