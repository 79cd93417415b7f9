package amr_test

import (
	"testing"

	"github.com/aretw0/amrviz/pkg/amr"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfActive builds a unit square mesh where vertices with x < 0.5 touch the obstacle.
func halfActive(t *testing.T) (*mesh.Mesh, []float64, []float64) {
	t.Helper()
	m, err := mesh.NewRectangle(0, 1, 0, 1, 0.25)
	require.NoError(t, err)
	u := make([]float64, m.NumVertices())
	lower := make([]float64, m.NumVertices())
	for i, p := range m.Points {
		if p[0] >= 0.5 {
			u[i] = 1
		}
	}
	return m, u, lower
}

func TestNodalActive(t *testing.T) {
	a, err := amr.NodalActive([]float64{0, 1, 2}, []float64{0, 0, 2}, 1e-10)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, a)

	_, err = amr.NodalActive([]float64{0}, nil, 1e-10)
	assert.Error(t, err)
}

func TestVCESMark_BandOnly(t *testing.T) {
	m, u, lower := halfActive(t)
	marked, err := amr.VCESMark(m, u, lower, []float64{0.2, 0.8})
	require.NoError(t, err)

	for c, mk := range marked {
		lo, hi := 1.0, 0.0
		for _, v := range m.Cells[c] {
			lo, hi = min(lo, m.Points[v][0]), max(hi, m.Points[v][0])
		}
		mixed := lo < 0.5 && hi >= 0.5
		assert.Equal(t, mixed, mk, "cell %d", c)
	}
	assert.Positive(t, mesh.CountMarked(marked))
}

func TestVCESMark_EmptyBracketMarksNothing(t *testing.T) {
	m, u, lower := halfActive(t)
	marked, err := amr.VCESMark(m, u, lower, []float64{0.7, 0.72})
	require.NoError(t, err)
	assert.Zero(t, mesh.CountMarked(marked))
}

func TestVCESMark_BadBracket(t *testing.T) {
	m, u, lower := halfActive(t)
	_, err := amr.VCESMark(m, u, lower, []float64{0.2})
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestUDOMark_GrowsWithDepth(t *testing.T) {
	m, u, lower := halfActive(t)

	border, err := amr.UDOMark(m, u, lower, 0)
	require.NoError(t, err)
	one, err := amr.UDOMark(m, u, lower, 1)
	require.NoError(t, err)
	three, err := amr.UDOMark(m, u, lower, 3)
	require.NoError(t, err)

	nb, n1, n3 := mesh.CountMarked(border), mesh.CountMarked(one), mesh.CountMarked(three)
	assert.Positive(t, nb)
	assert.Greater(t, n1, nb)
	assert.GreaterOrEqual(t, n3, n1)
	assert.LessOrEqual(t, n3, m.NumCells())

	for c := range border {
		if border[c] {
			assert.True(t, one[c], "dilation keeps the seed")
		}
	}
}

func TestUDOMark_NoFreeBoundary(t *testing.T) {
	m, err := mesh.NewRectangle(0, 1, 0, 1, 0.5)
	require.NoError(t, err)
	u := make([]float64, m.NumVertices())
	for i := range u {
		u[i] = 1
	}
	marked, err := amr.UDOMark(m, u, make([]float64, m.NumVertices()), 3)
	require.NoError(t, err)
	assert.Zero(t, mesh.CountMarked(marked))
}

func TestMark_Dispatch(t *testing.T) {
	m, u, lower := halfActive(t)

	p := domain.DefaultSolveParams()
	viaMark, err := amr.Mark(p, m, u, lower)
	require.NoError(t, err)
	direct, err := amr.VCESMark(m, u, lower, p.Bracket)
	require.NoError(t, err)
	assert.Equal(t, direct, viaMark)

	p.Method = "ZZ"
	_, err = amr.Mark(p, m, u, lower)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestIndicator(t *testing.T) {
	assert.Equal(t, []float64{1, 0, 1}, amr.Indicator([]bool{true, false, true}))
}
