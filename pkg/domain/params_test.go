package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveParams_Normalize_FillsAbsentEnums(t *testing.T) {
	p, err := domain.SolveParams{InitTriHeight: 0.3, MaxIterations: 1}.Normalize()
	require.NoError(t, err)

	want := domain.DefaultSolveParams()
	want.Neighbors = 0 // dropped for VCES
	assert.Equal(t, want, p)
}

func TestSolveParams_Normalize_CanonicalSpelling(t *testing.T) {
	p, err := domain.SolveParams{
		Problem: "spiral", Method: "udo", InitTriHeight: 0.2, MaxIterations: 2,
		Bracket: []float64{0.2, 0.8}, Neighbors: 2,
	}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, domain.ProblemSpiral, p.Problem)
	assert.Equal(t, domain.MethodUDO, p.Method)
	assert.Equal(t, 2, p.Neighbors)
	assert.Nil(t, p.Bracket, "bracket is dropped for UDO")
}

func TestSolveParams_Normalize_RejectsExplicitZeros(t *testing.T) {
	tests := []struct {
		name   string
		params domain.SolveParams
		keys   []string
	}{
		{
			name:   "zero height and iterations",
			params: domain.SolveParams{Problem: domain.ProblemSphere, Method: domain.MethodVCES},
			keys:   []string{domain.FieldTriHeight, domain.FieldMaxIterations},
		},
		{
			name:   "zero UDO depth",
			params: domain.SolveParams{Problem: domain.ProblemSphere, InitTriHeight: 0.3, MaxIterations: 1, Method: domain.MethodUDO},
			keys:   []string{domain.FieldNeighbors},
		},
		{
			name:   "empty bracket",
			params: domain.SolveParams{InitTriHeight: 0.3, MaxIterations: 1, Method: domain.MethodVCES, Bracket: []float64{}},
			keys:   []string{domain.FieldBracket},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.params.Normalize()
			require.ErrorIs(t, err, domain.ErrInvalidParams)

			var got []string
			for _, e := range domain.ValidationErrors(err) {
				var ve *domain.ValidationError
				require.True(t, errors.As(e, &ve))
				got = append(got, ve.Key)
			}
			assert.Equal(t, tt.keys, got)
		})
	}
}

func TestSolveParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		params domain.SolveParams
		keys   []string
	}{
		{
			name:   "unknown problem",
			params: domain.SolveParams{Problem: "Cube", InitTriHeight: 0.3, MaxIterations: 1, Method: domain.MethodVCES, Bracket: []float64{0.2, 0.8}},
			keys:   []string{domain.FieldProblem},
		},
		{
			name:   "unknown method",
			params: domain.SolveParams{Problem: domain.ProblemSphere, InitTriHeight: 0.3, MaxIterations: 1, Method: "ZZ"},
			keys:   []string{domain.FieldMethod},
		},
		{
			name:   "negative height and too many iterations",
			params: domain.SolveParams{Problem: domain.ProblemSphere, InitTriHeight: -1, MaxIterations: 50, Method: domain.MethodUDO, Neighbors: 2},
			keys:   []string{domain.FieldTriHeight, domain.FieldMaxIterations},
		},
		{
			name:   "inverted bracket",
			params: domain.SolveParams{Problem: domain.ProblemSphere, InitTriHeight: 0.3, MaxIterations: 1, Method: domain.MethodVCES, Bracket: []float64{0.9, 0.1}},
			keys:   []string{domain.FieldBracket},
		},
		{
			name:   "bracket of three",
			params: domain.SolveParams{Problem: domain.ProblemSphere, InitTriHeight: 0.3, MaxIterations: 1, Method: domain.MethodVCES, Bracket: []float64{0.1, 0.2, 0.3}},
			keys:   []string{domain.FieldBracket},
		},
		{
			name:   "zero depth",
			params: domain.SolveParams{Problem: domain.ProblemSphere, InitTriHeight: 0.3, MaxIterations: 1, Method: domain.MethodUDO},
			keys:   []string{domain.FieldNeighbors},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidParams))

			var got []string
			for _, e := range domain.ValidationErrors(err) {
				var ve *domain.ValidationError
				require.True(t, errors.As(e, &ve))
				got = append(got, ve.Key)
			}
			assert.Equal(t, tt.keys, got)
		})
	}
}

func TestSolveParams_Validate_OK(t *testing.T) {
	assert.NoError(t, domain.DefaultSolveParams().Validate())
}

func TestSolveResult_Iteration(t *testing.T) {
	res := &domain.SolveResult{Iterations: []domain.IterationSummary{{Index: 0, File: "solution_0.pvd"}}}

	it, err := res.Iteration(0)
	require.NoError(t, err)
	assert.Equal(t, "solution_0.pvd", it.File)

	_, err = res.Iteration(1)
	assert.ErrorIs(t, err, domain.ErrIterationOutOfRange)
	_, err = res.Iteration(-1)
	assert.ErrorIs(t, err, domain.ErrIterationOutOfRange)
}

func TestSession_Lifecycle(t *testing.T) {
	s := domain.NewSession("abc")
	assert.Equal(t, domain.StatusIdle, s.Status)

	s.Begin(domain.DefaultSolveParams())
	assert.Equal(t, domain.StatusSolving, s.Status)

	s.Complete([]string{"solution_0.pvd"})
	assert.True(t, s.HasFile("solution_0.pvd"))
	assert.False(t, s.HasFile("solution_1.pvd"))

	snap := s.Snapshot()
	snap.Files[0] = "mutated"
	snap.Params.Bracket[0] = 0.5
	assert.Equal(t, "solution_0.pvd", s.Files[0])
	assert.Equal(t, 0.2, s.Params.Bracket[0])

	s.Begin(domain.DefaultSolveParams())
	s.Fail(errors.New("boom"))
	assert.Equal(t, domain.StatusFailed, s.Status)
	assert.Equal(t, "boom", s.Error)
	assert.Empty(t, s.Files)
}

func TestValidateSessionID(t *testing.T) {
	for _, id := range []string{"default", "3f2a-b_c.1", "A"} {
		assert.NoError(t, domain.ValidateSessionID(id), id)
	}
	for _, id := range []string{"", ".", "..", "a/b", ".hidden", strings.Repeat("x", 129)} {
		assert.ErrorIs(t, domain.ValidateSessionID(id), domain.ErrInvalidParams, id)
	}
}
