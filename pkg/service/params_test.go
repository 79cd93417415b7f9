package service_test

import (
	"testing"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParams(t *testing.T) {
	t.Run("Values Are Kept", func(t *testing.T) {
		p, err := service.DecodeParams(map[string]any{
			"problem":          "Spiral",
			"initTriHeight":    0.45,
			"max_iterations":   float64(3),
			"RefinementMethod": "UDO",
			"bracket":          nil,
			"neighbors":        float64(2),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ProblemSpiral, p.Problem)
		assert.Equal(t, 0.45, p.InitTriHeight)
		assert.Equal(t, 3, p.MaxIterations)
		assert.Equal(t, 2, p.Neighbors)
	})

	t.Run("Absent And Null Keep Defaults", func(t *testing.T) {
		p, err := service.DecodeParams(map[string]any{
			"problem":   "Sphere",
			"bracket":   nil,
			"neighbors": nil,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultSolveParams(), p)
	})

	t.Run("Explicit Zeros Are Rejected", func(t *testing.T) {
		p, err := service.DecodeParams(map[string]any{
			"initTriHeight":    float64(0),
			"max_iterations":   float64(0),
			"RefinementMethod": "UDO",
			"neighbors":        float64(0),
		})
		require.NoError(t, err)
		assert.Zero(t, p.InitTriHeight)
		assert.Zero(t, p.MaxIterations)
		assert.Zero(t, p.Neighbors)

		_, err = p.Normalize()
		assert.ErrorIs(t, err, domain.ErrInvalidParams)
	})

	t.Run("Fractional Integers", func(t *testing.T) {
		_, err := service.DecodeParams(map[string]any{"max_iterations": 2.7})
		assert.ErrorIs(t, err, domain.ErrInvalidParams)
		assert.ErrorContains(t, err, "not a whole number")

		_, err = service.DecodeParams(map[string]any{"neighbors": 1.5})
		assert.ErrorIs(t, err, domain.ErrInvalidParams)
	})

	t.Run("Wrong Type", func(t *testing.T) {
		_, err := service.DecodeParams(map[string]any{"bracket": "wide"})
		assert.ErrorIs(t, err, domain.ErrInvalidParams)
	})
}
