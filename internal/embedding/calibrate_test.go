package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalibrateAnchors(t *testing.T) {
	// Anchor points of the documented curve.
	assert.Equal(t, 0.0, Calibrate(-1.0))
	assert.Equal(t, 0.0, Calibrate(0.0))
	assert.Equal(t, 0.0, Calibrate(0.30))
	assert.Equal(t, 0.93, Calibrate(0.95))
	assert.Equal(t, 0.93, Calibrate(1.0))

	// Midpoint of the ramp.
	assert.InDelta(t, 0.465, Calibrate((0.30+0.95)/2), 1e-9)
}

func TestCalibrateMonotonic(t *testing.T) {
	prev := -1.0
	for sim := -1.0; sim <= 1.0; sim += 0.01 {
		conf := Calibrate(sim)
		assert.GreaterOrEqual(t, conf, prev, "sim=%f", sim)
		assert.GreaterOrEqual(t, conf, 0.0)
		assert.LessOrEqual(t, conf, 1.0)
		prev = conf
	}
}

func TestCalibrateStaysBelowAutoExecute(t *testing.T) {
	// A purely semantic match must never clear the default auto-execute bar.
	for sim := 0.0; sim <= 1.0; sim += 0.005 {
		assert.Less(t, Calibrate(sim), 0.95)
	}
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	assert.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	assert.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}

func TestCosineSimilarityErrors(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 0}, []float32{1})
	assert.Error(t, err)

	sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	assert.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}
