package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmoothstep(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0.0, Smoothstep(0.3, 0.5, 0.1))
	assert.Equal(1.0, Smoothstep(0.3, 0.5, 0.7))
	// Hermite, not linear: midpoint is 0.5 but quarter point is not 0.25
	assert.InDelta(0.5, Smoothstep(0, 1, 0.5), 1e-12)
	assert.InDelta(0.15625, Smoothstep(0, 1, 0.25), 1e-12)
}

func TestFragmentAlpha_File(t *testing.T) {
	assert := assert.New(t)
	for _, test := range []struct {
		Name      string
		R         float64
		WantAlpha float64
		WantDrop  bool
	}{
		{Name: "center is opaque", R: 0.0, WantAlpha: 1.0},
		{Name: "inside hard radius", R: 0.3, WantAlpha: 1.0},
		{Name: "falloff midpoint", R: 0.4, WantAlpha: 0.5},
		{Name: "edge is discarded", R: 0.5, WantDrop: true},
		{Name: "outside is discarded", R: 0.7, WantDrop: true},
	} {
		t.Run(test.Name, func(t *testing.T) {
			alpha, dropped := FragmentAlpha(0, test.R, 1.0)
			assert.Equal(test.WantDrop, dropped)
			if !test.WantDrop {
				assert.InDelta(test.WantAlpha, alpha, 1e-9)
			}
		})
	}
}

func TestFragmentAlpha_DirectoryGlow(t *testing.T) {
	assert := assert.New(t)
	// inside the circle the full circle alpha wins over the glow
	alpha, dropped := FragmentAlpha(1, 0.2, 1.0)
	assert.False(dropped)
	assert.Equal(1.0, alpha)
	// outside the circle the glow keeps directories visible
	alpha, dropped = FragmentAlpha(1, 0.6, 1.0)
	assert.False(dropped, "directory glow must reach r=0.6")
	assert.Greater(alpha, 0.0)
	assert.LessOrEqual(alpha, GlowMaxAlpha)
	// a file at the same radius is discarded
	_, dropped = FragmentAlpha(0, 0.6, 1.0)
	assert.True(dropped)
	// glow fades out at its outer radius
	_, dropped = FragmentAlpha(1, 0.8, 1.0)
	assert.True(dropped)
}

func TestFragmentAlpha_BaseAlphaModulates(t *testing.T) {
	assert := assert.New(t)
	alpha, dropped := FragmentAlpha(0, 0.0, 0.5)
	assert.False(dropped)
	assert.Equal(0.5, alpha)
	_, dropped = FragmentAlpha(0, 0.0, 0.005)
	assert.True(dropped, "alpha below the discard threshold is dropped entirely")
}

func TestPointSize(t *testing.T) {
	assert := assert.New(t)
	// amplitude bounds the pulse
	for time := 0.0; time < 10; time += 0.1 {
		size := PointSize(4, 2, time, 17)
		assert.GreaterOrEqual(size, 4*2*(1-PulseAmplitude)-1e-9)
		assert.LessOrEqual(size, 4*2*(1+PulseAmplitude)+1e-9)
	}
	// phase offset desynchronizes neighboring IDs
	assert.NotEqual(PointSize(4, 2, 1.0, 1), PointSize(4, 2, 1.0, 2))
	// IDs 100 apart share a phase
	assert.Equal(PointSize(4, 2, 1.0, 7), PointSize(4, 2, 1.0, 107))
	// pulse is periodic in time
	period := 2 * math.Pi / PulseFrequency
	assert.InDelta(PointSize(4, 2, 1.0, 7), PointSize(4, 2, 1.0+period, 7), 1e-9)
}
