package ingress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonarscope/internal/scope"
)

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{5 * math.Pi, math.Pi},
		{-4 * math.Pi, 0},
		{-1e-18, 0},
	}
	for _, tt := range tests {
		got := WrapAngle(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "WrapAngle(%v)", tt.in)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Less(t, got, 2*math.Pi)
	}
}

func TestNormalize_Valid(t *testing.T) {
	now := time.Unix(100, 0)

	s, err := Normalize(scope.RawReading{Angle: -math.Pi / 2, Distance: 5}, now)
	require.NoError(t, err)
	assert.InDelta(t, 3*math.Pi/2, s.Angle, 1e-12)
	assert.Equal(t, 5.0, s.Distance)
	assert.False(t, s.HasIntensity)
	assert.Equal(t, 1.0, s.Level())
	assert.True(t, s.CapturedAt.Equal(now))

	s, err = Normalize(scope.RawReading{Angle: 1, Distance: 0, Intensity: 0.4, HasIntensity: true}, now)
	require.NoError(t, err)
	assert.True(t, s.HasIntensity)
	assert.Equal(t, 0.4, s.Level())
}

func TestNormalize_ClampsIntensity(t *testing.T) {
	s, err := Normalize(scope.RawReading{Distance: 1, Intensity: 3, HasIntensity: true}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Intensity)

	s, err = Normalize(scope.RawReading{Distance: 1, Intensity: -2, HasIntensity: true}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Intensity)
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  scope.RawReading
	}{
		{"negative distance", scope.RawReading{Distance: -0.1}},
		{"NaN distance", scope.RawReading{Distance: math.NaN()}},
		{"infinite distance", scope.RawReading{Distance: math.Inf(1)}},
		{"NaN angle", scope.RawReading{Angle: math.NaN(), Distance: 1}},
		{"infinite angle", scope.RawReading{Angle: math.Inf(-1), Distance: 1}},
		{"NaN intensity", scope.RawReading{Distance: 1, Intensity: math.NaN(), HasIntensity: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, time.Time{})
			require.Error(t, err)
			assert.ErrorIs(t, err, scope.ErrInvalidReading)
		})
	}
}
