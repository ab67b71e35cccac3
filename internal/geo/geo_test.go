package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	a := Point{Lon: -117.0, Lat: 32.5}

	// One degree of latitude is ~110540 m under the projection.
	b := Point{Lon: -117.0, Lat: 33.5}
	assert.InDelta(t, 110540.0, Distance(a, b), 0.001)

	// One degree of longitude is ~111320 m.
	c := Point{Lon: -116.0, Lat: 32.5}
	assert.InDelta(t, 111320.0, Distance(a, c), 0.001)

	// Symmetric and zero for identical points.
	assert.Equal(t, Distance(a, b), Distance(b, a))
	assert.Equal(t, 0.0, Distance(a, a))
}

func TestLerp(t *testing.T) {
	a := Point{Lon: 0, Lat: 0}
	b := Point{Lon: 2, Lat: 4}

	mid := Lerp(a, b, 0.5)
	assert.InDelta(t, 1.0, mid.Lon, 1e-9)
	assert.InDelta(t, 2.0, mid.Lat, 1e-9)

	// t is clamped.
	assert.Equal(t, a, Lerp(a, b, -1))
	assert.Equal(t, b, Lerp(a, b, 2))
}

func TestPolylineLength(t *testing.T) {
	tests := []struct {
		name string
		poly []Point
		want float64
	}{
		{"empty", nil, 0},
		{"single point", []Point{{Lon: 1, Lat: 1}}, 0},
		{
			"two segments of 0.01 deg lat",
			[]Point{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.01}, {Lon: 0, Lat: 0.02}},
			2 * 0.01 * 110540.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PolylineLength(tt.poly), 1e-6)
		})
	}
}

func TestPointAlong(t *testing.T) {
	poly := []Point{
		{Lon: 0, Lat: 0},
		{Lon: 0, Lat: 0.01},
		{Lon: 0, Lat: 0.02},
	}
	segLen := 0.01 * 110540.0

	// At zero offset, the first point.
	assert.Equal(t, poly[0], PointAlong(poly, 0))

	// Halfway through the first segment.
	p := PointAlong(poly, segLen/2)
	assert.InDelta(t, 0.005, p.Lat, 1e-9)

	// Exactly at the interior vertex.
	p = PointAlong(poly, segLen)
	assert.InDelta(t, 0.01, p.Lat, 1e-9)

	// Past the end clamps to the last point.
	p = PointAlong(poly, segLen*10)
	assert.Equal(t, poly[2], p)

	// Empty polyline returns the zero point rather than panicking.
	assert.Equal(t, Point{}, PointAlong(nil, 100))
}

func TestPointAlongZeroLengthSegment(t *testing.T) {
	poly := []Point{
		{Lon: 0, Lat: 0},
		{Lon: 0, Lat: 0},
		{Lon: 0, Lat: 0.01},
	}
	p := PointAlong(poly, 0.005*110540.0)
	assert.False(t, math.IsNaN(p.Lat))
	assert.InDelta(t, 0.005, p.Lat, 1e-9)
}

func TestJoinLegs(t *testing.T) {
	leg1 := []Point{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}
	leg2 := []Point{{Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}}

	joined := JoinLegs(leg1, leg2)
	assert.Equal(t, []Point{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}}, joined)

	// No duplicated consecutive point at the junction.
	for i := 0; i < len(joined)-1; i++ {
		assert.NotEqual(t, joined[i], joined[i+1])
	}

	assert.Equal(t, leg2, JoinLegs(nil, leg2))
	assert.Equal(t, leg1, JoinLegs(leg1, nil))
}
