// Package geo provides distance and interpolation helpers over
// longitude/latitude pairs using a cheap equirectangular approximation.
package geo

import "math"

// Meters per degree near mid latitudes. The projection is deliberately
// not geodesically exact; it only has to be consistent so arc-length
// progress along a polyline stays comparable between ticks.
const (
	metersPerDegLon = 111320.0
	metersPerDegLat = 110540.0
)

// Point is a single coordinate in GeoJSON order: longitude first.
type Point struct {
	Lon float64 `json:"lon" bson:"lon"`
	Lat float64 `json:"lat" bson:"lat"`
}

// Distance returns the approximate distance between two points in meters.
func Distance(a, b Point) float64 {
	dx := (a.Lon - b.Lon) * metersPerDegLon
	dy := (a.Lat - b.Lat) * metersPerDegLat
	return math.Hypot(dx, dy)
}

// Lerp linearly interpolates between a and b. t is clamped to [0, 1].
func Lerp(a, b Point, t float64) Point {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return Point{
		Lon: a.Lon + (b.Lon-a.Lon)*t,
		Lat: a.Lat + (b.Lat-a.Lat)*t,
	}
}

// PolylineLength returns the total arc length of a polyline in meters.
// Polylines with fewer than two points have zero length.
func PolylineLength(poly []Point) float64 {
	total := 0.0
	for i := 0; i < len(poly)-1; i++ {
		total += Distance(poly[i], poly[i+1])
	}
	return total
}

// PointAlong walks the polyline from the start and returns the coordinate
// at the given arc-length offset in meters. Offsets past the end clamp to
// the last point. Walking from index 0 every call is O(n) but polylines
// stay short enough that resuming from a cached segment is not worth it.
func PointAlong(poly []Point, offsetM float64) Point {
	if len(poly) == 0 {
		return Point{}
	}
	if offsetM <= 0 {
		return poly[0]
	}
	acc := 0.0
	for i := 0; i < len(poly)-1; i++ {
		seg := Distance(poly[i], poly[i+1])
		if acc+seg >= offsetM {
			if seg == 0 {
				return poly[i+1]
			}
			return Lerp(poly[i], poly[i+1], (offsetM-acc)/seg)
		}
		acc += seg
	}
	return poly[len(poly)-1]
}

// JoinLegs concatenates two route legs into one polyline, dropping the
// duplicated junction point at the boundary when both legs are non-empty.
func JoinLegs(leg1, leg2 []Point) []Point {
	if len(leg1) == 0 {
		return append([]Point(nil), leg2...)
	}
	joined := make([]Point, 0, len(leg1)+len(leg2))
	joined = append(joined, leg1...)
	if len(leg2) > 0 {
		joined = append(joined, leg2[1:]...)
	}
	return joined
}
