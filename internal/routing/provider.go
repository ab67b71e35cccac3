// Package routing resolves driving paths between coordinates. All
// providers return an ordered polyline; callers must treat an empty
// polyline as a degraded but non-fatal result.
package routing

import (
	"context"

	"github.com/ukydev/fleet-dispatch/internal/geo"
)

// Provider resolves a driving path between two coordinates. A failed
// lookup returns an empty polyline together with the error; callers that
// have no error channel (the simulation engine) may ignore the error and
// proceed with the empty path.
type Provider interface {
	Fetch(ctx context.Context, origin, dest geo.Point) ([]geo.Point, error)
}

// StraightLineProvider is the offline fallback: it draws a direct line
// between origin and destination, subdivided into equal segments so the
// engine still interpolates smoothly.
type StraightLineProvider struct {
	Segments int
}

// Fetch implements Provider. It never fails.
func (p *StraightLineProvider) Fetch(_ context.Context, origin, dest geo.Point) ([]geo.Point, error) {
	n := p.Segments
	if n < 1 {
		n = 8
	}
	pts := make([]geo.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		pts = append(pts, geo.Lerp(origin, dest, float64(i)/float64(n)))
	}
	return pts, nil
}
