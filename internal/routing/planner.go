package routing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ukydev/fleet-dispatch/internal/geo"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// Planner resolves a multi-stop route into a displayable collection with
// a primary variant and optional alternatives.
type Planner interface {
	Plan(ctx context.Context, origin geo.Point, stops []geo.Point, dest geo.Point) (*models.RouteCollection, error)
}

// ProviderPlanner adapts a pairwise Provider into a Planner by chaining
// legs through each stop. It produces a single primary variant; duration
// is estimated from the fleet's average speed.
type ProviderPlanner struct {
	Provider    Provider
	AvgSpeedMPS float64
}

// Plan implements Planner.
func (p *ProviderPlanner) Plan(ctx context.Context, origin geo.Point, stops []geo.Point, dest geo.Point) (*models.RouteCollection, error) {
	waypoints := make([]geo.Point, 0, len(stops)+2)
	waypoints = append(waypoints, origin)
	waypoints = append(waypoints, stops...)
	waypoints = append(waypoints, dest)

	var poly []geo.Point
	for i := 0; i < len(waypoints)-1; i++ {
		leg, err := p.Provider.Fetch(ctx, waypoints[i], waypoints[i+1])
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}
		poly = geo.JoinLegs(poly, leg)
	}
	if len(poly) < 2 {
		return nil, fmt.Errorf("no route")
	}

	distance := geo.PolylineLength(poly)
	speed := p.AvgSpeedMPS
	if speed <= 0 {
		speed = 12
	}
	return &models.RouteCollection{
		Features: []models.RouteFeature{
			{
				Geometry: poly,
				Properties: models.RouteProperties{
					DistanceM: distance,
					DurationS: distance / speed,
					Variant:   models.VariantPrimary,
				},
			},
		},
	}, nil
}

// ParseCoord parses a "lon, lat" string as entered in the planner form.
func ParseCoord(s string) (geo.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("invalid coordinate %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude %q", parts[1])
	}
	return geo.Point{Lon: lon, Lat: lat}, nil
}
