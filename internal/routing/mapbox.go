package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ukydev/fleet-dispatch/internal/geo"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// MapboxProvider fetches driving routes from the Mapbox directions API
// using the driving-traffic profile.
type MapboxProvider struct {
	Token   string
	BaseURL string
	Client  *http.Client
}

// NewMapboxProvider creates a provider with the given access token.
func NewMapboxProvider(token string) *MapboxProvider {
	return &MapboxProvider{
		Token:   token,
		BaseURL: "https://api.mapbox.com",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type mapboxRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
}

type mapboxResponse struct {
	Routes []mapboxRoute `json:"routes"`
}

func (p *MapboxProvider) directions(ctx context.Context, waypoints []geo.Point) (*mapboxResponse, error) {
	if p.Token == "" {
		return nil, fmt.Errorf("mapbox token not configured")
	}
	coords := make([]string, len(waypoints))
	for i, w := range waypoints {
		coords[i] = fmt.Sprintf("%.6f,%.6f", w.Lon, w.Lat)
	}

	q := url.Values{}
	q.Set("alternatives", "true")
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("steps", "false")
	q.Set("access_token", p.Token)

	endpoint := fmt.Sprintf("%s/directions/v5/mapbox/driving-traffic/%s?%s",
		p.BaseURL, strings.Join(coords, ";"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox status %d", resp.StatusCode)
	}

	var out mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode mapbox response: %w", err)
	}
	return &out, nil
}

// Fetch implements Provider: the primary route between two points.
func (p *MapboxProvider) Fetch(ctx context.Context, origin, dest geo.Point) ([]geo.Point, error) {
	out, err := p.directions(ctx, []geo.Point{origin, dest})
	if err != nil {
		return nil, err
	}
	if len(out.Routes) == 0 {
		return nil, fmt.Errorf("no route")
	}
	return toPolyline(out.Routes[0]), nil
}

// Plan resolves a multi-stop route and returns every returned variant:
// the first as primary, the rest as alternatives.
func (p *MapboxProvider) Plan(ctx context.Context, origin geo.Point, stops []geo.Point, dest geo.Point) (*models.RouteCollection, error) {
	waypoints := make([]geo.Point, 0, len(stops)+2)
	waypoints = append(waypoints, origin)
	waypoints = append(waypoints, stops...)
	waypoints = append(waypoints, dest)

	out, err := p.directions(ctx, waypoints)
	if err != nil {
		return nil, err
	}
	if len(out.Routes) == 0 {
		return nil, fmt.Errorf("no route")
	}

	rc := &models.RouteCollection{}
	for i, r := range out.Routes {
		variant := models.VariantAlt
		if i == 0 {
			variant = models.VariantPrimary
		}
		rc.Features = append(rc.Features, models.RouteFeature{
			Geometry: toPolyline(r),
			Properties: models.RouteProperties{
				DistanceM: r.Distance,
				DurationS: r.Duration,
				Variant:   variant,
			},
		})
	}
	return rc, nil
}

func toPolyline(r mapboxRoute) []geo.Point {
	pts := make([]geo.Point, 0, len(r.Geometry.Coordinates))
	for _, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, geo.Point{Lon: c[0], Lat: c[1]})
	}
	return pts
}
