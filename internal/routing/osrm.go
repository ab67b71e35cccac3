package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/geo"
)

// DefaultOSRMBaseURL is the public OSRM demo server.
const DefaultOSRMBaseURL = "https://router.project-osrm.org"

// OSRMProvider fetches driving routes from an OSRM instance.
type OSRMProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewOSRMProvider creates a provider against the given base URL, or the
// public demo server when empty.
func NewOSRMProvider(baseURL string) *OSRMProvider {
	if baseURL == "" {
		baseURL = DefaultOSRMBaseURL
	}
	return &OSRMProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch implements Provider using the OSRM driving profile with full
// GeoJSON geometry.
func (p *OSRMProvider) Fetch(ctx context.Context, origin, dest geo.Point) ([]geo.Point, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		p.BaseURL, origin.Lon, origin.Lat, dest.Lon, dest.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		log.WithError(err).Warn("OSRM request failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var obj struct {
		Routes []struct {
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode osrm response: %w", err)
	}
	if len(obj.Routes) == 0 || len(obj.Routes[0].Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("no route between %.4f,%.4f and %.4f,%.4f",
			origin.Lon, origin.Lat, dest.Lon, dest.Lat)
	}

	coords := obj.Routes[0].Geometry.Coordinates
	pts := make([]geo.Point, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, geo.Point{Lon: c[0], Lat: c[1]})
	}
	return pts, nil
}
