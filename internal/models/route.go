package models

import "github.com/ukydev/fleet-dispatch/internal/geo"

// Route variants as rendered on the map.
const (
	VariantPrimary = "primary"
	VariantAlt     = "alt"
)

// RouteProperties carries display metadata for a route feature.
type RouteProperties struct {
	DistanceM  float64 `json:"distance,omitempty" bson:"distance,omitempty"`
	DurationS  float64 `json:"duration,omitempty" bson:"duration,omitempty"`
	Variant    string  `json:"variant,omitempty" bson:"variant,omitempty"`
	VehicleID  string  `json:"vehicleId,omitempty" bson:"vehicle_id,omitempty"`
	DeliveryID string  `json:"deliveryId,omitempty" bson:"delivery_id,omitempty"`
}

// RouteFeature is a single displayable path: a LineString plus metadata.
type RouteFeature struct {
	Geometry   []geo.Point     `json:"geometry" bson:"geometry"`
	Properties RouteProperties `json:"properties" bson:"properties"`
}

// RouteCollection groups route features, typically one primary route and
// zero or more alternatives.
type RouteCollection struct {
	Features []RouteFeature `json:"features" bson:"features"`
}

// Primary returns the primary route feature, or nil if none exists.
func (rc *RouteCollection) Primary() *RouteFeature {
	if rc == nil {
		return nil
	}
	for i := range rc.Features {
		if rc.Features[i].Properties.Variant == VariantPrimary {
			return &rc.Features[i]
		}
	}
	return nil
}

// DeliveryRoute builds the displayable overlay for an en-route delivery.
func DeliveryRoute(poly []geo.Point, vehicleID, deliveryID string) *RouteCollection {
	return &RouteCollection{
		Features: []RouteFeature{
			{
				Geometry: poly,
				Properties: RouteProperties{
					Variant:    VariantPrimary,
					VehicleID:  vehicleID,
					DeliveryID: deliveryID,
				},
			},
		},
	}
}
