package models

import "github.com/ukydev/fleet-dispatch/internal/geo"

// VehicleType enumerates the fleet's vehicle classes.
type VehicleType string

const (
	TypeVan        VehicleType = "van"
	TypeCargoVan   VehicleType = "cargo_van"
	TypeLightTruck VehicleType = "light_truck"
	TypeBoxTruck   VehicleType = "box_truck"
	TypeSemiTruck  VehicleType = "semi_truck"
	TypePickup     VehicleType = "pickup"
	TypeMotorcycle VehicleType = "motorcycle"
	TypeCargoBike  VehicleType = "cargo_bike"
)

// VehicleState is the engine-owned movement state of a vehicle.
type VehicleState string

const (
	StateIdle    VehicleState = "idle"
	StateEnRoute VehicleState = "en_route"
	StateOffline VehicleState = "offline"
)

// Vehicle represents a fleet vehicle. Position, State, Speed and Battery
// are mutated by the simulation engine while it owns the snapshot; the
// remaining fields are display-only.
type Vehicle struct {
	ID           string       `json:"id" bson:"id"`
	Alias        string       `json:"alias" bson:"alias"`
	Type         VehicleType  `json:"type" bson:"type"`
	Position     geo.Point    `json:"position" bson:"position"`
	Heading      float64      `json:"heading" bson:"heading"`
	State        VehicleState `json:"state" bson:"state"`
	Speed        float64      `json:"speed" bson:"speed"`     // km/h, 0 while idle
	Battery      float64      `json:"battery" bson:"battery"` // 0-100
	LicensePlate string       `json:"license_plate,omitempty" bson:"license_plate,omitempty"`
	CapacityKg   float64      `json:"capacity_kg,omitempty" bson:"capacity_kg,omitempty"`
	Manufacturer string       `json:"manufacturer,omitempty" bson:"manufacturer,omitempty"`
	Model        string       `json:"model,omitempty" bson:"model,omitempty"`
	Year         int          `json:"year,omitempty" bson:"year,omitempty"`
}

// KPI summarizes fleet activity for the dashboard header cards.
type KPI struct {
	ActiveVehicles  int `json:"active_vehicles"`
	TripsInProgress int `json:"trips_in_progress"`
	IdleVehicles    int `json:"idle_vehicles"`
	OfflineVehicles int `json:"offline_vehicles"`
}

// ComputeKPI derives dashboard counters from a vehicle snapshot.
func ComputeKPI(vehicles []Vehicle) KPI {
	var kpi KPI
	for _, v := range vehicles {
		switch v.State {
		case StateEnRoute:
			kpi.TripsInProgress++
			kpi.ActiveVehicles++
		case StateIdle:
			kpi.IdleVehicles++
			kpi.ActiveVehicles++
		case StateOffline:
			kpi.OfflineVehicles++
		}
	}
	return kpi
}
