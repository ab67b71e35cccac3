package models

import "time"

// SavedRoute is a named planner result an operator keeps for reuse.
type SavedRoute struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Origin      string    `json:"origin" bson:"origin"`
	Stops       []string  `json:"stops" bson:"stops"`
	Destination string    `json:"destination" bson:"destination"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// VehicleAssignment binds a saved route to a vehicle. A vehicle holds at
// most one assignment; assigning again replaces it.
type VehicleAssignment struct {
	VehicleID  string    `json:"vehicle_id" bson:"vehicle_id"`
	RouteID    string    `json:"route_id" bson:"route_id"`
	AssignedAt time.Time `json:"assigned_at" bson:"assigned_at"`
}

// PlannedAssignment schedules a saved route for one or more vehicles at
// a future start time.
type PlannedAssignment struct {
	ID         string    `json:"id" bson:"id"`
	RouteID    string    `json:"route_id" bson:"route_id"`
	VehicleIDs []string  `json:"vehicle_ids" bson:"vehicle_ids"`
	StartAt    time.Time `json:"start_at" bson:"start_at"`
	Notes      string    `json:"notes,omitempty" bson:"notes,omitempty"`
}

// RecentPlace is a geocoded place the operator recently used in the
// planner. Deduplicated by rounded coordinate.
type RecentPlace struct {
	ID    string    `json:"id" bson:"id"`
	Label string    `json:"label" bson:"label"`
	Lng   float64   `json:"lng" bson:"lng"`
	Lat   float64   `json:"lat" bson:"lat"`
	Ts    time.Time `json:"ts" bson:"ts"`
}
