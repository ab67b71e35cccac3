package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/geo"
	"github.com/ukydev/fleet-dispatch/internal/models"
	"github.com/ukydev/fleet-dispatch/internal/routing"
)

// PlannerHandler serves the route planner: directions requests plus the
// operator's saved routes, assignments and recent places.
type PlannerHandler struct {
	planner routing.Planner
	store   db.PlannerStore
}

// NewPlannerHandler creates a planner handler.
func NewPlannerHandler(planner routing.Planner, store db.PlannerStore) *PlannerHandler {
	return &PlannerHandler{planner: planner, store: store}
}

// PlanRoute computes directions between an origin, optional stops and a
// destination, each given as "lon, lat" strings.
func (h *PlannerHandler) PlanRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin      string   `json:"origin"`
		Stops       []string `json:"stops"`
		Destination string   `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	origin, err := routing.ParseCoord(req.Origin)
	if err != nil {
		http.Error(w, "Invalid origin", http.StatusBadRequest)
		return
	}
	dest, err := routing.ParseCoord(req.Destination)
	if err != nil {
		http.Error(w, "Invalid destination", http.StatusBadRequest)
		return
	}
	stops := make([]geo.Point, 0, len(req.Stops))
	for _, s := range req.Stops {
		p, err := routing.ParseCoord(s)
		if err != nil {
			http.Error(w, "Invalid stop", http.StatusBadRequest)
			return
		}
		stops = append(stops, p)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	collection, err := h.planner.Plan(ctx, origin, stops, dest)
	if err != nil {
		log.WithError(err).Warn("Route planning failed")
		http.Error(w, "Route planning failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, collection)
}

// SaveRoute persists a planned route under a name
func (h *PlannerHandler) SaveRoute(w http.ResponseWriter, r *http.Request) {
	var req models.SavedRoute
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Origin == "" || req.Destination == "" {
		http.Error(w, "Name, origin and destination are required", http.StatusBadRequest)
		return
	}

	saved, err := h.store.SaveRoute(r.Context(), req)
	if err != nil {
		http.Error(w, "Failed to save route", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ListRoutes returns all saved routes, newest first
func (h *PlannerHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.store.ListRoutes(r.Context())
	if err != nil {
		http.Error(w, "Failed to list routes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

// RenameRoute changes a saved route's name
func (h *PlannerHandler) RenameRoute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	if err := h.store.RenameRoute(r.Context(), id, req.Name); err != nil {
		http.Error(w, "Route not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// DeleteRoute removes a saved route and any assignments that use it
func (h *PlannerHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteRoute(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete route", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignRoute binds a saved route to a vehicle, replacing any previous
// assignment for that vehicle.
func (h *PlannerHandler) AssignRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleID string `json:"vehicle_id"`
		RouteID   string `json:"route_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.VehicleID == "" || req.RouteID == "" {
		http.Error(w, "Vehicle and route are required", http.StatusBadRequest)
		return
	}

	if err := h.store.AssignRoute(r.Context(), req.VehicleID, req.RouteID); err != nil {
		http.Error(w, "Failed to assign route", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "assigned"})
}

// ListAssignments returns all current vehicle/route assignments
func (h *PlannerHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.store.ListAssignments(r.Context())
	if err != nil {
		http.Error(w, "Failed to list assignments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

// AddPlanned schedules a saved route for a future start time
func (h *PlannerHandler) AddPlanned(w http.ResponseWriter, r *http.Request) {
	var req models.PlannedAssignment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.RouteID == "" || req.StartAt.IsZero() {
		http.Error(w, "Route and start time are required", http.StatusBadRequest)
		return
	}

	planned, err := h.store.AddPlanned(r.Context(), req)
	if err != nil {
		http.Error(w, "Failed to schedule assignment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, planned)
}

// ListPlanned returns scheduled assignments ordered by start time
func (h *PlannerHandler) ListPlanned(w http.ResponseWriter, r *http.Request) {
	planned, err := h.store.ListPlanned(r.Context())
	if err != nil {
		http.Error(w, "Failed to list scheduled assignments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, planned)
}

// DeletePlanned removes a scheduled assignment
func (h *PlannerHandler) DeletePlanned(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeletePlanned(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete scheduled assignment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddRecentPlace records a place the operator used in the planner
func (h *PlannerHandler) AddRecentPlace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string  `json:"label"`
		Lng   float64 `json:"lng"`
		Lat   float64 `json:"lat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Label == "" {
		http.Error(w, "Label is required", http.StatusBadRequest)
		return
	}

	if err := h.store.AddRecentPlace(r.Context(), req.Label, req.Lng, req.Lat); err != nil {
		http.Error(w, "Failed to record place", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRecentPlaces returns recently used places, newest first
func (h *PlannerHandler) ListRecentPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := h.store.ListRecentPlaces(r.Context(), 10)
	if err != nil {
		http.Error(w, "Failed to list places", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, places)
}
