package handlers

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/models"
	"github.com/ukydev/fleet-dispatch/internal/sim"
)

// FleetHandler exposes the live fleet state and the dispatch
// mutations over HTTP. All state lives in the simulation engine,
// the handler only validates the edge.
type FleetHandler struct {
	engine *sim.Engine
}

// NewFleetHandler creates a fleet handler bound to the engine.
func NewFleetHandler(engine *sim.Engine) *FleetHandler {
	return &FleetHandler{engine: engine}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

// GetVehicles returns the current vehicle snapshot
func (h *FleetHandler) GetVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Vehicles())
}

// GetLocations returns warehouses and stores
func (h *FleetHandler) GetLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Locations())
}

// GetDeliveries returns the current delivery snapshot
func (h *FleetHandler) GetDeliveries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Deliveries())
}

// GetKPI returns aggregate fleet metrics
func (h *FleetHandler) GetKPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.KPI())
}

func (h *FleetHandler) findDelivery(id string) *models.Delivery {
	for _, d := range h.engine.Deliveries() {
		if d.ID == id {
			return &d
		}
	}
	return nil
}

func (h *FleetHandler) findVehicle(id string) *models.Vehicle {
	for _, v := range h.engine.Vehicles() {
		if v.ID == id {
			return &v
		}
	}
	return nil
}

func (h *FleetHandler) findLocation(id string) *models.Location {
	for _, l := range h.engine.Locations() {
		if l.ID == id {
			return &l
		}
	}
	return nil
}

// StartDelivery dispatches a pending delivery
func (h *FleetHandler) StartDelivery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d := h.findDelivery(id)
	if d == nil {
		http.Error(w, "Delivery not found", http.StatusNotFound)
		return
	}
	if d.Status != models.DeliveryPending && d.Status != models.DeliveryPicking {
		http.Error(w, "Delivery cannot be started", http.StatusConflict)
		return
	}

	h.engine.StartDelivery(r.Context(), id)

	log.WithField("delivery_id", id).Info("Delivery start requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// CancelDelivery cancels an active or pending delivery
func (h *FleetHandler) CancelDelivery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d := h.findDelivery(id)
	if d == nil {
		http.Error(w, "Delivery not found", http.StatusNotFound)
		return
	}
	if d.Status.Terminal() {
		http.Error(w, "Delivery already completed", http.StatusConflict)
		return
	}

	h.engine.CancelDelivery(id)

	log.WithField("delivery_id", id).Info("Delivery cancelled")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// RerouteVehicle sends a vehicle to a named location, cancelling any
// delivery it was on.
func (h *FleetHandler) RerouteVehicle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.findVehicle(id) == nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	var req struct {
		LocationID string `json:"location_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if h.findLocation(req.LocationID) == nil {
		http.Error(w, "Location not found", http.StatusNotFound)
		return
	}

	h.engine.RerouteVehicleTo(r.Context(), id, req.LocationID)

	log.WithFields(log.Fields{"vehicle_id": id, "location_id": req.LocationID}).Info("Vehicle rerouted")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rerouting"})
}

// RemoveVehicle takes a vehicle out of the fleet
func (h *FleetHandler) RemoveVehicle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.findVehicle(id) == nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}

	h.engine.RemoveVehicle(id)

	log.WithField("vehicle_id", id).Info("Vehicle removed")
	w.WriteHeader(http.StatusNoContent)
}
