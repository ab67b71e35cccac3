package handlers

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/assistant"
	"github.com/ukydev/fleet-dispatch/internal/sim"
)

// ChatHandler runs operator messages through the assistant. Fleet
// commands the assistant recognizes are executed against the engine
// here; display-only intents are passed through for the client to act
// on.
type ChatHandler struct {
	service *assistant.Service
	engine  *sim.Engine
}

// NewChatHandler creates a chat handler.
func NewChatHandler(service *assistant.Service, engine *sim.Engine) *ChatHandler {
	return &ChatHandler{service: service, engine: engine}
}

// Chat answers an operator message
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	snap := assistant.Snapshot{
		Vehicles:   h.engine.Vehicles(),
		Locations:  h.engine.Locations(),
		Deliveries: h.engine.Deliveries(),
	}

	reply := h.service.Chat(r.Context(), req.Message, snap)
	h.execute(r, reply.Intent)

	writeJSON(w, http.StatusOK, reply)
}

// execute applies fleet-mutating intents. Show/hide intents are left in
// the reply untouched, the client owns the map overlays.
func (h *ChatHandler) execute(r *http.Request, intent *assistant.Intent) {
	if intent == nil {
		return
	}

	switch intent.Type {
	case assistant.IntentStartDelivery:
		id := intent.Payload["id"]
		log.WithField("delivery_id", id).Info("Assistant starting delivery")
		h.engine.StartDelivery(r.Context(), id)
	case assistant.IntentCancelDelivery:
		id := intent.Payload["id"]
		log.WithField("delivery_id", id).Info("Assistant cancelling delivery")
		h.engine.CancelDelivery(id)
	case assistant.IntentRerouteToLocation:
		vehicleID := intent.Payload["vehicleId"]
		locationID := intent.Payload["locationId"]
		log.WithFields(log.Fields{"vehicle_id": vehicleID, "location_id": locationID}).Info("Assistant rerouting vehicle")
		h.engine.RerouteVehicleTo(r.Context(), vehicleID, locationID)
	}
}
