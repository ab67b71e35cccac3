// Package assistant turns free-text operator messages into replies and
// structured fleet intents. A rule-based responder answers locally; an
// optional external language model can be layered on top, falling back
// to the rules whenever it is unavailable.
package assistant

import "github.com/ukydev/fleet-dispatch/internal/models"

// IntentType names the structured commands the host can execute.
type IntentType string

const (
	IntentStartDelivery     IntentType = "start_delivery"
	IntentCancelDelivery    IntentType = "cancel_delivery"
	IntentRerouteToLocation IntentType = "reroute_to_location"
	IntentShowVehicleRoute  IntentType = "show_vehicle_route"
	IntentHideAllRoutes     IntentType = "hide_all_routes"
)

// Intent is a parsed command plus its payload.
type Intent struct {
	Type    IntentType        `json:"type"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Reply is the assistant's answer: text for the chat panel and an
// optional intent for the host to act on.
type Reply struct {
	Text         string  `json:"reply"`
	Intent       *Intent `json:"intent,omitempty"`
	Provider     string  `json:"provider"`
	UsedFallback bool    `json:"usedFallback"`
}

// Snapshot is the fleet state the assistant answers from.
type Snapshot struct {
	Vehicles   []models.Vehicle
	Locations  []models.Location
	Deliveries []models.Delivery
}
