package assistant

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

// Responder is the local rule-based interpreter. It needs no external
// services and is the fallback for the model-backed service.
type Responder struct{}

var (
	startDeliveryRe  = regexp.MustCompile(`(?i)\b(?:start|begin|launch)\s+delivery\s+([\w-]+)`)
	cancelDeliveryRe = regexp.MustCompile(`(?i)\b(?:cancel|abort)\s+delivery\s+([\w-]+)`)
	rerouteRe        = regexp.MustCompile(`(?i)\b(?:send|reroute|dispatch)\s+(?:vehicle\s+)?([\w-]+)\s+to\s+(.+)`)
	showRouteRe      = regexp.MustCompile(`(?i)\bshow\s+(?:the\s+)?route\s+(?:for|of)\s+([\w-]+)`)
	hideRoutesRe     = regexp.MustCompile(`(?i)\b(?:hide|clear)\s+(?:all\s+)?routes\b`)
)

// Interpret parses a free-text message against the fleet snapshot and
// returns a reply plus an optional structured intent.
func (r *Responder) Interpret(message string, snap Snapshot) Reply {
	if intent, text, ok := r.parseCommand(message, snap); ok {
		return Reply{Text: text, Intent: intent, Provider: "local"}
	}
	return Reply{Text: r.answer(message, snap), Provider: "local"}
}

func (r *Responder) parseCommand(message string, snap Snapshot) (*Intent, string, bool) {
	if m := startDeliveryRe.FindStringSubmatch(message); m != nil {
		id := normalizeID(m[1], snapDeliveryIDs(snap))
		return &Intent{Type: IntentStartDelivery, Payload: map[string]string{"id": id}},
			fmt.Sprintf("Starting delivery %s.", id), true
	}
	if m := cancelDeliveryRe.FindStringSubmatch(message); m != nil {
		id := normalizeID(m[1], snapDeliveryIDs(snap))
		return &Intent{Type: IntentCancelDelivery, Payload: map[string]string{"id": id}},
			fmt.Sprintf("Cancelling delivery %s.", id), true
	}
	if m := rerouteRe.FindStringSubmatch(message); m != nil {
		vehicle := findVehicle(snap.Vehicles, m[1])
		location := findLocation(snap.Locations, strings.TrimSpace(m[2]))
		if vehicle != nil && location != nil {
			return &Intent{
					Type:    IntentRerouteToLocation,
					Payload: map[string]string{"vehicleId": vehicle.ID, "locationId": location.ID},
				},
				fmt.Sprintf("On it, sending %s to %s.", vehicle.Alias, location.Name), true
		}
		if vehicle == nil {
			return nil, fmt.Sprintf("I couldn't find a vehicle matching %q.", m[1]), true
		}
		return nil, fmt.Sprintf("I couldn't find a location matching %q.", strings.TrimSpace(m[2])), true
	}
	if m := showRouteRe.FindStringSubmatch(message); m != nil {
		return &Intent{Type: IntentShowVehicleRoute, Payload: map[string]string{"vehicleToken": strings.ToLower(m[1])}},
			fmt.Sprintf("Showing the route for %s.", m[1]), true
	}
	if hideRoutesRe.MatchString(message) {
		return &Intent{Type: IntentHideAllRoutes}, "Hiding all route overlays.", true
	}
	return nil, "", false
}

// answer produces the status-question responses.
func (r *Responder) answer(message string, snap Snapshot) string {
	lower := strings.ToLower(message)
	vehicles := snap.Vehicles

	if len(vehicles) == 0 {
		return "I'm still loading the fleet data. Please wait a moment and try again."
	}

	enRoute := filterByState(vehicles, models.StateEnRoute)
	idle := filterByState(vehicles, models.StateIdle)
	offline := filterByState(vehicles, models.StateOffline)

	switch {
	case containsAny(lower, "en route", "moving", "driving"):
		return fmt.Sprintf("Currently, %d vehicles are en route:\n%s\n\nTotal fleet: %d vehicles",
			len(enRoute), vehicleList(enRoute), len(vehicles))

	case containsAny(lower, "offline", "disconnected"):
		if len(offline) == 0 {
			return "Great news! All vehicles are currently online and operational."
		}
		lines := make([]string, len(offline))
		for i, v := range offline {
			lines[i] = fmt.Sprintf("%s (%s) - Battery: %.0f%%", v.Alias, v.ID, v.Battery)
		}
		return fmt.Sprintf("%d vehicles are currently offline:\n%s\n\nThese vehicles may need immediate attention.",
			len(offline), strings.Join(lines, "\n"))

	case containsAny(lower, "idle", "parked"):
		return fmt.Sprintf("%d vehicles are currently idle:\n%s\n\nThese vehicles are available for dispatch.",
			len(idle), vehicleList(idle))

	case containsAny(lower, "battery", "charge"):
		return r.batteryAnswer(vehicles)

	case containsAny(lower, "speed", "fastest"):
		return r.speedAnswer(enRoute)

	case containsAny(lower, "delivery", "deliveries"):
		return r.deliveryAnswer(snap.Deliveries)

	case typeToken(lower) != "":
		return r.typeAnswer(vehicles, typeToken(lower))

	case containsAny(lower, "status", "overview", "summary"):
		return fmt.Sprintf("Fleet Overview:\n\nTotal Vehicles: %d\nEn Route: %d\nIdle: %d\nOffline: %d\n\nAverage Battery: %.0f%%\n\nFleet is operating normally. How can I assist you further?",
			len(vehicles), len(enRoute), len(idle), len(offline), avgBattery(vehicles))

	case containsAny(lower, "hello", "hi "):
		return "Hello! I'm your Fleet Operations Assistant. I can help you with:\n\n- Vehicle status and locations\n- Battery levels\n- Speed and performance\n- Deliveries and route planning\n\nWhat would you like to know?"

	default:
		return fmt.Sprintf("Based on current data, we have %d vehicles in the fleet. %d are currently en route. Try asking about vehicle status, battery levels, or deliveries.",
			len(vehicles), len(enRoute))
	}
}

func (r *Responder) batteryAnswer(vehicles []models.Vehicle) string {
	var low []string
	for _, v := range vehicles {
		if v.Battery < 30 {
			low = append(low, fmt.Sprintf("%s: %.0f%%", v.Alias, v.Battery))
		}
	}
	resp := fmt.Sprintf("Average battery level: %.0f%%\n", avgBattery(vehicles))
	if len(low) > 0 {
		resp += fmt.Sprintf("\n%d vehicles have low battery:\n%s", len(low), strings.Join(low, ", "))
	} else {
		resp += "\nAll vehicles have sufficient battery levels."
	}
	return resp
}

func (r *Responder) speedAnswer(enRoute []models.Vehicle) string {
	var moving []models.Vehicle
	for _, v := range enRoute {
		if v.Speed > 0 {
			moving = append(moving, v)
		}
	}
	if len(moving) == 0 {
		return "No vehicles are currently moving."
	}
	fastest := moving[0]
	sum := 0.0
	for _, v := range moving {
		sum += v.Speed
		if v.Speed > fastest.Speed {
			fastest = v
		}
	}
	return fmt.Sprintf("Fastest vehicle: %s at %.0f km/h\nAverage speed of moving vehicles: %.0f km/h",
		fastest.Alias, fastest.Speed, math.Round(sum/float64(len(moving))))
}

func (r *Responder) deliveryAnswer(deliveries []models.Delivery) string {
	if len(deliveries) == 0 {
		return "There are no deliveries on the board."
	}
	counts := map[models.DeliveryStatus]int{}
	for _, d := range deliveries {
		counts[d.Status]++
	}
	return fmt.Sprintf("Deliveries: %d total\nPending: %d\nEn route: %d\nDelivered: %d\nCancelled: %d",
		len(deliveries), counts[models.DeliveryPending], counts[models.DeliveryEnRoute],
		counts[models.DeliveryDelivered], counts[models.DeliveryCancelled])
}

func (r *Responder) typeAnswer(vehicles []models.Vehicle, vtype models.VehicleType) string {
	var ofType, enRoute, idle, offline int
	for _, v := range vehicles {
		if v.Type != vtype {
			continue
		}
		ofType++
		switch v.State {
		case models.StateEnRoute:
			enRoute++
		case models.StateIdle:
			idle++
		case models.StateOffline:
			offline++
		}
	}
	label := strings.ReplaceAll(string(vtype), "_", " ")
	return fmt.Sprintf("%s fleet status:\nTotal: %d\nEn route: %d\nIdle: %d\nOffline: %d",
		label, ofType, enRoute, idle, offline)
}

// typeToken maps colloquial vehicle-type phrases to the type enum.
// Longer phrases are listed first so "cargo van" beats "van".
func typeToken(lower string) models.VehicleType {
	phrases := []struct {
		phrase string
		vtype  models.VehicleType
	}{
		{"cargo van", models.TypeCargoVan},
		{"box truck", models.TypeBoxTruck},
		{"semi truck", models.TypeSemiTruck},
		{"semi", models.TypeSemiTruck},
		{"pickup", models.TypePickup},
		{"motorcycle", models.TypeMotorcycle},
		{"bike", models.TypeCargoBike},
		{"truck", models.TypeLightTruck},
		{"van", models.TypeVan},
	}
	for _, p := range phrases {
		if strings.Contains(lower, p.phrase) {
			return p.vtype
		}
	}
	return ""
}

func filterByState(vehicles []models.Vehicle, state models.VehicleState) []models.Vehicle {
	var out []models.Vehicle
	for _, v := range vehicles {
		if v.State == state {
			out = append(out, v)
		}
	}
	return out
}

func vehicleList(vehicles []models.Vehicle) string {
	parts := make([]string, len(vehicles))
	for i, v := range vehicles {
		parts[i] = fmt.Sprintf("%s (%s)", v.Alias, v.Type)
	}
	return strings.Join(parts, ", ")
}

func avgBattery(vehicles []models.Vehicle) float64 {
	if len(vehicles) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vehicles {
		sum += v.Battery
	}
	return math.Round(sum / float64(len(vehicles)))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// findVehicle matches by ID or by a case-insensitive alias fragment.
func findVehicle(vehicles []models.Vehicle, token string) *models.Vehicle {
	lower := strings.ToLower(token)
	for i := range vehicles {
		if strings.EqualFold(vehicles[i].ID, token) {
			return &vehicles[i]
		}
	}
	for i := range vehicles {
		if strings.Contains(strings.ToLower(vehicles[i].Alias), lower) {
			return &vehicles[i]
		}
	}
	return nil
}

// findLocation matches by ID or by a case-insensitive name fragment.
func findLocation(locations []models.Location, token string) *models.Location {
	lower := strings.ToLower(strings.TrimSuffix(token, "."))
	for i := range locations {
		if strings.EqualFold(locations[i].ID, strings.TrimSuffix(token, ".")) {
			return &locations[i]
		}
	}
	for i := range locations {
		if strings.Contains(strings.ToLower(locations[i].Name), lower) {
			return &locations[i]
		}
	}
	return nil
}

// normalizeID prefers an exact case-insensitive match from the known
// IDs so "start delivery d-2" resolves to "D-2".
func normalizeID(token string, known []string) string {
	for _, id := range known {
		if strings.EqualFold(id, token) {
			return id
		}
	}
	return token
}

func snapDeliveryIDs(snap Snapshot) []string {
	out := make([]string, len(snap.Deliveries))
	for i, d := range snap.Deliveries {
		out[i] = d.ID
	}
	return out
}
