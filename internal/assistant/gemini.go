package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

const systemPreamble = "You are a concise, helpful Fleet Operations Assistant. " +
	"Respond in clear, plain English. If asked about fleet metrics, use the provided context. " +
	"Keep answers short and actionable."

// Service answers chat messages. When an API key is configured it asks
// the external model first; any failure falls back to the local rules.
// Structured command intents are always parsed locally so they work in
// both modes.
type Service struct {
	APIKey    string
	Endpoint  string
	Client    *http.Client
	responder Responder
}

// NewService creates an assistant service. An empty API key yields a
// purely local service.
func NewService(apiKey string) *Service {
	return &Service{
		APIKey:   apiKey,
		Endpoint: geminiEndpoint,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Chat interprets the message. Commands short-circuit to the local
// parser; status questions go to the model when one is configured.
func (s *Service) Chat(ctx context.Context, message string, snap Snapshot) Reply {
	if intent, text, ok := s.responder.parseCommand(message, snap); ok {
		return Reply{Text: text, Intent: intent, Provider: "local"}
	}

	if s.APIKey == "" {
		reply := s.responder.Interpret(message, snap)
		reply.UsedFallback = true
		return reply
	}

	text, err := s.generate(ctx, message, snap)
	if err != nil {
		log.WithError(err).Warn("Model request failed, using local responder")
		reply := s.responder.Interpret(message, snap)
		reply.UsedFallback = true
		return reply
	}
	return Reply{Text: text, Provider: "gemini"}
}

func (s *Service) generate(ctx context.Context, message string, snap Snapshot) (string, error) {
	prompt := fmt.Sprintf("%s\n\nFleet context: %s\n\nUser: %s", systemPreamble, fleetContext(snap.Vehicles), message)

	body, err := json.Marshal(map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": prompt}},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.3,
			"maxOutputTokens": 512,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint+"?key="+s.APIKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model API returned %d", resp.StatusCode)
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("model returned empty text")
	}
	return b.String(), nil
}

// fleetContext compacts the vehicle snapshot into a one-line summary
// the model can reason over.
func fleetContext(vehicles []models.Vehicle) string {
	if len(vehicles) == 0 {
		return "No fleet context provided."
	}
	var enRoute, idle, offline int
	var low []string
	for _, v := range vehicles {
		switch v.State {
		case models.StateEnRoute:
			enRoute++
		case models.StateIdle:
			idle++
		case models.StateOffline:
			offline++
		}
		if v.Battery < 30 && len(low) < 10 {
			low = append(low, fmt.Sprintf("%s:%.0f%%", v.Alias, v.Battery))
		}
	}
	parts := []string{
		fmt.Sprintf("Total: %d", len(vehicles)),
		fmt.Sprintf("En route: %d", enRoute),
		fmt.Sprintf("Idle: %d", idle),
		fmt.Sprintf("Offline: %d", offline),
	}
	if len(low) > 0 {
		parts = append(parts, "Low battery: "+strings.Join(low, ", "))
	}
	return strings.Join(parts, " | ")
}
