// Package telemetry fans vehicle movement out to an MQTT broker so
// external consumers (depot displays, analytics pipelines) can follow
// the fleet without polling the API.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

// Update is the per-vehicle message published on each movement.
type Update struct {
	VehicleID string  `json:"vehicle_id"`
	Alias     string  `json:"alias"`
	Lon       float64 `json:"lon"`
	Lat       float64 `json:"lat"`
	State     string  `json:"state"`
	Speed     float64 `json:"speed"`
	Battery   float64 `json:"battery"`
	Timestamp int64   `json:"ts"`
}

// Publisher pushes vehicle updates to MQTT. A nil Publisher is a valid
// no-op, so callers never guard on broker availability.
type Publisher struct {
	client mqtt.Client
	prefix string
}

// Connect dials the broker and returns a publisher. An empty broker URL
// returns a nil publisher without error.
func Connect(brokerURL, clientID string) (*Publisher, error) {
	if brokerURL == "" {
		return nil, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	log.WithField("broker", brokerURL).Info("Connected to MQTT broker")
	return &Publisher{client: client, prefix: "fleet"}, nil
}

// PublishVehicles sends one message per vehicle on
// fleet/<vehicle-id>/telemetry.
func (p *Publisher) PublishVehicles(vehicles []models.Vehicle) {
	if p == nil || !p.client.IsConnected() {
		return
	}

	now := time.Now().UnixMilli()
	for _, v := range vehicles {
		update := Update{
			VehicleID: v.ID,
			Alias:     v.Alias,
			Lon:       v.Position.Lon,
			Lat:       v.Position.Lat,
			State:     string(v.State),
			Speed:     v.Speed,
			Battery:   v.Battery,
			Timestamp: now,
		}
		payload, err := json.Marshal(update)
		if err != nil {
			log.WithError(err).WithField("vehicle_id", v.ID).Error("Failed to marshal telemetry")
			continue
		}
		topic := fmt.Sprintf("%s/%s/telemetry", p.prefix, v.ID)
		p.client.Publish(topic, 0, false, payload)
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}
