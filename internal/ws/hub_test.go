package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-dispatch/internal/geo"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(hub)
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestHubBroadcastVehicles(t *testing.T) {
	hub := NewHub()
	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	waitForClients(t, hub, 1)

	hub.BroadcastVehicles([]models.Vehicle{
		{ID: "V-1", State: models.StateEnRoute, Position: geo.Point{Lon: -117.16, Lat: 32.72}, Speed: 43},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "vehicles", msg.Type)
	require.Len(t, msg.Vehicles, 1)
	assert.Equal(t, "V-1", msg.Vehicles[0].ID)
	assert.NotZero(t, msg.ServerTime)
}

func TestHubBroadcastDeliveries(t *testing.T) {
	hub := NewHub()
	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	waitForClients(t, hub, 1)

	hub.BroadcastDeliveries([]models.Delivery{
		{ID: "D-1", Status: models.DeliveryEnRoute},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "deliveries", msg.Type)
	require.Len(t, msg.Deliveries, 1)
	assert.Equal(t, models.DeliveryEnRoute, msg.Deliveries[0].Status)
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub()
	conn, cleanup := dialHub(t, hub)
	defer cleanup()

	waitForClients(t, hub, 1)
	conn.Close()

	// The read loop notices the close and unregisters.
	waitForClients(t, hub, 0)

	hub.BroadcastVehicles(nil)
	assert.Equal(t, 0, hub.ClientCount())
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", want)
}
