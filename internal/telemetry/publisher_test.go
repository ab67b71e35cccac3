package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

func TestConnectWithoutBroker(t *testing.T) {
	pub, err := Connect("", "fleet-dispatch-test")
	require.NoError(t, err)
	assert.Nil(t, pub)
}

func TestNilPublisherIsSafe(t *testing.T) {
	var pub *Publisher

	pub.PublishVehicles([]models.Vehicle{{ID: "V-1"}})
	pub.Close()
}
