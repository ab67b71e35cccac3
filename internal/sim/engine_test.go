package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-dispatch/internal/geo"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// stubProvider returns straight two-point polylines and records calls.
type stubProvider struct {
	calls int
	empty bool
	err   error
	// hook runs before each fetch returns, letting tests interleave
	// mutations with an in-flight route request.
	hook func()
}

func (s *stubProvider) Fetch(_ context.Context, origin, dest geo.Point) ([]geo.Point, error) {
	s.calls++
	if s.hook != nil {
		s.hook()
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.empty {
		return nil, nil
	}
	return []geo.Point{origin, dest}, nil
}

func testFleet() ([]models.Vehicle, []models.Location, []models.Delivery) {
	vehicles := []models.Vehicle{
		{ID: "V-1", Alias: "SD-VN-01", Type: models.TypeVan, Position: geo.Point{Lon: -117.0, Lat: 32.5}, State: models.StateIdle, Battery: 80},
		{ID: "V-2", Alias: "SD-BX-02", Type: models.TypeBoxTruck, Position: geo.Point{Lon: -117.1, Lat: 32.5}, State: models.StateIdle, Battery: 60},
	}
	locations := []models.Location{
		{ID: "W-1", Name: "Harbor Warehouse", Type: models.LocationWarehouse, Position: geo.Point{Lon: -117.0, Lat: 32.51}},
		{ID: "S-1", Name: "Downtown Store", Type: models.LocationStore, Position: geo.Point{Lon: -117.0, Lat: 32.52}},
		{ID: "S-2", Name: "Uptown Store", Type: models.LocationStore, Position: geo.Point{Lon: -117.1, Lat: 32.52}},
	}
	deliveries := []models.Delivery{
		{ID: "D-1", VehicleID: "V-1", PickupWarehouseID: "W-1", DropStoreID: "S-1", Status: models.DeliveryPending,
			Items: []models.DeliveryItem{{SKU: "SKU-100", Qty: 3}}},
		{ID: "D-2", VehicleID: "V-2", PickupWarehouseID: "W-1", DropStoreID: "S-2", Status: models.DeliveryPending},
	}
	return vehicles, locations, deliveries
}

func newTestEngine(t *testing.T, provider *stubProvider, cbs Callbacks) *Engine {
	t.Helper()
	e := New(provider, Config{TickInterval: time.Second, AvgSpeedMPS: 12})
	vehicles, locations, deliveries := testFleet()
	e.Init(vehicles, locations, deliveries, cbs)
	return e
}

func deliveryByID(t *testing.T, e *Engine, id string) models.Delivery {
	t.Helper()
	for _, d := range e.Deliveries() {
		if d.ID == id {
			return d
		}
	}
	t.Fatalf("delivery %s not found", id)
	return models.Delivery{}
}

func vehicleByID(t *testing.T, e *Engine, id string) models.Vehicle {
	t.Helper()
	for _, v := range e.Vehicles() {
		if v.ID == id {
			return v
		}
	}
	t.Fatalf("vehicle %s not found", id)
	return models.Vehicle{}
}

func TestInitMissingCollectionsIsNoOp(t *testing.T) {
	e := New(&stubProvider{}, Config{})
	e.Init(nil, []models.Location{}, []models.Delivery{}, Callbacks{})
	e.Start()
	assert.False(t, e.Running())
}

func TestInitDeepCopiesVehicles(t *testing.T) {
	provider := &stubProvider{}
	e := New(provider, Config{})
	vehicles, locations, deliveries := testFleet()
	e.Init(vehicles, locations, deliveries, Callbacks{})

	// Mutating the caller's slice must not affect engine state.
	vehicles[0].Position = geo.Point{Lon: 0, Lat: 0}
	vehicles[0].Battery = 1

	got := vehicleByID(t, e, "V-1")
	assert.Equal(t, geo.Point{Lon: -117.0, Lat: 32.5}, got.Position)
	assert.Equal(t, 80.0, got.Battery)
}

func TestInitResetsDeliveryProgress(t *testing.T) {
	e := New(&stubProvider{}, Config{})
	vehicles, locations, deliveries := testFleet()
	deliveries[0].Progress = 4211
	e.Init(vehicles, locations, deliveries, Callbacks{})
	assert.Equal(t, 0.0, deliveryByID(t, e, "D-1").Progress)
}

func TestStartStopIdempotent(t *testing.T) {
	e := newTestEngine(t, &stubProvider{}, Callbacks{})
	e.Start()
	e.Start()
	assert.True(t, e.Running())
	e.Stop()
	e.Stop()
	assert.False(t, e.Running())
	// Stop keeps state for resume.
	assert.Len(t, e.Vehicles(), 2)
	e.Start()
	assert.True(t, e.Running())
	e.Stop()
}

func TestStartDeliveryBuildsTwoLegPolyline(t *testing.T) {
	provider := &stubProvider{}
	var updates [][]models.Delivery
	e := newTestEngine(t, provider, Callbacks{
		OnDeliveriesUpdate: func(ds []models.Delivery) { updates = append(updates, ds) },
	})

	e.StartDelivery(context.Background(), "D-1")

	assert.Equal(t, 2, provider.calls)
	require.Len(t, updates, 1)

	d := deliveryByID(t, e, "D-1")
	assert.Equal(t, models.DeliveryEnRoute, d.Status)
	require.NotNil(t, d.Route)
	primary := d.Route.Primary()
	require.NotNil(t, primary)

	poly := primary.Geometry
	require.Len(t, poly, 3) // junction point deduplicated
	assert.Equal(t, geo.Point{Lon: -117.0, Lat: 32.5}, poly[0], "first point is the vehicle position at start time")
	assert.Equal(t, geo.Point{Lon: -117.0, Lat: 32.51}, poly[1], "warehouse appears once in the interior")
	assert.Equal(t, geo.Point{Lon: -117.0, Lat: 32.52}, poly[2], "last point is the drop store")
}

func TestStartDeliveryUnknownIDIsNoOp(t *testing.T) {
	provider := &stubProvider{}
	notified := 0
	e := newTestEngine(t, provider, Callbacks{
		OnDeliveriesUpdate: func([]models.Delivery) { notified++ },
	})
	e.StartDelivery(context.Background(), "D-404")
	assert.Zero(t, provider.calls)
	assert.Zero(t, notified)
}

func TestStartDeliveryGuardsActiveVehicle(t *testing.T) {
	provider := &stubProvider{}
	e := newTestEngine(t, provider, Callbacks{})

	// Two deliveries sharing V-1.
	vehicles, locations, deliveries := testFleet()
	deliveries[1].VehicleID = "V-1"
	e.Init(vehicles, locations, deliveries, Callbacks{})

	e.StartDelivery(context.Background(), "D-1")
	e.StartDelivery(context.Background(), "D-2")

	assert.Equal(t, models.DeliveryEnRoute, deliveryByID(t, e, "D-1").Status)
	assert.Equal(t, models.DeliveryPending, deliveryByID(t, e, "D-2").Status, "second delivery on the same vehicle must not start")
	assert.Equal(t, 2, provider.calls)
}

func TestStartDeliveryAlreadyEnRouteIsNoOp(t *testing.T) {
	provider := &stubProvider{}
	e := newTestEngine(t, provider, Callbacks{})
	e.StartDelivery(context.Background(), "D-1")
	e.StartDelivery(context.Background(), "D-1")
	assert.Equal(t, 2, provider.calls)
}

func TestStartDeliveryEmptyPolylineIsInert(t *testing.T) {
	provider := &stubProvider{empty: true}
	e := newTestEngine(t, provider, Callbacks{})

	e.StartDelivery(context.Background(), "D-1")
	d := deliveryByID(t, e, "D-1")
	assert.Equal(t, models.DeliveryEnRoute, d.Status)

	// Ticks neither move the vehicle nor panic.
	before := vehicleByID(t, e, "V-1")
	e.Tick()
	e.Tick()
	after := vehicleByID(t, e, "V-1")
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, models.DeliveryEnRoute, deliveryByID(t, e, "D-1").Status)
}

func TestStartDeliveryProviderErrorIsInert(t *testing.T) {
	provider := &stubProvider{err: errors.New("routing down")}
	e := newTestEngine(t, provider, Callbacks{})
	e.StartDelivery(context.Background(), "D-1")
	assert.Equal(t, models.DeliveryEnRoute, deliveryByID(t, e, "D-1").Status)
	e.Tick()
}

func TestTickProgressMonotonicAndClamped(t *testing.T) {
	e := newTestEngine(t, &stubProvider{}, Callbacks{})
	e.StartDelivery(context.Background(), "D-1")

	// Two legs of 0.01 deg lat each.
	total := 2 * 0.01 * 110540.0
	advance := 12.0 // AvgSpeedMPS * 1s

	prev := 0.0
	for n := 1; n <= 5; n++ {
		e.Tick()
		d := deliveryByID(t, e, "D-1")
		want := float64(n) * advance
		if want > total {
			want = total
		}
		assert.InDelta(t, want, d.Progress, 1e-6, "tick %d", n)
		assert.GreaterOrEqual(t, d.Progress, prev)
		prev = d.Progress
	}
}

func TestTickMovesVehicleAndDrainsBattery(t *testing.T) {
	var vehicleUpdates int
	e := newTestEngine(t, &stubProvider{}, Callbacks{
		OnVehiclesUpdate: func([]models.Vehicle) { vehicleUpdates++ },
	})
	e.StartDelivery(context.Background(), "D-1")

	e.Tick()
	v := vehicleByID(t, e, "V-1")
	assert.Equal(t, models.StateEnRoute, v.State)
	assert.Equal(t, 43.0, v.Speed) // round(12 * 3.6)
	assert.Equal(t, 79.5, v.Battery)
	assert.Greater(t, v.Position.Lat, 32.5)
	assert.Equal(t, 1, vehicleUpdates, "exactly one vehicle update per tick")

	e.Tick()
	assert.Equal(t, 2, vehicleUpdates)
	assert.Equal(t, 79.0, vehicleByID(t, e, "V-1").Battery)
}

func TestTickNoMovementNoVehicleUpdate(t *testing.T) {
	var vehicleUpdates int
	e := newTestEngine(t, &stubProvider{}, Callbacks{
		OnVehiclesUpdate: func([]models.Vehicle) { vehicleUpdates++ },
	})
	e.Tick()
	assert.Zero(t, vehicleUpdates)
}

func TestDeliveryArrival(t *testing.T) {
	var deliveryUpdates int
	e := newTestEngine(t, &stubProvider{}, Callbacks{
		OnDeliveriesUpdate: func([]models.Delivery) { deliveryUpdates++ },
	})
	e.StartDelivery(context.Background(), "D-1")
	require.Equal(t, 1, deliveryUpdates)

	total := 2 * 0.01 * 110540.0
	ticksToArrive := int(total/12.0) + 1

	for i := 0; i < ticksToArrive; i++ {
		e.Tick()
	}

	d := deliveryByID(t, e, "D-1")
	assert.Equal(t, models.DeliveryDelivered, d.Status)
	assert.Nil(t, d.Route, "route overlay cleared on arrival")

	v := vehicleByID(t, e, "V-1")
	assert.Equal(t, models.StateIdle, v.State)
	assert.Equal(t, 0.0, v.Speed)
	assert.InDelta(t, 32.52, v.Position.Lat, 1e-4, "final position at the store")
	assert.InDelta(t, -117.0, v.Position.Lon, 1e-9)

	// One update for start, one for arrival, none for plain movement.
	assert.Equal(t, 2, deliveryUpdates)

	// Arrival is one-way: further ticks change nothing.
	e.Tick()
	assert.Equal(t, models.DeliveryDelivered, deliveryByID(t, e, "D-1").Status)
	assert.Equal(t, 2, deliveryUpdates)
}

func TestArrivalFiresOnCrossingTick(t *testing.T) {
	// Route of exactly 120 m: ten 12 m ticks, arrival tolerance 1 m
	// means the threshold is crossed on tick 10, not before.
	e := New(&stubProvider{}, Config{TickInterval: time.Second, AvgSpeedMPS: 12})
	vehicles := []models.Vehicle{{ID: "V-1", Position: geo.Point{Lon: 0, Lat: 0}, State: models.StateIdle, Battery: 80}}
	locations := []models.Location{
		{ID: "W-1", Type: models.LocationWarehouse, Position: geo.Point{Lon: 0, Lat: 60.0 / 110540.0}},
		{ID: "S-1", Type: models.LocationStore, Position: geo.Point{Lon: 0, Lat: 120.0 / 110540.0}},
	}
	deliveries := []models.Delivery{{ID: "D-1", VehicleID: "V-1", PickupWarehouseID: "W-1", DropStoreID: "S-1", Status: models.DeliveryPending}}
	e.Init(vehicles, locations, deliveries, Callbacks{})
	e.StartDelivery(context.Background(), "D-1")

	for i := 0; i < 9; i++ {
		e.Tick()
		require.Equal(t, models.DeliveryEnRoute, deliveryByID(t, e, "D-1").Status, "tick %d", i+1)
	}
	e.Tick()
	assert.Equal(t, models.DeliveryDelivered, deliveryByID(t, e, "D-1").Status)
}

func TestCancelDeliveryStopsMovement(t *testing.T) {
	e := newTestEngine(t, &stubProvider{}, Callbacks{})
	e.StartDelivery(context.Background(), "D-1")
	e.Tick()
	posAfterTick := vehicleByID(t, e, "V-1").Position

	e.CancelDelivery("D-1")
	d := deliveryByID(t, e, "D-1")
	assert.Equal(t, models.DeliveryCancelled, d.Status)
	assert.Nil(t, d.Route)
	assert.Equal(t, 0.0, d.Progress)

	v := vehicleByID(t, e, "V-1")
	assert.Equal(t, models.StateIdle, v.State)
	assert.Equal(t, 0.0, v.Speed)

	// Next tick does not move the vehicle via the cancelled delivery.
	e.Tick()
	assert.Equal(t, posAfterTick, vehicleByID(t, e, "V-1").Position)
}

func TestCancelDeliveryTerminalIsIdempotent(t *testing.T) {
	notified := 0
	e := newTestEngine(t, &stubProvider{}, Callbacks{
		OnDeliveriesUpdate: func([]models.Delivery) { notified++ },
	})
	e.StartDelivery(context.Background(), "D-1")
	e.CancelDelivery("D-1")
	require.Equal(t, 2, notified)

	e.CancelDelivery("D-1")
	assert.Equal(t, 2, notified, "cancelling a terminal delivery must not notify again")
	assert.Equal(t, models.DeliveryCancelled, deliveryByID(t, e, "D-1").Status)
}

func TestTwoDeliveriesAdvanceIndependently(t *testing.T) {
	e := newTestEngine(t, &stubProvider{}, Callbacks{})
	e.StartDelivery(context.Background(), "D-1")
	e.StartDelivery(context.Background(), "D-2")

	e.Tick()
	e.Tick()
	progressBefore := deliveryByID(t, e, "D-2").Progress
	require.Greater(t, progressBefore, 0.0)

	e.CancelDelivery("D-1")
	e.Tick()

	d2 := deliveryByID(t, e, "D-2")
	assert.Equal(t, models.DeliveryEnRoute, d2.Status)
	assert.Greater(t, d2.Progress, progressBefore, "cancelling one delivery must not stall the other")
	assert.Equal(t, models.StateEnRoute, vehicleByID(t, e, "V-2").State)
}

func TestRerouteCancelsActiveDelivery(t *testing.T) {
	e := newTestEngine(t, &stubProvider{}, Callbacks{})
	e.StartDelivery(context.Background(), "D-1")
	e.Tick()

	e.RerouteVehicleTo(context.Background(), "V-1", "S-2")

	d := deliveryByID(t, e, "D-1")
	assert.Equal(t, models.DeliveryCancelled, d.Status)
	assert.Nil(t, d.Route)

	// The ad-hoc route is active: the vehicle moves toward S-2.
	e.Tick()
	v := vehicleByID(t, e, "V-1")
	assert.Equal(t, models.StateEnRoute, v.State)
}

func TestRerouteArrivalReturnsVehicleToIdle(t *testing.T) {
	e := newTestEngine(t, &stubProvider{}, Callbacks{})
	e.RerouteVehicleTo(context.Background(), "V-1", "W-1")

	total := 0.01 * 110540.0
	for i := 0; i < int(total/12.0)+1; i++ {
		e.Tick()
	}

	v := vehicleByID(t, e, "V-1")
	assert.Equal(t, models.StateIdle, v.State)
	assert.Equal(t, 0.0, v.Speed)
	assert.InDelta(t, 32.51, v.Position.Lat, 1e-4)

	// Entry deleted: further ticks do not move the vehicle.
	pos := v.Position
	e.Tick()
	assert.Equal(t, pos, vehicleByID(t, e, "V-1").Position)
}

func TestRerouteUnknownEntitiesIsNoOp(t *testing.T) {
	provider := &stubProvider{}
	e := newTestEngine(t, provider, Callbacks{})
	e.RerouteVehicleTo(context.Background(), "V-404", "W-1")
	e.RerouteVehicleTo(context.Background(), "V-1", "L-404")
	assert.Zero(t, provider.calls)
}

func TestRemoveVehicle(t *testing.T) {
	var vehicleUpdates, deliveryUpdates int
	e := newTestEngine(t, &stubProvider{}, Callbacks{
		OnVehiclesUpdate:   func([]models.Vehicle) { vehicleUpdates++ },
		OnDeliveriesUpdate: func([]models.Delivery) { deliveryUpdates++ },
	})
	e.StartDelivery(context.Background(), "D-1")
	require.Equal(t, 1, deliveryUpdates)

	e.RemoveVehicle("V-1")

	assert.Len(t, e.Vehicles(), 1)
	assert.Equal(t, models.DeliveryCancelled, deliveryByID(t, e, "D-1").Status)
	assert.Equal(t, 2, deliveryUpdates)
	assert.Equal(t, 1, vehicleUpdates)

	// A tick right after removal neither panics nor resurrects V-1.
	e.Tick()
	assert.Len(t, e.Vehicles(), 1)
	for _, v := range e.Vehicles() {
		assert.NotEqual(t, "V-1", v.ID)
	}
}

func TestRemoveVehicleUnknownIsNoOp(t *testing.T) {
	notified := 0
	e := newTestEngine(t, &stubProvider{}, Callbacks{
		OnVehiclesUpdate: func([]models.Vehicle) { notified++ },
	})
	e.RemoveVehicle("V-404")
	assert.Zero(t, notified)
	assert.Len(t, e.Vehicles(), 2)
}

func TestCancelDuringRouteFetchDropsResult(t *testing.T) {
	// The fetch hook cancels the delivery while the route request is in
	// flight; the engine must revalidate and drop the stale result.
	provider := &stubProvider{}
	e := newTestEngine(t, provider, Callbacks{})
	provider.hook = func() {
		provider.hook = nil
		e.CancelDelivery("D-1")
	}

	e.StartDelivery(context.Background(), "D-1")

	d := deliveryByID(t, e, "D-1")
	assert.Equal(t, models.DeliveryCancelled, d.Status)
	assert.Nil(t, d.Route)
	e.Tick()
	assert.Equal(t, models.DeliveryCancelled, deliveryByID(t, e, "D-1").Status)
}

func TestRemoveVehicleDuringRouteFetch(t *testing.T) {
	provider := &stubProvider{}
	e := newTestEngine(t, provider, Callbacks{})
	provider.hook = func() {
		provider.hook = nil
		e.RemoveVehicle("V-1")
	}

	e.StartDelivery(context.Background(), "D-1")

	assert.Len(t, e.Vehicles(), 1)
	assert.Equal(t, models.DeliveryCancelled, deliveryByID(t, e, "D-1").Status)
	e.Tick()
}

func TestBatteryFlooredAtZero(t *testing.T) {
	e := New(&stubProvider{}, Config{TickInterval: time.Second, AvgSpeedMPS: 1, BatteryDrain: 50})
	vehicles := []models.Vehicle{{ID: "V-1", Position: geo.Point{Lon: 0, Lat: 0}, State: models.StateIdle, Battery: 80}}
	locations := []models.Location{
		{ID: "W-1", Type: models.LocationWarehouse, Position: geo.Point{Lon: 0, Lat: 0.01}},
		{ID: "S-1", Type: models.LocationStore, Position: geo.Point{Lon: 0, Lat: 0.02}},
	}
	deliveries := []models.Delivery{{ID: "D-1", VehicleID: "V-1", PickupWarehouseID: "W-1", DropStoreID: "S-1", Status: models.DeliveryPending}}
	e.Init(vehicles, locations, deliveries, Callbacks{})
	e.StartDelivery(context.Background(), "D-1")

	for i := 0; i < 3; i++ {
		e.Tick()
	}
	assert.Equal(t, 0.0, vehicleByID(t, e, "V-1").Battery)
}

func TestCallbackSnapshotsAreCopies(t *testing.T) {
	var captured []models.Vehicle
	e := newTestEngine(t, &stubProvider{}, Callbacks{
		OnVehiclesUpdate: func(vs []models.Vehicle) { captured = vs },
	})
	e.StartDelivery(context.Background(), "D-1")
	e.Tick()
	require.NotEmpty(t, captured)

	// Host-side mutation of the snapshot must not leak into the engine.
	captured[0].Battery = -1
	assert.NotEqual(t, -1.0, vehicleByID(t, e, captured[0].ID).Battery)
}

func TestTickerLoopAdvances(t *testing.T) {
	e := New(&stubProvider{}, Config{TickInterval: 10 * time.Millisecond, AvgSpeedMPS: 12})
	vehicles, locations, deliveries := testFleet()

	moved := make(chan struct{}, 1)
	e.Init(vehicles, locations, deliveries, Callbacks{
		OnVehiclesUpdate: func([]models.Vehicle) {
			select {
			case moved <- struct{}{}:
			default:
			}
		},
	})
	e.StartDelivery(context.Background(), "D-1")
	e.Start()
	defer e.Stop()

	select {
	case <-moved:
	case <-time.After(2 * time.Second):
		t.Fatal("tick loop never advanced a vehicle")
	}
}
