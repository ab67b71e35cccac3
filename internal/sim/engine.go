// Package sim implements the fleet simulation engine: a tick-driven
// process that advances vehicles along precomputed road polylines,
// tracks per-delivery progress in meters, transitions delivery status
// and reconciles mutations without losing consistency between vehicles,
// deliveries and their route overlays.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/geo"
	"github.com/ukydev/fleet-dispatch/internal/models"
	"github.com/ukydev/fleet-dispatch/internal/routing"
)

// Defaults for the constant-speed movement model.
const (
	DefaultTickInterval      = time.Second
	DefaultAvgSpeedMPS       = 12.0 // ~43 km/h
	DefaultBatteryDrain      = 0.5  // percent per moving tick
	DefaultArrivalToleranceM = 1.0
)

// Callbacks receive snapshots when the engine mutates state.
// OnVehiclesUpdate fires at most once per tick and only when a vehicle
// moved; OnDeliveriesUpdate fires only on discrete events (start,
// cancel, arrival, removal), never merely because progress advanced.
type Callbacks struct {
	OnVehiclesUpdate   func(vehicles []models.Vehicle)
	OnDeliveriesUpdate func(deliveries []models.Delivery)
}

// Config tunes the movement model. Zero values take the defaults above.
type Config struct {
	TickInterval      time.Duration
	AvgSpeedMPS       float64
	BatteryDrain      float64
	ArrivalToleranceM float64
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.AvgSpeedMPS <= 0 {
		c.AvgSpeedMPS = DefaultAvgSpeedMPS
	}
	if c.BatteryDrain <= 0 {
		c.BatteryDrain = DefaultBatteryDrain
	}
	if c.ArrivalToleranceM <= 0 {
		c.ArrivalToleranceM = DefaultArrivalToleranceM
	}
	return c
}

// Engine owns the authoritative in-memory snapshot of vehicles,
// deliveries and active polylines. One Engine is constructed per
// session; there are no process-wide globals. All shared state is
// confined behind a single mutex, so no tick observes a half-applied
// mutation. Route fetches happen outside the lock and their results are
// revalidated before being written back.
type Engine struct {
	cfg    Config
	routes routing.Provider

	mu          sync.Mutex
	initialized bool
	running     bool
	stopCh      chan struct{}

	vehicles   []models.Vehicle
	locations  []models.Location
	deliveries []models.Delivery

	// deliveryID -> active polyline and arc-length progress in meters
	deliveryRoutes   map[string][]geo.Point
	deliveryProgress map[string]float64

	// vehicleID -> ad-hoc reroute polyline and progress; mutually
	// exclusive with that vehicle having an active delivery
	vehicleRoutes   map[string][]geo.Point
	vehicleProgress map[string]float64

	cbs Callbacks
}

// New creates an engine that resolves polylines through the given
// provider. Call Init before Start.
func New(provider routing.Provider, cfg Config) *Engine {
	return &Engine{
		cfg:    cfg.withDefaults(),
		routes: provider,
	}
}

// Init takes ownership of deep copies of the vehicle and delivery
// collections; the location snapshot is stored by reference and treated
// as read-only. Each delivery's progress is reset to zero. Init is a
// silent no-op when any collection is missing.
func (e *Engine) Init(vehicles []models.Vehicle, locations []models.Location, deliveries []models.Delivery, cbs Callbacks) {
	if vehicles == nil || locations == nil || deliveries == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.vehicles = append([]models.Vehicle(nil), vehicles...)

	e.deliveries = make([]models.Delivery, len(deliveries))
	for i, d := range deliveries {
		d.Progress = 0
		d.Items = append([]models.DeliveryItem(nil), d.Items...)
		e.deliveries[i] = d
	}

	e.locations = locations
	e.deliveryRoutes = make(map[string][]geo.Point)
	e.deliveryProgress = make(map[string]float64)
	e.vehicleRoutes = make(map[string][]geo.Point)
	e.vehicleProgress = make(map[string]float64)
	e.cbs = cbs
	e.initialized = true
}

// Start begins the periodic tick. Idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	if !e.initialized || e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.mu.Unlock()

	go e.loop(stopCh)
}

// Stop halts the periodic tick without clearing state, so a later Start
// resumes where the simulation left off. Idempotent. A tick already in
// progress runs to completion.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stopCh)
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// loop drives ticks from a single goroutine, so ticks can never overlap:
// if a tick runs long the next ticker fire is simply delivered late.
func (e *Engine) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick advances every en-route delivery and every ad-hoc reroute by one
// interval. Exported so hosts (and tests) can drive the clock manually
// while the loop is stopped.
func (e *Engine) Tick() {
	e.mu.Lock()

	advance := e.cfg.AvgSpeedMPS * e.cfg.TickInterval.Seconds()
	anyMoved := false
	deliveriesChanged := false

	for i := range e.deliveries {
		moved, arrived := e.advanceDelivery(&e.deliveries[i], advance)
		anyMoved = anyMoved || moved
		deliveriesChanged = deliveriesChanged || arrived
	}

	for vehicleID := range e.vehicleRoutes {
		anyMoved = e.advanceReroute(vehicleID, advance) || anyMoved
	}

	var vehicles []models.Vehicle
	var deliveries []models.Delivery
	if anyMoved {
		vehicles = e.vehiclesSnapshotLocked()
	}
	if deliveriesChanged {
		deliveries = e.deliveriesSnapshotLocked()
	}
	cbs := e.cbs
	e.mu.Unlock()

	// Callbacks run outside the lock so a handler may call back into
	// the engine without deadlocking.
	if deliveries != nil && cbs.OnDeliveriesUpdate != nil {
		cbs.OnDeliveriesUpdate(deliveries)
	}
	if vehicles != nil && cbs.OnVehiclesUpdate != nil {
		cbs.OnVehiclesUpdate(vehicles)
	}
}

// advanceDelivery moves one en-route delivery along its polyline. A
// panic while advancing a single delivery is contained so the remaining
// fleet keeps moving.
func (e *Engine) advanceDelivery(d *models.Delivery, advance float64) (moved, arrived bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"delivery_id": d.ID, "panic": r}).Error("Delivery advancement failed")
		}
	}()

	if d.Status != models.DeliveryEnRoute {
		return false, false
	}
	poly := e.deliveryRoutes[d.ID]
	if len(poly) < 2 {
		return false, false
	}
	vehicle := e.vehicleByID(d.VehicleID)
	if vehicle == nil {
		// Vehicle removed mid-flight; the delivery is cancelled by
		// RemoveVehicle, this tick just skips it.
		return false, false
	}

	total := geo.PolylineLength(poly)
	progress := math.Min(e.deliveryProgress[d.ID]+advance, total)
	e.deliveryProgress[d.ID] = progress
	d.Progress = progress

	vehicle.Position = geo.PointAlong(poly, progress)
	vehicle.State = models.StateEnRoute
	vehicle.Speed = math.Round(e.cfg.AvgSpeedMPS * 3.6)
	vehicle.Battery = math.Max(0, vehicle.Battery-e.cfg.BatteryDrain)

	if progress >= total-e.cfg.ArrivalToleranceM {
		d.Status = models.DeliveryDelivered
		d.Route = nil
		delete(e.deliveryRoutes, d.ID)
		delete(e.deliveryProgress, d.ID)
		vehicle.State = models.StateIdle
		vehicle.Speed = 0
		return true, true
	}
	return true, false
}

// advanceReroute moves one vehicle along its ad-hoc polyline; the entry
// is deleted on arrival.
func (e *Engine) advanceReroute(vehicleID string, advance float64) (moved bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"vehicle_id": vehicleID, "panic": r}).Error("Reroute advancement failed")
		}
	}()

	poly := e.vehicleRoutes[vehicleID]
	if len(poly) < 2 {
		return false
	}
	vehicle := e.vehicleByID(vehicleID)
	if vehicle == nil {
		return false
	}

	total := geo.PolylineLength(poly)
	progress := math.Min(e.vehicleProgress[vehicleID]+advance, total)
	e.vehicleProgress[vehicleID] = progress

	vehicle.Position = geo.PointAlong(poly, progress)
	vehicle.State = models.StateEnRoute
	vehicle.Speed = math.Round(e.cfg.AvgSpeedMPS * 3.6)
	vehicle.Battery = math.Max(0, vehicle.Battery-e.cfg.BatteryDrain)

	if progress >= total-e.cfg.ArrivalToleranceM {
		delete(e.vehicleRoutes, vehicleID)
		delete(e.vehicleProgress, vehicleID)
		vehicle.State = models.StateIdle
		vehicle.Speed = 0
	}
	return true
}

// StartDelivery resolves the two legs (vehicle to warehouse, warehouse
// to store), installs the joined polyline and marks the delivery
// en_route. Missing entities and already-active deliveries are silent
// no-ops. An empty polyline from the provider leaves the delivery
// en_route but inert rather than failing.
func (e *Engine) StartDelivery(ctx context.Context, id string) {
	e.mu.Lock()
	d := e.deliveryByID(id)
	if d == nil || d.Status != models.DeliveryPending && d.Status != models.DeliveryPicking {
		e.mu.Unlock()
		return
	}
	// A vehicle may not run two deliveries at once.
	for i := range e.deliveries {
		other := &e.deliveries[i]
		if other.ID != d.ID && other.VehicleID == d.VehicleID && other.Status == models.DeliveryEnRoute {
			e.mu.Unlock()
			return
		}
	}
	vehicle := e.vehicleByID(d.VehicleID)
	warehouse := e.locationByID(d.PickupWarehouseID)
	store := e.locationByID(d.DropStoreID)
	if vehicle == nil || warehouse == nil || store == nil {
		e.mu.Unlock()
		return
	}
	origin := vehicle.Position
	pickup := warehouse.Position
	drop := store.Position
	e.mu.Unlock()

	leg1 := e.fetchPolyline(ctx, origin, pickup)
	leg2 := e.fetchPolyline(ctx, pickup, drop)
	poly := geo.JoinLegs(leg1, leg2)

	e.mu.Lock()
	// Revalidate: the delivery may have been cancelled or the vehicle
	// removed while the fetches were in flight.
	d = e.deliveryByID(id)
	if d == nil || d.Status != models.DeliveryPending && d.Status != models.DeliveryPicking || e.vehicleByID(d.VehicleID) == nil {
		e.mu.Unlock()
		return
	}
	e.deliveryRoutes[d.ID] = poly
	e.deliveryProgress[d.ID] = 0
	d.Status = models.DeliveryEnRoute
	d.Progress = 0
	d.Route = models.DeliveryRoute(poly, d.VehicleID, d.ID)
	deliveries := e.deliveriesSnapshotLocked()
	cbs := e.cbs
	e.mu.Unlock()

	log.WithFields(log.Fields{"delivery_id": id, "points": len(poly)}).Info("Delivery started")
	if cbs.OnDeliveriesUpdate != nil {
		cbs.OnDeliveriesUpdate(deliveries)
	}
}

// CancelDelivery marks a delivery cancelled and discards its polyline
// and progress. Terminal deliveries are left untouched.
func (e *Engine) CancelDelivery(id string) {
	e.mu.Lock()
	d := e.deliveryByID(id)
	if d == nil || d.Status.Terminal() {
		e.mu.Unlock()
		return
	}
	e.cancelLocked(d)
	deliveries := e.deliveriesSnapshotLocked()
	cbs := e.cbs
	e.mu.Unlock()

	log.WithField("delivery_id", id).Info("Delivery cancelled")
	if cbs.OnDeliveriesUpdate != nil {
		cbs.OnDeliveriesUpdate(deliveries)
	}
}

// cancelLocked applies cancellation side effects. The owning vehicle
// drops back to idle unless an ad-hoc reroute still drives it.
func (e *Engine) cancelLocked(d *models.Delivery) {
	d.Status = models.DeliveryCancelled
	d.Route = nil
	d.Progress = 0
	delete(e.deliveryRoutes, d.ID)
	delete(e.deliveryProgress, d.ID)

	if _, rerouting := e.vehicleRoutes[d.VehicleID]; !rerouting {
		if v := e.vehicleByID(d.VehicleID); v != nil && v.State == models.StateEnRoute {
			v.State = models.StateIdle
			v.Speed = 0
		}
	}
}

// RerouteVehicleTo sends a vehicle directly to a location. Any active
// delivery for the vehicle is cancelled first, with full cancellation
// side effects, before the fresh polyline is installed with zero
// progress.
func (e *Engine) RerouteVehicleTo(ctx context.Context, vehicleID, locationID string) {
	e.mu.Lock()
	vehicle := e.vehicleByID(vehicleID)
	target := e.locationByID(locationID)
	if vehicle == nil || target == nil {
		e.mu.Unlock()
		return
	}
	deliveries := e.cancelActiveDeliveryLocked(vehicleID)
	origin := vehicle.Position
	dest := target.Position
	cbs := e.cbs
	e.mu.Unlock()

	if deliveries != nil && cbs.OnDeliveriesUpdate != nil {
		cbs.OnDeliveriesUpdate(deliveries)
	}

	path := e.fetchPolyline(ctx, origin, dest)

	e.mu.Lock()
	if e.vehicleByID(vehicleID) == nil {
		e.mu.Unlock()
		return
	}
	// A delivery may have started for this vehicle while the fetch was
	// in flight; the reroute wins.
	deliveries = e.cancelActiveDeliveryLocked(vehicleID)
	e.vehicleRoutes[vehicleID] = path
	e.vehicleProgress[vehicleID] = 0
	cbs = e.cbs
	e.mu.Unlock()

	log.WithFields(log.Fields{"vehicle_id": vehicleID, "location_id": locationID}).Info("Vehicle rerouted")
	if deliveries != nil && cbs.OnDeliveriesUpdate != nil {
		cbs.OnDeliveriesUpdate(deliveries)
	}
}

// cancelActiveDeliveryLocked cancels the vehicle's en-route delivery if
// any and returns a snapshot to notify with, or nil when nothing
// changed.
func (e *Engine) cancelActiveDeliveryLocked(vehicleID string) []models.Delivery {
	for i := range e.deliveries {
		d := &e.deliveries[i]
		if d.VehicleID == vehicleID && d.Status == models.DeliveryEnRoute {
			e.cancelLocked(d)
			return e.deliveriesSnapshotLocked()
		}
	}
	return nil
}

// RemoveVehicle deletes a vehicle, cancels its pending and en-route
// deliveries and drops any ad-hoc reroute. Safe against an in-flight
// tick: the next tick simply finds no matching vehicle.
func (e *Engine) RemoveVehicle(vehicleID string) {
	e.mu.Lock()
	found := false
	kept := e.vehicles[:0]
	for _, v := range e.vehicles {
		if v.ID == vehicleID {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	if !found {
		e.mu.Unlock()
		return
	}
	e.vehicles = kept

	for i := range e.deliveries {
		d := &e.deliveries[i]
		if d.VehicleID == vehicleID && (d.Status == models.DeliveryPending || d.Status == models.DeliveryEnRoute) {
			d.Status = models.DeliveryCancelled
			d.Route = nil
			d.Progress = 0
			delete(e.deliveryRoutes, d.ID)
			delete(e.deliveryProgress, d.ID)
		}
	}
	delete(e.vehicleRoutes, vehicleID)
	delete(e.vehicleProgress, vehicleID)

	vehicles := e.vehiclesSnapshotLocked()
	deliveries := e.deliveriesSnapshotLocked()
	cbs := e.cbs
	e.mu.Unlock()

	log.WithField("vehicle_id", vehicleID).Info("Vehicle removed")
	if cbs.OnDeliveriesUpdate != nil {
		cbs.OnDeliveriesUpdate(deliveries)
	}
	if cbs.OnVehiclesUpdate != nil {
		cbs.OnVehiclesUpdate(vehicles)
	}
}

// fetchPolyline wraps the provider call; failures degrade to an empty
// polyline so the engine never propagates routing errors.
func (e *Engine) fetchPolyline(ctx context.Context, origin, dest geo.Point) []geo.Point {
	if e.routes == nil {
		return nil
	}
	poly, err := e.routes.Fetch(ctx, origin, dest)
	if err != nil {
		log.WithError(err).Warn("Route fetch failed, continuing with empty polyline")
		return nil
	}
	return poly
}

// Vehicles returns a copy of the current vehicle collection.
func (e *Engine) Vehicles() []models.Vehicle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vehiclesSnapshotLocked()
}

// Deliveries returns a copy of the current delivery collection.
func (e *Engine) Deliveries() []models.Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deliveriesSnapshotLocked()
}

// Locations returns the read-only location snapshot.
func (e *Engine) Locations() []models.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locations
}

// KPI derives dashboard counters from the current vehicle collection.
func (e *Engine) KPI() models.KPI {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.ComputeKPI(e.vehicles)
}

func (e *Engine) vehiclesSnapshotLocked() []models.Vehicle {
	return append([]models.Vehicle(nil), e.vehicles...)
}

func (e *Engine) deliveriesSnapshotLocked() []models.Delivery {
	return append([]models.Delivery(nil), e.deliveries...)
}

func (e *Engine) vehicleByID(id string) *models.Vehicle {
	for i := range e.vehicles {
		if e.vehicles[i].ID == id {
			return &e.vehicles[i]
		}
	}
	return nil
}

func (e *Engine) deliveryByID(id string) *models.Delivery {
	for i := range e.deliveries {
		if e.deliveries[i].ID == id {
			return &e.deliveries[i]
		}
	}
	return nil
}

func (e *Engine) locationByID(id string) *models.Location {
	for i := range e.locations {
		if e.locations[i].ID == id {
			return &e.locations[i]
		}
	}
	return nil
}
