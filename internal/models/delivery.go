package models

// DeliveryStatus enumerates the delivery lifecycle. Transitions move
// forward only, except cancellation which is terminal from any
// pre-terminal status.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryPicking   DeliveryStatus = "picking"
	DeliveryEnRoute   DeliveryStatus = "en_route"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryCancelled
}

// DeliveryItem is one line item of a delivery.
type DeliveryItem struct {
	SKU string `json:"sku" bson:"sku"`
	Qty int    `json:"qty" bson:"qty"`
}

// Delivery represents a two-leg transport job: vehicle to pickup
// warehouse, then warehouse to drop store. Route is populated only while
// the delivery is en route and cleared on arrival or cancellation.
// Progress is meters traveled along the full two-leg path.
type Delivery struct {
	ID                string          `json:"id" bson:"id"`
	VehicleID         string          `json:"vehicleId" bson:"vehicle_id"`
	PickupWarehouseID string          `json:"pickupWarehouseId" bson:"pickup_warehouse_id"`
	DropStoreID       string          `json:"dropStoreId" bson:"drop_store_id"`
	Items             []DeliveryItem  `json:"items" bson:"items"`
	Status            DeliveryStatus  `json:"status" bson:"status"`
	Route             *RouteCollection `json:"route,omitempty" bson:"route,omitempty"`
	Progress          float64         `json:"progress" bson:"progress"`
	ETAMillis         int64           `json:"etaMs,omitempty" bson:"eta_ms,omitempty"`
}
