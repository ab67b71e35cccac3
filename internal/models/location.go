package models

import "github.com/ukydev/fleet-dispatch/internal/geo"

// LocationType distinguishes logistics locations on the map.
type LocationType string

const (
	LocationWarehouse LocationType = "warehouse"
	LocationStore     LocationType = "store"
)

// InventoryItem is a stocked SKU at a warehouse or store.
type InventoryItem struct {
	SKU  string `json:"sku" bson:"sku"`
	Name string `json:"name,omitempty" bson:"name,omitempty"`
	Qty  int    `json:"qty" bson:"qty"`
}

// Location represents a warehouse or store. Locations are read-only from
// the engine's point of view.
type Location struct {
	ID        string          `json:"id" bson:"id"`
	Name      string          `json:"name" bson:"name"`
	Type      LocationType    `json:"type" bson:"type"`
	Position  geo.Point       `json:"position" bson:"position"`
	Inventory []InventoryItem `json:"inventory,omitempty" bson:"inventory,omitempty"`
}
