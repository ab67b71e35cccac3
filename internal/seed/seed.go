// Package seed builds the deterministic demo fleet the server starts
// with when no external data source is wired up.
package seed

import (
	"fmt"
	"strings"

	"github.com/ukydev/fleet-dispatch/internal/geo"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// CityCode prefixes every generated vehicle alias.
const CityCode = "TJ"

var typeCodes = map[models.VehicleType]string{
	models.TypeCargoVan:   "CV",
	models.TypeVan:        "VN",
	models.TypePickup:     "PU",
	models.TypeLightTruck: "LT",
	models.TypeBoxTruck:   "BX",
	models.TypeSemiTruck:  "ST",
	models.TypeMotorcycle: "MC",
	models.TypeCargoBike:  "CB",
}

type makeModel struct {
	manufacturer string
	model        string
}

var manufacturersByType = map[models.VehicleType][]makeModel{
	models.TypeCargoVan: {
		{"Mercedes", "Sprinter 2500"},
		{"Ford", "Transit"},
		{"RAM", "ProMaster"},
	},
	models.TypeVan: {
		{"Nissan", "NV200"},
		{"Chevrolet", "Express"},
	},
	models.TypePickup: {
		{"Ford", "F-150"},
		{"Toyota", "Hilux"},
	},
	models.TypeLightTruck: {
		{"Isuzu", "N-Series"},
		{"Hino", "300"},
	},
	models.TypeBoxTruck: {
		{"Freightliner", "M2 106"},
	},
	models.TypeSemiTruck: {
		{"Mercedes", "Actros"},
		{"Volvo", "FH"},
	},
	models.TypeMotorcycle: {
		{"Honda", "CB500"},
		{"Yamaha", "FZ-25"},
	},
	models.TypeCargoBike: {
		{"Urban Arrow", "Cargo"},
	},
}

// GenerateAlias builds the display alias for a vehicle, e.g.
// TJ-CV-Mercedes-Sprinter2500-01.
func GenerateAlias(cityCode string, vtype models.VehicleType, manufacturer, model string, sequence int) string {
	code, ok := typeCodes[vtype]
	if !ok {
		code = "XX"
	}
	brand := strings.ReplaceAll(manufacturer, " ", "")
	mdl := strings.ReplaceAll(model, " ", "")
	if sequence < 1 {
		sequence = 1
	}

	parts := []string{cityCode, code}
	if brand != "" {
		parts = append(parts, brand)
	}
	if mdl != "" {
		parts = append(parts, mdl)
	}
	return fmt.Sprintf("%s-%02d", strings.Join(parts, "-"), sequence)
}

func vehicle(seq int, vtype models.VehicleType, lon, lat, battery, capacityKg float64) models.Vehicle {
	options := manufacturersByType[vtype]
	pick := options[(seq-1)%len(options)]
	return models.Vehicle{
		ID:           fmt.Sprintf("V-%d", seq),
		Alias:        GenerateAlias(CityCode, vtype, pick.manufacturer, pick.model, seq),
		Type:         vtype,
		Position:     geo.Point{Lon: lon, Lat: lat},
		State:        models.StateIdle,
		Battery:      battery,
		CapacityKg:   capacityKg,
		Manufacturer: pick.manufacturer,
		Model:        pick.model,
		Year:         2021 + (seq-1)%4,
	}
}

// Vehicles returns the demo fleet.
func Vehicles() []models.Vehicle {
	return []models.Vehicle{
		vehicle(1, models.TypeCargoVan, -117.019, 32.525, 86, 1800),
		vehicle(2, models.TypeBoxTruck, -117.041, 32.515, 74, 7500),
		vehicle(3, models.TypeVan, -116.998, 32.521, 92, 900),
		vehicle(4, models.TypeSemiTruck, -117.056, 32.536, 68, 20000),
		vehicle(5, models.TypeMotorcycle, -117.012, 32.508, 95, 30),
		vehicle(6, models.TypePickup, -117.030, 32.529, 81, 1200),
	}
}

// Locations returns the demo warehouses and stores.
func Locations() []models.Location {
	return []models.Location{
		{
			ID:       "W-1",
			Name:     "Otay Distribution Center",
			Type:     models.LocationWarehouse,
			Position: geo.Point{Lon: -116.965, Lat: 32.531},
			Inventory: []models.InventoryItem{
				{SKU: "PAL-STD", Name: "Standard pallet", Qty: 240},
				{SKU: "BOX-M", Name: "Medium box", Qty: 1100},
				{SKU: "COLD-01", Name: "Cold chain crate", Qty: 65},
			},
		},
		{
			ID:       "W-2",
			Name:     "Playas Depot",
			Type:     models.LocationWarehouse,
			Position: geo.Point{Lon: -117.105, Lat: 32.518},
			Inventory: []models.InventoryItem{
				{SKU: "PAL-STD", Name: "Standard pallet", Qty: 90},
				{SKU: "BOX-S", Name: "Small box", Qty: 800},
			},
		},
		{
			ID:       "S-1",
			Name:     "Centro Market",
			Type:     models.LocationStore,
			Position: geo.Point{Lon: -117.038, Lat: 32.533},
		},
		{
			ID:       "S-2",
			Name:     "Zona Rio Plaza",
			Type:     models.LocationStore,
			Position: geo.Point{Lon: -117.020, Lat: 32.528},
		},
		{
			ID:       "S-3",
			Name:     "La Mesa Outlet",
			Type:     models.LocationStore,
			Position: geo.Point{Lon: -116.977, Lat: 32.512},
		},
	}
}

// Deliveries returns the pending demo deliveries. Every referenced
// vehicle, warehouse and store exists in the seed fleet.
func Deliveries() []models.Delivery {
	return []models.Delivery{
		{
			ID:                "D-1",
			VehicleID:         "V-1",
			PickupWarehouseID: "W-1",
			DropStoreID:       "S-1",
			Items: []models.DeliveryItem{
				{SKU: "BOX-M", Qty: 40},
				{SKU: "COLD-01", Qty: 4},
			},
			Status: models.DeliveryPending,
		},
		{
			ID:                "D-2",
			VehicleID:         "V-2",
			PickupWarehouseID: "W-1",
			DropStoreID:       "S-3",
			Items: []models.DeliveryItem{
				{SKU: "PAL-STD", Qty: 6},
			},
			Status: models.DeliveryPending,
		},
		{
			ID:                "D-3",
			VehicleID:         "V-3",
			PickupWarehouseID: "W-2",
			DropStoreID:       "S-2",
			Items: []models.DeliveryItem{
				{SKU: "BOX-S", Qty: 25},
			},
			Status: models.DeliveryPending,
		},
	}
}
