package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ukydev/fleet-dispatch/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PlannerStore persists the operator's planner documents: saved routes,
// vehicle assignments, scheduled assignments and recently used places.
type PlannerStore interface {
	SaveRoute(ctx context.Context, route models.SavedRoute) (models.SavedRoute, error)
	ListRoutes(ctx context.Context) ([]models.SavedRoute, error)
	RenameRoute(ctx context.Context, id, name string) error
	DeleteRoute(ctx context.Context, id string) error

	AssignRoute(ctx context.Context, vehicleID, routeID string) error
	ListAssignments(ctx context.Context) ([]models.VehicleAssignment, error)

	AddPlanned(ctx context.Context, p models.PlannedAssignment) (models.PlannedAssignment, error)
	ListPlanned(ctx context.Context) ([]models.PlannedAssignment, error)
	DeletePlanned(ctx context.Context, id string) error

	AddRecentPlace(ctx context.Context, label string, lng, lat float64) error
	ListRecentPlaces(ctx context.Context, max int) ([]models.RecentPlace, error)
}

const maxRecentPlaces = 20

// MongoPlannerStore implements PlannerStore over four collections.
type MongoPlannerStore struct {
	Routes      *mongo.Collection
	Assignments *mongo.Collection
	Planned     *mongo.Collection
	Recents     *mongo.Collection
}

// NewMongoPlannerStore wires the store against the dashboard database.
func NewMongoPlannerStore(database *mongo.Database) *MongoPlannerStore {
	return &MongoPlannerStore{
		Routes:      database.Collection("saved_routes"),
		Assignments: database.Collection("assignments"),
		Planned:     database.Collection("planned_assignments"),
		Recents:     database.Collection("recent_places"),
	}
}

// SaveRoute stores a new route under a generated ID.
func (s *MongoPlannerStore) SaveRoute(ctx context.Context, route models.SavedRoute) (models.SavedRoute, error) {
	route.ID = "R-" + uuid.NewString()
	route.CreatedAt = time.Now()
	if _, err := s.Routes.InsertOne(ctx, route); err != nil {
		return models.SavedRoute{}, err
	}
	return route, nil
}

// ListRoutes returns saved routes, newest first.
func (s *MongoPlannerStore) ListRoutes(ctx context.Context) ([]models.SavedRoute, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.Routes.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var routes []models.SavedRoute
	if err := cursor.All(ctx, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// RenameRoute updates a saved route's display name.
func (s *MongoPlannerStore) RenameRoute(ctx context.Context, id, name string) error {
	result, err := s.Routes.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"name": name}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("route not found")
	}
	return nil
}

// DeleteRoute removes a saved route and cascades to its assignments.
func (s *MongoPlannerStore) DeleteRoute(ctx context.Context, id string) error {
	if _, err := s.Routes.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return err
	}
	_, err := s.Assignments.DeleteMany(ctx, bson.M{"route_id": id})
	return err
}

// AssignRoute binds a route to a vehicle, replacing any previous
// assignment for that vehicle.
func (s *MongoPlannerStore) AssignRoute(ctx context.Context, vehicleID, routeID string) error {
	assignment := models.VehicleAssignment{
		VehicleID:  vehicleID,
		RouteID:    routeID,
		AssignedAt: time.Now(),
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.Assignments.ReplaceOne(ctx, bson.M{"vehicle_id": vehicleID}, assignment, opts)
	return err
}

// ListAssignments returns all vehicle assignments.
func (s *MongoPlannerStore) ListAssignments(ctx context.Context) ([]models.VehicleAssignment, error) {
	cursor, err := s.Assignments.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var assignments []models.VehicleAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// AddPlanned stores a scheduled assignment under a generated ID.
func (s *MongoPlannerStore) AddPlanned(ctx context.Context, p models.PlannedAssignment) (models.PlannedAssignment, error) {
	p.ID = "P-" + uuid.NewString()
	if _, err := s.Planned.InsertOne(ctx, p); err != nil {
		return models.PlannedAssignment{}, err
	}
	return p, nil
}

// ListPlanned returns scheduled assignments ordered by start time.
func (s *MongoPlannerStore) ListPlanned(ctx context.Context) ([]models.PlannedAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}})
	cursor, err := s.Planned.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var planned []models.PlannedAssignment
	if err := cursor.All(ctx, &planned); err != nil {
		return nil, err
	}
	return planned, nil
}

// DeletePlanned removes a scheduled assignment.
func (s *MongoPlannerStore) DeletePlanned(ctx context.Context, id string) error {
	_, err := s.Planned.DeleteOne(ctx, bson.M{"id": id})
	return err
}

// AddRecentPlace records a place, deduplicated by rounded coordinate
// and capped at the most recent entries.
func (s *MongoPlannerStore) AddRecentPlace(ctx context.Context, label string, lng, lat float64) error {
	place := models.RecentPlace{
		ID:    recentPlaceID(lng, lat),
		Label: label,
		Lng:   lng,
		Lat:   lat,
		Ts:    time.Now(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.Recents.ReplaceOne(ctx, bson.M{"id": place.ID}, place, opts); err != nil {
		return err
	}

	// Trim entries beyond the cap, oldest first.
	count, err := s.Recents.CountDocuments(ctx, bson.M{})
	if err != nil || count <= maxRecentPlaces {
		return err
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "ts", Value: 1}}).SetLimit(count - maxRecentPlaces)
	cursor, err := s.Recents.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return err
	}
	var stale []models.RecentPlace
	if err := cursor.All(ctx, &stale); err != nil {
		return err
	}
	ids := make([]string, len(stale))
	for i, p := range stale {
		ids[i] = p.ID
	}
	_, err = s.Recents.DeleteMany(ctx, bson.M{"id": bson.M{"$in": ids}})
	return err
}

// ListRecentPlaces returns the most recent places, newest first.
func (s *MongoPlannerStore) ListRecentPlaces(ctx context.Context, max int) ([]models.RecentPlace, error) {
	if max <= 0 {
		max = 10
	}
	opts := options.Find().SetSort(bson.D{{Key: "ts", Value: -1}}).SetLimit(int64(max))
	cursor, err := s.Recents.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var places []models.RecentPlace
	if err := cursor.All(ctx, &places); err != nil {
		return nil, err
	}
	return places, nil
}

func recentPlaceID(lng, lat float64) string {
	return fmt.Sprintf("%.6f,%.6f", lng, lat)
}
