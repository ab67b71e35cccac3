package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ukydev/fleet-dispatch/internal/models"
)

// MemoryPlannerStore is the in-process PlannerStore used when no
// database is configured, and as a test double for handlers.
type MemoryPlannerStore struct {
	mu          sync.Mutex
	routes      []models.SavedRoute
	assignments []models.VehicleAssignment
	planned     []models.PlannedAssignment
	recents     []models.RecentPlace
}

// NewMemoryPlannerStore creates an empty store.
func NewMemoryPlannerStore() *MemoryPlannerStore {
	return &MemoryPlannerStore{}
}

func (s *MemoryPlannerStore) SaveRoute(_ context.Context, route models.SavedRoute) (models.SavedRoute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	route.ID = "R-" + uuid.NewString()
	route.CreatedAt = time.Now()
	s.routes = append(s.routes, route)
	return route, nil
}

func (s *MemoryPlannerStore) ListRoutes(_ context.Context) ([]models.SavedRoute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.SavedRoute(nil), s.routes...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryPlannerStore) RenameRoute(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.routes {
		if s.routes[i].ID == id {
			s.routes[i].Name = name
			return nil
		}
	}
	return fmt.Errorf("route not found")
}

func (s *MemoryPlannerStore) DeleteRoute(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.routes[:0]
	for _, r := range s.routes {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.routes = kept

	keptAssignments := s.assignments[:0]
	for _, a := range s.assignments {
		if a.RouteID != id {
			keptAssignments = append(keptAssignments, a)
		}
	}
	s.assignments = keptAssignments
	return nil
}

func (s *MemoryPlannerStore) AssignRoute(_ context.Context, vehicleID, routeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.assignments[:0]
	for _, a := range s.assignments {
		if a.VehicleID != vehicleID {
			kept = append(kept, a)
		}
	}
	s.assignments = append(kept, models.VehicleAssignment{
		VehicleID:  vehicleID,
		RouteID:    routeID,
		AssignedAt: time.Now(),
	})
	return nil
}

func (s *MemoryPlannerStore) ListAssignments(_ context.Context) ([]models.VehicleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.VehicleAssignment(nil), s.assignments...), nil
}

func (s *MemoryPlannerStore) AddPlanned(_ context.Context, p models.PlannedAssignment) (models.PlannedAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = "P-" + uuid.NewString()
	s.planned = append(s.planned, p)
	return p, nil
}

func (s *MemoryPlannerStore) ListPlanned(_ context.Context) ([]models.PlannedAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.PlannedAssignment(nil), s.planned...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *MemoryPlannerStore) DeletePlanned(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.planned[:0]
	for _, p := range s.planned {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.planned = kept
	return nil
}

func (s *MemoryPlannerStore) AddRecentPlace(_ context.Context, label string, lng, lat float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := recentPlaceID(lng, lat)
	kept := s.recents[:0]
	for _, p := range s.recents {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.recents = append(kept, models.RecentPlace{ID: id, Label: label, Lng: lng, Lat: lat, Ts: time.Now()})

	if len(s.recents) > maxRecentPlaces {
		sort.Slice(s.recents, func(i, j int) bool { return s.recents[i].Ts.After(s.recents[j].Ts) })
		s.recents = s.recents[:maxRecentPlaces]
	}
	return nil
}

func (s *MemoryPlannerStore) ListRecentPlaces(_ context.Context, max int) ([]models.RecentPlace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max <= 0 {
		max = 10
	}
	out := append([]models.RecentPlace(nil), s.recents...)
	sort.Slice(out, func(i, j int) bool { return out[i].Ts.After(out[j].Ts) })
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// MemoryUserCollection is the in-process UserCollection used when no
// database is configured.
type MemoryUserCollection struct {
	mu    sync.Mutex
	users []models.User
}

// NewMemoryUserCollection creates an empty collection.
func NewMemoryUserCollection() *MemoryUserCollection {
	return &MemoryUserCollection{}
}

func (c *MemoryUserCollection) InsertUser(_ context.Context, user models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	user.IsActive = true
	c.users = append(c.users, user)
	return nil
}

func (c *MemoryUserCollection) FindUserByID(_ context.Context, id string) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.users {
		if c.users[i].ID.Hex() == id {
			u := c.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (c *MemoryUserCollection) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.users {
		if c.users[i].Username == username {
			u := c.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (c *MemoryUserCollection) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.users {
		if c.users[i].Email == email {
			u := c.users[i]
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (c *MemoryUserCollection) UpdateLastLogin(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for i := range c.users {
		if c.users[i].ID.Hex() == id {
			c.users[i].LastLogin = &now
			c.users[i].UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("user not found")
}

func (c *MemoryUserCollection) DeleteUser(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.users[:0]
	for _, u := range c.users {
		if u.ID.Hex() != id {
			kept = append(kept, u)
		}
	}
	c.users = kept
	return nil
}
