package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-dispatch/internal/assistant"
	"github.com/ukydev/fleet-dispatch/internal/auth"
	"github.com/ukydev/fleet-dispatch/internal/config"
	"github.com/ukydev/fleet-dispatch/internal/db"
	"github.com/ukydev/fleet-dispatch/internal/handlers"
	"github.com/ukydev/fleet-dispatch/internal/middleware"
	"github.com/ukydev/fleet-dispatch/internal/models"
	"github.com/ukydev/fleet-dispatch/internal/routing"
	"github.com/ukydev/fleet-dispatch/internal/seed"
	"github.com/ukydev/fleet-dispatch/internal/sim"
	"github.com/ukydev/fleet-dispatch/internal/telemetry"
	"github.com/ukydev/fleet-dispatch/internal/ws"
)

func main() {
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Persistence. Without Mongo everything runs in memory, which is
	// fine for the demo fleet.
	var userCollection db.UserCollection
	var plannerStore db.PlannerStore
	if cfg.MongoURI != "" {
		client, err := db.ConnectMongo()
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(ctx)
		}()
		database := db.Database(client, cfg.MongoDB)
		userCollection = db.NewMongoUserCollection(database)
		plannerStore = db.NewMongoPlannerStore(database)
		log.Info("Connected to MongoDB")
	} else {
		userCollection = db.NewMemoryUserCollection()
		plannerStore = db.NewMemoryPlannerStore()
		log.Warn("MONGO_URI not set, using in-memory stores")
	}

	// Route providers: Mapbox when a token is configured, OSRM
	// otherwise. The planner follows the same choice.
	var provider routing.Provider
	var planner routing.Planner
	if cfg.MapboxToken != "" {
		mapbox := routing.NewMapboxProvider(cfg.MapboxToken)
		provider = mapbox
		planner = mapbox
		log.Info("Routing via Mapbox")
	} else {
		osrm := routing.NewOSRMProvider(cfg.OSRMBaseURL)
		provider = osrm
		planner = &routing.ProviderPlanner{Provider: osrm, AvgSpeedMPS: sim.DefaultAvgSpeedMPS}
		log.Info("Routing via OSRM")
	}

	hub := ws.NewHub()
	defer hub.Close()

	publisher, err := telemetry.Connect(cfg.MQTTBroker, "fleet-dispatch-server")
	if err != nil {
		log.WithError(err).Warn("MQTT unavailable, telemetry fan-out disabled")
	}
	defer publisher.Close()

	engine := sim.New(provider, sim.Config{TickInterval: cfg.TickInterval})
	engine.Init(seed.Vehicles(), seed.Locations(), seed.Deliveries(), sim.Callbacks{
		OnVehiclesUpdate: func(vehicles []models.Vehicle) {
			hub.BroadcastVehicles(vehicles)
			publisher.PublishVehicles(vehicles)
		},
		OnDeliveriesUpdate: hub.BroadcastDeliveries,
	})
	engine.Start()
	defer engine.Stop()

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		log.WithError(err).Fatal("Failed to build auth service")
	}
	authMW := middleware.NewAuthMiddleware(authService)
	rateMW := middleware.NewRateLimitMiddleware()

	authHandler := handlers.NewAuthHandler(authService, userCollection)
	fleetHandler := handlers.NewFleetHandler(engine)
	plannerHandler := handlers.NewPlannerHandler(planner, plannerStore)
	chatHandler := handlers.NewChatHandler(assistant.NewService(cfg.GeminiAPIKey), engine)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)

	view := authMW.RequirePermission("view_fleet")
	dispatch := authMW.RequirePermission("start_delivery")
	planRoute := authMW.RequirePermission("plan_route")
	saveRoute := authMW.RequirePermission("save_route")
	chat := authMW.RequirePermission("chat")

	mux.Handle("GET /api/fleet/vehicles", view(http.HandlerFunc(fleetHandler.GetVehicles)))
	mux.Handle("GET /api/fleet/locations", view(http.HandlerFunc(fleetHandler.GetLocations)))
	mux.Handle("GET /api/fleet/deliveries", view(http.HandlerFunc(fleetHandler.GetDeliveries)))
	mux.Handle("GET /api/fleet/kpi", view(http.HandlerFunc(fleetHandler.GetKPI)))
	mux.Handle("POST /api/fleet/deliveries/{id}/start", dispatch(http.HandlerFunc(fleetHandler.StartDelivery)))
	mux.Handle("POST /api/fleet/deliveries/{id}/cancel", authMW.RequirePermission("cancel_delivery")(http.HandlerFunc(fleetHandler.CancelDelivery)))
	mux.Handle("POST /api/fleet/vehicles/{id}/reroute", dispatch(http.HandlerFunc(fleetHandler.RerouteVehicle)))
	mux.Handle("DELETE /api/fleet/vehicles/{id}", authMW.RequireRole(models.RoleDispatcher)(http.HandlerFunc(fleetHandler.RemoveVehicle)))

	mux.Handle("POST /api/planner/route", planRoute(http.HandlerFunc(plannerHandler.PlanRoute)))
	mux.Handle("POST /api/planner/routes", saveRoute(http.HandlerFunc(plannerHandler.SaveRoute)))
	mux.Handle("GET /api/planner/routes", view(http.HandlerFunc(plannerHandler.ListRoutes)))
	mux.Handle("PATCH /api/planner/routes/{id}", saveRoute(http.HandlerFunc(plannerHandler.RenameRoute)))
	mux.Handle("DELETE /api/planner/routes/{id}", saveRoute(http.HandlerFunc(plannerHandler.DeleteRoute)))
	mux.Handle("POST /api/planner/assignments", saveRoute(http.HandlerFunc(plannerHandler.AssignRoute)))
	mux.Handle("GET /api/planner/assignments", view(http.HandlerFunc(plannerHandler.ListAssignments)))
	mux.Handle("POST /api/planner/planned", saveRoute(http.HandlerFunc(plannerHandler.AddPlanned)))
	mux.Handle("GET /api/planner/planned", view(http.HandlerFunc(plannerHandler.ListPlanned)))
	mux.Handle("POST /api/planner/recents", planRoute(http.HandlerFunc(plannerHandler.AddRecentPlace)))
	mux.Handle("GET /api/planner/recents", view(http.HandlerFunc(plannerHandler.ListRecentPlaces)))
	mux.Handle("DELETE /api/planner/planned/{id}", saveRoute(http.HandlerFunc(plannerHandler.DeletePlanned)))

	mux.Handle("POST /api/chat", chat(http.HandlerFunc(chatHandler.Chat)))
	mux.Handle("GET /ws", http.HandlerFunc(hub.ServeWS))

	handler := rateMW.RateLimit(300, 60)(authMW.Authenticate(mux))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Shutdown did not complete cleanly")
	}
}
