// Package config loads server settings from the environment, with a
// .env file picked up in development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds everything the server needs to start.
type Config struct {
	Port         string
	MongoURI     string
	MongoDB      string
	MQTTBroker   string
	MapboxToken  string
	OSRMBaseURL  string
	GeminiAPIKey string
	JWTSecret    string
	JWTExpiry    time.Duration
	TickInterval time.Duration
	LogLevel     string
}

// Load reads the environment. A missing .env file is not an error.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded settings from .env")
	}

	return Config{
		Port:         getEnv("PORT", "8080"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getEnv("MONGO_DB", "fleet_dispatch"),
		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MapboxToken:  os.Getenv("MAPBOX_TOKEN"),
		OSRMBaseURL:  os.Getenv("OSRM_BASE_URL"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTExpiry:    getDuration("JWT_EXPIRY", 24*time.Hour),
		TickInterval: getDuration("TICK_INTERVAL", time.Second),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": v}).Warn("Invalid duration, using default")
		return fallback
	}
	return parsed
}
