package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	MigrationsDir string
	TemplatesDir  string
	CORSOrigin    string
	UndoDepth     int
	IdleTimeout   time.Duration
	// Meilisearch - optional, search falls back to the in-memory index
	// when unset.
	MeiliURL       string
	MeiliMasterKey string
}

func Load() Config {
	return Config{
		Addr:           getenv("API_ADDR", ":8790"),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		RedisURL:       getenv("REDIS_URL", ""),
		MigrationsDir:  getenv("BLUEPRINT_MIGRATIONS_DIR", "./db/migrations"),
		TemplatesDir:   getenv("BLUEPRINT_TEMPLATES_DIR", "./data/templates"),
		CORSOrigin:     getenv("BLUEPRINT_CORS_ORIGIN", "*"),
		UndoDepth:      getenvInt("BLUEPRINT_UNDO_DEPTH", 0),
		IdleTimeout:    time.Duration(getenvInt("BLUEPRINT_IDLE_HOURS", 24)) * time.Hour,
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
