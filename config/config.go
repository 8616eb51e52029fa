package config

import (
	"log"
	"os"
	"strings"

	"craftriver/globals"

	"github.com/joho/godotenv"
)

// Config is the single source of runtime configuration. Everything is read
// once at startup and passed down explicitly; nothing else in the codebase
// reads environment variables for wiring decisions.
type Config struct {
	Port      string
	MongoURI  string
	MongoDB   string
	RedisAddr string

	// CORS is the one declarative cross-origin policy for the whole server.
	CORS CORSPolicy
}

// CORSPolicy is an explicit allow-list consumed once in main.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	// The signing secret must be resolved here, after godotenv, so a .env
	// value is not lost to an init-time read.
	globals.JwtSecret = []byte(envOr("JWT_SECRET", "change_me_in_production"))

	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	} else if port[0] != ':' {
		port = ":" + port
	}

	return Config{
		Port:      port,
		MongoURI:  envOr("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:   envOr("MONGODB_DB", "craftriver"),
		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		CORS: CORSPolicy{
			AllowedOrigins: splitEnv("CORS_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:3001",
			}),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "Range"},
			// Media range responses need these visible to browser players.
			ExposedHeaders:   []string{"Content-Length", "Content-Range", "Accept-Ranges"},
			AllowCredentials: true,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitEnv(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
