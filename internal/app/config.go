package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"roomcast/pkg/logger"
)

// Config defines how the coordination service runs.
type Config struct {
	// Addr is the listen address, Path the websocket endpoint.
	Addr string
	Path string
	// DBPath points at the SQLite history/directory store. Empty disables
	// durability entirely; rooms then serve backlog from memory only.
	DBPath string
	// TypingTTL bounds how long a typing indicator may outlive its last signal.
	TypingTTL time.Duration
	// RoomGrace is how long an empty room survives before reclamation.
	RoomGrace time.Duration
	// RateLimit / RateWindow bound per-user message throughput.
	RateLimit  int
	RateWindow time.Duration
	// Backlog caps how many recent messages a joiner is seeded with.
	Backlog int
}

// Load builds a Config from the environment, with .env support.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded: %v", err)
	}
	return Config{
		Addr:       getEnv("ROOMCAST_ADDR", ":8080"),
		Path:       NormalizeJoinPath(getEnv("ROOMCAST_PATH", "/ws")),
		DBPath:     os.Getenv("ROOMCAST_DB_PATH"),
		TypingTTL:  getDuration("ROOMCAST_TYPING_TTL", 5*time.Second),
		RoomGrace:  getDuration("ROOMCAST_ROOM_GRACE", 30*time.Second),
		RateLimit:  getInt("ROOMCAST_RATE_LIMIT", 5),
		RateWindow: getDuration("ROOMCAST_RATE_WINDOW", 3*time.Second),
		Backlog:    getInt("ROOMCAST_BACKLOG", 50),
	}
}

// NormalizeJoinPath guarantees the websocket path starts with '/' and falls
// back to /ws when empty.
func NormalizeJoinPath(path string) string {
	if path == "" {
		return "/ws"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Fatal("invalid duration for %s: %v", key, err)
	}
	return d
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Fatal("invalid integer for %s: %v", key, err)
	}
	return n
}
