package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort            = "8080"
	defaultDBPath          = "reconciler.db"
	defaultStoreBackend    = "sqlite"
	defaultStateDir        = "."
	defaultSalesInterval   = 60 * time.Minute
	defaultReviewsInterval = 60 * time.Minute
	defaultSchedulerTick   = 15 * time.Second
	defaultNotifier        = "ntfy"
	defaultNtfyURL         = "https://ntfy.sh/your-topic-name-here"
	defaultLockTTL         = 10 * time.Minute
	defaultSnapshotObject  = "latest.json"
)

// Config is the process configuration, read from the environment (and a .env
// file when present).
type Config struct {
	Port     string
	LogLevel string

	StoreBackend   string
	DBPath         string
	StateDir       string
	LegacyStateDir string

	SalesInterval   time.Duration
	ReviewsInterval time.Duration
	SchedulerTick   time.Duration
	RunOnStart      bool

	Notifier      string
	NtfyURL       string
	PubSubProject string
	PubSubTopic   string
	PubSubCreds   string

	RedisAddress  string
	RedisPassword string
	LockTTL       time.Duration

	SnapshotDir    string
	SnapshotBucket string
	SnapshotObject string
	GCSCreds       string
}

// FromEnv loads .env (if any) and builds a Config with defaults applied.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Port:     getenv("PORT", defaultPort),
		LogLevel: getenv("LOG_LEVEL", "info"),

		StoreBackend:   strings.ToLower(getenv("STORE_BACKEND", defaultStoreBackend)),
		DBPath:         getenv("DB_PATH", defaultDBPath),
		StateDir:       getenv("STATE_DIR", defaultStateDir),
		LegacyStateDir: strings.TrimSpace(os.Getenv("LEGACY_STATE_DIR")),

		SalesInterval:   getenvDuration("SALES_INTERVAL", defaultSalesInterval),
		ReviewsInterval: getenvDuration("REVIEWS_INTERVAL", defaultReviewsInterval),
		SchedulerTick:   getenvDuration("SCHEDULER_TICK", defaultSchedulerTick),
		RunOnStart:      getenvBool("RUN_ON_START", true),

		Notifier:      strings.ToLower(getenv("NOTIFIER", defaultNotifier)),
		NtfyURL:       getenv("NTFY_TOPIC_URL", defaultNtfyURL),
		PubSubProject: pubSubProjectID(),
		PubSubTopic:   strings.TrimSpace(os.Getenv("PUBSUB_TOPIC")),
		PubSubCreds:   os.Getenv("PUBSUB_CREDENTIALS_JSON"),

		RedisAddress:  strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LockTTL:       getenvDuration("LOCK_TTL", defaultLockTTL),

		SnapshotDir:    strings.TrimSpace(os.Getenv("SNAPSHOT_DIR")),
		SnapshotBucket: strings.TrimSpace(os.Getenv("SNAPSHOT_BUCKET")),
		SnapshotObject: getenv("SNAPSHOT_OBJECT", defaultSnapshotObject),
		GCSCreds:       os.Getenv("GCS_CREDENTIALS_JSON"),
	}
}

func pubSubProjectID() string {
	for _, key := range []string{"PUBSUB_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCP_PROJECT"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// GetenvInt reads a positive integer, falling back on missing or bad values.
func GetenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// getenvDuration accepts Go durations ("90m") or a bare number of minutes.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if minutes, err := strconv.Atoi(value); err == nil && minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
