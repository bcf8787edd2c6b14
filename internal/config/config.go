package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Local       MongoConfig
	Cloud       MongoConfig
	Collections CollectionsConfig
	Sync        SyncConfig
	Logging     LoggingConfig
	Scheduler   SchedulerConfig
	Redis       RedisConfig
}

type MongoConfig struct {
	URI      string `validate:"required"`
	Database string `validate:"required"`
}

type CollectionsConfig struct {
	Drivers  string `validate:"required"`
	Vehicles string `validate:"required"`
	Trips    string `validate:"required"`
}

// SyncConfig holds the rules the reconciliation passes apply.
type SyncConfig struct {
	DriverNameMarker  string        `validate:"required"`
	VehicleOwnedField string        `validate:"required"`
	VehicleOwnedValue string        `validate:"required"`
	TripWindow        time.Duration `validate:"gt=0"`
	ExcludedGoods     string
	OperationTimeout  time.Duration `validate:"gt=0"`
	DryRun            bool
}

type LoggingConfig struct {
	Level      string `validate:"oneof=debug info warn error"`
	Format     string `validate:"oneof=json console"`
	OutputPath string
}

// SchedulerConfig is only read by the daemon.
type SchedulerConfig struct {
	Interval       time.Duration `validate:"gt=0"`
	LockTTL        time.Duration `validate:"gt=0"`
	Port           string
	AllowedOrigins []string

	// RunRateLimit caps manual runs per client per minute; 0 disables it.
	RunRateLimit int `validate:"gte=0"`
}

type RedisConfig struct {
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	defaultLocalDatabase = "fleet_local"
	defaultCloudDatabase = "fleet_cloud"
	defaultTripWindow    = 65 * 24 * time.Hour
)

// Load reads the configuration from the environment, after applying an
// optional .env file from the working directory.
func Load() (*Config, error) {
	// .env is optional for batch runs launched by cron
	_ = godotenv.Load()

	localURI := os.Getenv("LOCAL_MONGO_URI")
	cloudURI := os.Getenv("CLOUD_MONGO_URI")

	cfg := &Config{
		Local: MongoConfig{
			URI:      localURI,
			Database: databaseName(localURI, os.Getenv("LOCAL_MONGO_DB"), defaultLocalDatabase),
		},
		Cloud: MongoConfig{
			URI:      cloudURI,
			Database: databaseName(cloudURI, os.Getenv("CLOUD_MONGO_DB"), defaultCloudDatabase),
		},
		Collections: CollectionsConfig{
			Drivers:  getEnv("DRIVERS_COLLECTION", "drivers"),
			Vehicles: getEnv("VEHICLES_COLLECTION", "vehicles"),
			Trips:    getEnv("TRIPS_COLLECTION", "trips"),
		},
		Sync: SyncConfig{
			DriverNameMarker:  getEnv("SYNC_DRIVER_NAME_MARKER", "ITPL"),
			VehicleOwnedField: getEnv("SYNC_VEHICLE_OWNED_FIELD", "Ownership"),
			VehicleOwnedValue: getEnv("SYNC_VEHICLE_OWNED_VALUE", "Owned"),
			TripWindow:        getDuration("SYNC_TRIP_WINDOW", defaultTripWindow),
			ExcludedGoods:     getEnv("SYNC_EXCLUDED_GOODS", "HSD"),
			OperationTimeout:  getDuration("SYNC_OPERATION_TIMEOUT", 30*time.Second),
			DryRun:            getBool("SYNC_DRY_RUN", false),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "console"),
			OutputPath: os.Getenv("LOG_OUTPUT"),
		},
		Scheduler: SchedulerConfig{
			Interval:       getDuration("SYNC_INTERVAL", 15*time.Minute),
			LockTTL:        getDuration("SYNC_LOCK_TTL", 10*time.Minute),
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
			RunRateLimit:   getInt("SYNC_RUN_RATE_LIMIT", 6),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           getInt("REDIS_DB", 0),
			PoolSize:     getInt("REDIS_POOL_SIZE", 5),
			MaxRetries:   getInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of cfg and reports every failing field.
func Validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
}

// databaseName prefers an explicit name, then the path of the URI, then the default.
func databaseName(uri, explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if uri != "" {
		if cs, err := connstring.ParseAndValidate(uri); err == nil && cs.Database != "" {
			return cs.Database
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
