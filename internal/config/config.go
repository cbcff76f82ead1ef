package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/CyberwizD/driver-status-relay/internal/repository"
	"github.com/CyberwizD/driver-status-relay/internal/services"
)

// Provider names accepted by PUSH_PROVIDER.
const (
	ProviderFCM = "fcm"
	ProviderLog = "log"
)

// Config holds relay configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	LogFormat string
	HTTPPort  string

	DirectoryBackend string
	DatabaseURL      string
	TokenTable       string
	DeliveryTable    string
	RedisURL         string
	RedisPassword    string
	RedisDB          int

	PushProvider    string
	FCMServerKey    string
	FCMEndpoint     string
	ProviderTimeout time.Duration

	RoutingPolicy  string
	AddressingMode string
	DeliveryMode   string
	AdminTopic     string
	Timezone       string
	WellKnownDir   string

	ConnectMaxAttempts    int
	ConnectInitialBackoff time.Duration
	ConnectMaxBackoff     time.Duration
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:   getEnv("APP_NAME", "driver_status_relay"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		HTTPPort:  getEnv("HTTP_PORT", getEnv("PORT", "3000")),

		DirectoryBackend: getEnv("DIRECTORY_BACKEND", repository.BackendMemory),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		TokenTable:       getEnv("TOKEN_TABLE", "push_tokens"),
		DeliveryTable:    getEnv("DELIVERY_TABLE", "notification_deliveries"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),

		PushProvider:    getEnv("PUSH_PROVIDER", ""),
		FCMServerKey:    getEnv("FCM_SERVER_KEY", ""),
		FCMEndpoint:     getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),

		RoutingPolicy:  getEnv("ROUTING_POLICY", string(services.PolicyStrict)),
		AddressingMode: getEnv("ADDRESSING_MODE", string(services.AddressByNumber)),
		DeliveryMode:   getEnv("DELIVERY_MODE", "both"),
		AdminTopic:     getEnv("ADMIN_TOPIC", ""),
		Timezone:       getEnv("TIMEZONE", ""),
		WellKnownDir:   getEnv("WELL_KNOWN_DIR", ""),

		ConnectMaxAttempts:    getEnvAsInt("CONNECT_MAX_ATTEMPTS", 5),
		ConnectInitialBackoff: getEnvAsDuration("CONNECT_INITIAL_BACKOFF", time.Second),
		ConnectMaxBackoff:     getEnvAsDuration("CONNECT_MAX_BACKOFF", 15*time.Second),
	}

	if cfg.PushProvider == "" {
		cfg.PushProvider = ProviderLog
		if cfg.FCMServerKey != "" {
			cfg.PushProvider = ProviderFCM
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	backend, err := repository.ParseBackend(c.DirectoryBackend)
	if err != nil {
		return err
	}
	c.DirectoryBackend = backend

	var missing []string
	switch backend {
	case repository.BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case repository.BackendRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	}

	c.PushProvider = strings.ToLower(strings.TrimSpace(c.PushProvider))
	switch c.PushProvider {
	case ProviderFCM:
		if c.FCMServerKey == "" {
			missing = append(missing, "FCM_SERVER_KEY")
		}
	case ProviderLog:
	default:
		return fmt.Errorf("unknown push provider %q", c.PushProvider)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	if _, err := services.ParsePolicy(c.RoutingPolicy); err != nil {
		return err
	}
	if _, err := services.ParseAddressingMode(c.AddressingMode); err != nil {
		return err
	}
	if _, err := services.ParsePayloadMode(c.DeliveryMode); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TIMEZONE; empty means the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Empty variables count as unset.
func getEnv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if value := getEnv(key, ""); value != "" {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
