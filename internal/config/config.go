package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverLevelDB  = "leveldb"
	DriverPostgres = "postgres"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPAddr    string

	StoreDriver string
	LevelDBPath string
	PostgresDSN string

	KafkaBrokers []string

	// MarketplaceAccount is the identity sellers approve at the asset registry.
	MarketplaceAccount string

	LogLevel       string
	LogDevelopment bool

	EnableDevRoutes bool
}

// Load reads an optional .env file (or the given files) and then the process
// environment. Variables already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}

	cfg := Config{
		ServiceName: envString("SERVICE_NAME", "nft-marketplace-ledger"),
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),

		StoreDriver: strings.ToLower(envString("STORE_DRIVER", DriverMemory)),
		LevelDBPath: os.Getenv("LEVELDB_PATH"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		KafkaBrokers: brokers,

		MarketplaceAccount: envString("MARKETPLACE_ACCOUNT", "marketplace"),

		LogLevel:       envString("LOG_LEVEL", "info"),
		LogDevelopment: envBool("LOG_DEVELOPMENT", false),

		EnableDevRoutes: envBool("ENABLE_DEV_ROUTES", false),
	}
	return cfg, cfg.Validate()
}

// Validate checks that the selected store driver has what it needs.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverLevelDB:
		if c.LevelDBPath == "" {
			return errors.New("LEVELDB_PATH is required for the leveldb store")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if strings.TrimSpace(c.MarketplaceAccount) == "" {
		return errors.New("MARKETPLACE_ACCOUNT must not be empty")
	}
	return nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
