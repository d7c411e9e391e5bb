package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "FLASHSALE_"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Storage   StorageConfig   `json:"storage"`
	Engine    EngineConfig    `json:"engine"`
	Kafka     KafkaConfig     `json:"kafka"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Catalog   CatalogConfig   `json:"catalog"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Log       LogConfig       `json:"log"`
}

type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	RequestTimeout Duration `json:"request_timeout"`
}

type DatabaseConfig struct {
	Driver         string `json:"driver"` // "postgres" (lib/pq) or "pgx"
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"dbname"`
	SSLMode        string `json:"sslmode"`
	MigrationsPath string `json:"migrations_path"`
	MaxOpenConns   int    `json:"max_open_conns"`
	MaxIdleConns   int    `json:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type StorageConfig struct {
	Driver string `json:"driver"` // "postgres" or "memory"
}

type EngineConfig struct {
	MaxCASRetries    int      `json:"max_cas_retries"`
	LockTTL          Duration `json:"lock_ttl"`
	ReceiptCacheTTL  Duration `json:"receipt_cache_ttl"`
	MetricsRetries   uint64   `json:"metrics_retries"`
	ExpectedReceipts uint64   `json:"expected_receipts"`
}

type KafkaConfig struct {
	Brokers      []string `json:"brokers"`
	Topic        string   `json:"topic"`
	BatchSize    int      `json:"batch_size"`
	BatchTimeout Duration `json:"batch_timeout"`
}

type TelemetryConfig struct {
	ServiceName  string `json:"service_name"`
	OTLPEndpoint string `json:"otlp_endpoint"`
	OTLPInsecure bool   `json:"otlp_insecure"`
}

type CatalogConfig struct {
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout"`
}

type SchedulerConfig struct {
	ViewFlushInterval Duration `json:"view_flush_interval"`
}

type LogConfig struct {
	Level string `json:"level"`
}

// Duration reads "1.5s" style strings from JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(v)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: Duration{30 * time.Second},
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			DBName:         "flashsale",
			SSLMode:        "disable",
			MigrationsPath: "migrations",
			MaxOpenConns:   100,
			MaxIdleConns:   50,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     6379,
			PoolSize: 100,
		},
		Storage: StorageConfig{Driver: "postgres"},
		Engine: EngineConfig{
			MaxCASRetries:    16,
			LockTTL:          Duration{5 * time.Second},
			ReceiptCacheTTL:  Duration{24 * time.Hour},
			MetricsRetries:   5,
			ExpectedReceipts: 1_000_000,
		},
		Kafka: KafkaConfig{
			Topic:        "flash-sale-events",
			BatchSize:    100,
			BatchTimeout: Duration{10 * time.Millisecond},
		},
		Telemetry: TelemetryConfig{ServiceName: "flashsale-engine"},
		Catalog:   CatalogConfig{Timeout: Duration{2 * time.Second}},
		Scheduler: SchedulerConfig{ViewFlushInterval: Duration{5 * time.Second}},
		Log:       LogConfig{Level: "info"},
	}
}

// LoadConfig reads the JSON file at path (a missing file keeps defaults),
// then applies FLASHSALE_* environment overrides, reading .env first if present.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			decoder := json.NewDecoder(file)
			if err := decoder.Decode(config); err != nil {
				return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		if v, ok := lookup(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
		return nil
	}
	flag := func(name string, dst *bool) error {
		if v, ok := lookup(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
		return nil
	}

	str("SERVER_HOST", &c.Server.Host)
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_HOST", &c.Database.Host)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.DBName)
	str("DB_SSLMODE", &c.Database.SSLMode)
	str("DB_MIGRATIONS_PATH", &c.Database.MigrationsPath)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	str("CATALOG_BASE_URL", &c.Catalog.BaseURL)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}

	for name, dst := range map[string]*int{
		"SERVER_PORT":     &c.Server.Port,
		"DB_PORT":         &c.Database.Port,
		"REDIS_PORT":      &c.Redis.Port,
		"REDIS_DB":        &c.Redis.DB,
		"MAX_CAS_RETRIES": &c.Engine.MaxCASRetries,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	return flag("REDIS_ENABLED", &c.Redis.Enabled)
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Engine.MaxCASRetries < 1 {
		return errors.New("engine.max_cas_retries must be at least 1")
	}

	if c.Scheduler.ViewFlushInterval.Duration <= 0 {
		return errors.New("scheduler.view_flush_interval must be positive")
	}

	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
