package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string `yaml:"port"`      // サーバーポート（8080）
	GoEnv    string `yaml:"go_env"`    // dev/prod
	LogLevel string `yaml:"log_level"` // debug/info/warn/error

	StoreDriver string `yaml:"store_driver"` // postgres/mongo/memory

	DatabaseURL      string `yaml:"database_url"` // あればPOSTGRES_*より優先
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     int    `yaml:"postgres_port"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`

	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	JWTSecret string `yaml:"jwt_secret"` // JWT署名シークレット

	EventsDriver  string   `yaml:"events_driver"` // none/rabbitmq/kafka
	RabbitMQURL   string   `yaml:"rabbitmq_url"`
	RabbitMQQueue string   `yaml:"rabbitmq_queue"`
	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaTopic    string   `yaml:"kafka_topic"`

	RateLimitRPS    float64       `yaml:"rate_limit_rps"` // 0なら無効
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"

	EventsDriverNone     = "none"
	EventsDriverRabbitMQ = "rabbitmq"
	EventsDriverKafka    = "kafka"

	// 開発環境でJWT_SECRET未設定のときに使う
	DevJWTSecret = "dev_secret_change_me"
)

func defaults() Config {
	return Config{
		Port:            "8080",
		GoEnv:           "dev",
		LogLevel:        "info",
		StoreDriver:     StoreDriverPostgres,
		PostgresUser:    "postgres",
		PostgresDB:      "app",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresSSLMode: "disable",
		MongoURI:        "mongodb://localhost:27017/?replicaSet=rs0",
		MongoDatabase:   "storefront",
		EventsDriver:    EventsDriverNone,
		RabbitMQQueue:   "order_events",
		KafkaTopic:      "order-events",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Loadは 既定値 < CONFIG_FILE(YAML) < .env < 環境変数 の順で上書きする
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	// .env は無くてもよい（既存の環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DevJWTSecret
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.GoEnv, "GO_ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.StoreDriver, "STORE_DRIVER")

	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.PostgresUser, "POSTGRES_USER")
	setString(&cfg.PostgresPassword, "POSTGRES_PASSWORD")
	setString(&cfg.PostgresDB, "POSTGRES_DB")
	setString(&cfg.PostgresHost, "POSTGRES_HOST")
	setString(&cfg.PostgresSSLMode, "POSTGRES_SSLMODE")
	if err := setInt(&cfg.PostgresPort, "POSTGRES_PORT"); err != nil {
		return err
	}

	setString(&cfg.MongoURI, "MONGO_URI")
	setString(&cfg.MongoDatabase, "MONGO_DATABASE")

	setString(&cfg.JWTSecret, "JWT_SECRET")

	setString(&cfg.EventsDriver, "EVENTS_DRIVER")
	setString(&cfg.RabbitMQURL, "RABBITMQ_URL")
	setString(&cfg.RabbitMQQueue, "RABBITMQ_QUEUE")
	setString(&cfg.KafkaTopic, "KAFKA_TOPIC")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS must be number: %w", err)
		}
		cfg.RateLimitRPS = f
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHUTDOWN_TIMEOUT must be duration: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	return nil
}

// Validate は必須項目と組み合わせをチェックする
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.GoEnv == "" {
		return fmt.Errorf("GO_ENV is required")
	}
	if c.JWTSecret == "" && !c.IsDev() {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" && c.PostgresHost == "" {
			return fmt.Errorf("DATABASE_URL or POSTGRES_HOST is required")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("MONGO_DATABASE is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, mongo, memory: %q", c.StoreDriver)
	}

	switch c.EventsDriver {
	case EventsDriverNone, "":
	case EventsDriverRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required")
		}
	case EventsDriverKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required")
		}
	default:
		return fmt.Errorf("EVENTS_DRIVER must be one of none, rabbitmq, kafka: %q", c.EventsDriver)
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	return nil
}

func (c Config) IsDev() bool {
	return c.GoEnv == "dev"
}

// gorm用のDSN
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be number: %w", key, err)
	}
	*dst = i
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
