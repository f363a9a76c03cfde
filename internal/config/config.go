package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kefkio/bloc-sacco/internal/domain/params"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

type Config struct {
	AppPort  string
	LogLevel string

	DBDriver   string
	DBLogLevel string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	PostgresDSN string
	SQLitePath  string

	RedisAddr     string
	RedisDB       int
	RedisUsername string
	RedisPassword string
	RedisTLS      bool
	RedisPoolSize int

	IdempTTLSecs int

	JWTSecret      string
	AdminAddresses []string

	KafkaBrokers   []string
	KafkaTopic     string
	OutboxInterval time.Duration
	OutboxBatch    int

	GuardBackend string
	GuardTTL     time.Duration

	// Params seed the protocol_params row on first start.
	Params params.Params
}

type configFile struct {
	AdminAddresses []string      `yaml:"admin_addresses"`
	Params         params.Params `yaml:"params"`
	Kafka          struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, dst *int) {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(k string, dst *int64) {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
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

// Load reads defaults, then the optional YAML file named by CONFIG_FILE, then
// environment variables, each layer overriding the previous one.
func Load() (*Config, error) {
	c := &Config{
		AppPort:    getenv("APP_PORT", "8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		DBDriver:   getenv("DB_DRIVER", "mysql"),
		DBLogLevel: getenv("DB_LOG_LEVEL", "warn"),
		MySQLHost:  getenv("MYSQL_HOST", "mysql"),
		MySQLPort:  getenv("MYSQL_PORT", "3306"),
		MySQLDB:    getenv("MYSQL_DB", "sacco"),
		MySQLUser:  getenv("MYSQL_USER", "sacco"),
		MySQLPass:  getenv("MYSQL_PASS", "sacco"),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		SQLitePath:  getenv("SQLITE_PATH", "sacco.db"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		IdempTTLSecs: 300,

		JWTSecret:      os.Getenv("JWT_SECRET"),
		KafkaTopic:     "sacco.loan-events",
		OutboxInterval: 2 * time.Second,
		OutboxBatch:    100,
		GuardBackend:   getenv("GUARD_BACKEND", "memory"),
		GuardTTL:       30 * time.Second,

		Params: params.Params{
			MinLoanAmount:         1000,
			GracePeriodSecs:       3 * 24 * 3600,
			DefaultPenaltyPercent: 5,
			MaxPenaltyPercent:     10,
			MaxInstallmentCount:   360,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}

	envInt("REDIS_DB", &c.RedisDB)
	envInt("REDIS_POOL_SIZE", &c.RedisPoolSize)
	c.RedisUsername = os.Getenv("REDIS_USERNAME")
	c.RedisPassword = os.Getenv("REDIS_PASSWORD")
	c.RedisTLS, _ = strconv.ParseBool(os.Getenv("REDIS_TLS"))
	envInt("IDEMPOTENCY_TTL_SECONDS", &c.IdempTTLSecs)
	envInt("OUTBOX_BATCH", &c.OutboxBatch)
	if v := os.Getenv("ADMIN_ADDRESSES"); v != "" {
		c.AdminAddresses = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	c.KafkaTopic = getenv("KAFKA_TOPIC", c.KafkaTopic)
	if v := os.Getenv("OUTBOX_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.OutboxInterval = d
		}
	}
	var guardTTL int
	envInt("GUARD_TTL_SECONDS", &guardTTL)
	if guardTTL > 0 {
		c.GuardTTL = time.Duration(guardTTL) * time.Second
	}

	envInt64("MIN_LOAN_AMOUNT", &c.Params.MinLoanAmount)
	envInt64("GRACE_PERIOD_SECONDS", &c.Params.GracePeriodSecs)
	envInt64("DEFAULT_PENALTY_PERCENT", &c.Params.DefaultPenaltyPercent)
	envInt64("MAX_PENALTY_PERCENT", &c.Params.MaxPenaltyPercent)
	envInt("MAX_INSTALLMENT_COUNT", &c.Params.MaxInstallmentCount)

	for i, a := range c.AdminAddresses {
		c.AdminAddresses[i] = id.NormalizeAddress(a)
	}
	return c, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if len(f.AdminAddresses) > 0 {
		c.AdminAddresses = f.AdminAddresses
	}
	if len(f.Kafka.Brokers) > 0 {
		c.KafkaBrokers = f.Kafka.Brokers
	}
	if f.Kafka.Topic != "" {
		c.KafkaTopic = f.Kafka.Topic
	}
	p := f.Params
	if p.MinLoanAmount > 0 {
		c.Params.MinLoanAmount = p.MinLoanAmount
	}
	if p.GracePeriodSecs > 0 {
		c.Params.GracePeriodSecs = p.GracePeriodSecs
	}
	if p.DefaultPenaltyPercent > 0 {
		c.Params.DefaultPenaltyPercent = p.DefaultPenaltyPercent
	}
	if p.MaxPenaltyPercent > 0 {
		c.Params.MaxPenaltyPercent = p.MaxPenaltyPercent
	}
	if p.MaxInstallmentCount > 0 {
		c.Params.MaxInstallmentCount = p.MaxInstallmentCount
	}
	return nil
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("missing POSTGRES_DSN")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("missing JWT_SECRET")
	}
	if c.GuardBackend != "memory" && c.GuardBackend != "redis" {
		return fmt.Errorf("invalid GUARD_BACKEND %q (memory|redis)", c.GuardBackend)
	}
	for _, a := range c.AdminAddresses {
		if !id.ValidAddress(a) {
			return fmt.Errorf("invalid admin address %q", a)
		}
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("protocol params: %w", err)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	switch c.DBDriver {
	case "postgres":
		return c.PostgresDSN
	case "sqlite":
		return c.SQLitePath
	}
	return c.MySQLDSN()
}
