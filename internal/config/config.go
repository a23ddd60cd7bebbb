package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Guard      GuardConfig      `mapstructure:"guard"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Relay      RelayConfig      `mapstructure:"relay"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

// GuardConfig groups the three request-protection filters. Thresholds are
// deployment config, not contracts: dev environments typically relax them.
type GuardConfig struct {
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
}

type ThrottleConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	BlockFor    time.Duration `mapstructure:"block_for"`
}

type AnomalyConfig struct {
	Window             time.Duration `mapstructure:"window"`
	MaxRequests        int           `mapstructure:"max_requests"`
	RapidFireThreshold int           `mapstructure:"rapid_fire_threshold"`
	StdDevThreshold    time.Duration `mapstructure:"stddev_threshold"`
	IntervalMin        time.Duration `mapstructure:"interval_min"`
	IntervalMax        time.Duration `mapstructure:"interval_max"`
	WarnLimit          int           `mapstructure:"warn_limit"`
	BlockFor           time.Duration `mapstructure:"block_for"`
}

type BreakerConfig struct {
	FailThreshold   int           `mapstructure:"fail_threshold"`
	Window          time.Duration `mapstructure:"window"`
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout"`
}

type DispatcherConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	WorkerCount int           `mapstructure:"worker_count"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchWait   time.Duration `mapstructure:"batch_wait"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BatchLimit  int           `mapstructure:"batch_limit"`
}

type RelayConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchLimit   int           `mapstructure:"batch_limit"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (LEADGATE_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (LEADGATE_*)
	v.SetEnvPrefix("LEADGATE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
