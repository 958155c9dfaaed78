package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config for the whole application
type Config struct {
	App        AppConfig
	API        APIConfig
	Simulation SimulationConfig
	Optimizer  OptimizerConfig
	Kafka      KafkaConfig
	Metrics    MetricsConfig
}

// General application configuration
type AppConfig struct {
	Name        string
	Environment string
	LogLevel    string
}

// Configuration for the API server
type APIConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Configuration for simulation runs
type SimulationConfig struct {
	NumPaths             int
	UseQMC               bool
	FatTailMethod        string
	MaxWorkers           int
	DrawdownThresholdPct float64
	RiskFreeRate         float64
}

// Configuration for the swap optimizer
type OptimizerConfig struct {
	TopK            int
	SwapNotional    float64
	ValidationPaths int
}

// Configuration for Kafka
type KafkaConfig struct {
	Brokers  []string
	Consumer KafkaConsumerConfig
	Producer KafkaProducerConfig
	Topics   KafkaTopicsConfig
}

// Kafka consumer configuration
type KafkaConsumerConfig struct {
	GroupID         string
	AutoOffsetReset string
	SessionTimeout  time.Duration
}

// Kafka producer configuration
type KafkaProducerConfig struct {
	Acks         string
	BatchSize    int
	RetryBackoff time.Duration
	MaxRetries   int
}

// Kafka topics configuration
type KafkaTopicsConfig struct {
	PortfolioSnapshots string
	RiskResults        string
}

// Configuration for metrics
type MetricsConfig struct {
	Prometheus PrometheusConfig
}

// Configuration for Prometheus metrics
type PrometheusConfig struct {
	Enabled bool
	Port    int
}

// Load reads the configuration from a file and environment variables
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine; defaults and env vars still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix("RISKSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "portfolio-risk-engine")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.log_level", "info")

	// API defaults
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.read_timeout", "10s")
	viper.SetDefault("api.write_timeout", "30s")
	viper.SetDefault("api.shutdown_timeout", "30s")

	// Simulation defaults
	viper.SetDefault("simulation.num_paths", 100000)
	viper.SetDefault("simulation.use_qmc", false)
	viper.SetDefault("simulation.fat_tail_method", "multivariateT")
	viper.SetDefault("simulation.max_workers", 8)
	viper.SetDefault("simulation.drawdown_threshold_pct", 20.0)
	viper.SetDefault("simulation.risk_free_rate", 0.04)

	// Optimizer defaults
	viper.SetDefault("optimizer.top_k", 15)
	viper.SetDefault("optimizer.swap_notional", 0.05)
	viper.SetDefault("optimizer.validation_paths", 20000)

	// Kafka defaults
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.consumer.group_id", "risk-engine")
	viper.SetDefault("kafka.consumer.auto_offset_reset", "latest")
	viper.SetDefault("kafka.consumer.session_timeout", "30s")
	viper.SetDefault("kafka.producer.acks", "all")
	viper.SetDefault("kafka.producer.batch_size", 16384)
	viper.SetDefault("kafka.producer.retry_backoff", "100ms")
	viper.SetDefault("kafka.producer.max_retries", 3)
	viper.SetDefault("kafka.topics.portfolio_snapshots", "portfolio.snapshots")
	viper.SetDefault("kafka.topics.risk_results", "risk.results")

	// Metrics defaults
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
}
