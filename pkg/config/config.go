package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the configuration for a vigil agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	APIPort     int
	LogLevel    string

	// Fusion configuration
	ActivityThreshold    float64
	SmoothingHistorySize int

	// Behavior analysis configuration
	PatternsPath        string
	TimeWindowSec       int
	ConfidenceThreshold float64
	BehaviorHistorySize int
	AnalysisIntervalMs  int
	MinActivities       int
	ContinuousAnalysis  bool
	AnomalyDetection    bool
	AnomalyThreshold    float64
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:    "localhost",
		MQTTPort:      1883,
		MQTTUser:      "",
		MQTTPassword:  "",
		MQTTClientID:  "",
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "vigil",
		PostgresPassword:           "",
		PostgresDB:                 "vigil",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName: "vigil-agent",
		HealthPort:  8080,
		APIPort:     3004,
		LogLevel:    "info",
		// Fusion defaults
		ActivityThreshold:    0.6,
		SmoothingHistorySize: 5,
		// Behavior analysis defaults
		PatternsPath:        "patterns.yaml",
		TimeWindowSec:       3600,
		ConfidenceThreshold: 0.65,
		BehaviorHistorySize: 100,
		AnalysisIntervalMs:  5000,
		MinActivities:       3,
		ContinuousAnalysis:  true,
		AnomalyDetection:    true,
		AnomalyThreshold:    0.6,
	}
}

// LoadFromEnv loads configuration from environment variables with VIGIL_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("VIGIL_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("VIGIL_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("VIGIL_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("VIGIL_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("VIGIL_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("VIGIL_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("VIGIL_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("VIGIL_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("VIGIL_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("VIGIL_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("VIGIL_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("VIGIL_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("VIGIL_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("VIGIL_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("VIGIL_POSTGRES_SSL_MODE"); v != "" {
		c.PostgresSSLMode = v
	}

	// Service configuration
	if v := os.Getenv("VIGIL_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("VIGIL_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("VIGIL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
	if v := os.Getenv("VIGIL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Fusion configuration
	if v := os.Getenv("VIGIL_ACTIVITY_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			c.ActivityThreshold = threshold
		}
	}
	if v := os.Getenv("VIGIL_SMOOTHING_HISTORY_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.SmoothingHistorySize = size
		}
	}

	// Behavior analysis configuration
	if v := os.Getenv("VIGIL_PATTERNS_PATH"); v != "" {
		c.PatternsPath = v
	}
	if v := os.Getenv("VIGIL_TIME_WINDOW_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			c.TimeWindowSec = sec
		}
	}
	if v := os.Getenv("VIGIL_CONFIDENCE_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceThreshold = threshold
		}
	}
	if v := os.Getenv("VIGIL_BEHAVIOR_HISTORY_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.BehaviorHistorySize = size
		}
	}
	if v := os.Getenv("VIGIL_ANALYSIS_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.AnalysisIntervalMs = ms
		}
	}
	if v := os.Getenv("VIGIL_MIN_ACTIVITIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MinActivities = n
		}
	}
	if v := os.Getenv("VIGIL_CONTINUOUS_ANALYSIS"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			c.ContinuousAnalysis = enable
		}
	}
	if v := os.Getenv("VIGIL_ANOMALY_DETECTION"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			c.AnomalyDetection = enable
		}
	}
	if v := os.Getenv("VIGIL_ANOMALY_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			c.AnomalyThreshold = threshold
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	pflag.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	pflag.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	pflag.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres username")
	pflag.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	pflag.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	pflag.StringVar(&c.PostgresSSLMode, "postgres-ssl-mode", c.PostgresSSLMode, "Postgres SSL mode")

	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.IntVar(&c.APIPort, "api-port", c.APIPort, "HTTP API port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Fusion flags
	pflag.Float64Var(&c.ActivityThreshold, "activity-threshold", c.ActivityThreshold, "Minimum fused score to label an activity")
	pflag.IntVar(&c.SmoothingHistorySize, "smoothing-history-size", c.SmoothingHistorySize, "Temporal smoothing window length")

	// Behavior analysis flags
	pflag.StringVar(&c.PatternsPath, "patterns-path", c.PatternsPath, "Path to behavior pattern catalog (YAML)")
	pflag.IntVar(&c.TimeWindowSec, "time-window", c.TimeWindowSec, "Sliding window length in seconds")
	pflag.Float64Var(&c.ConfidenceThreshold, "confidence-threshold", c.ConfidenceThreshold, "Minimum pattern match score to report")
	pflag.IntVar(&c.BehaviorHistorySize, "behavior-history-size", c.BehaviorHistorySize, "Maximum behavior results kept in history")
	pflag.IntVar(&c.AnalysisIntervalMs, "analysis-interval-ms", c.AnalysisIntervalMs, "Minimum time between behavior analyses (ms)")
	pflag.IntVar(&c.MinActivities, "min-activities", c.MinActivities, "Minimum observations required for analysis")
	pflag.BoolVar(&c.ContinuousAnalysis, "continuous-analysis", c.ContinuousAnalysis, "Enable continuous behavior analysis")
	pflag.BoolVar(&c.AnomalyDetection, "anomaly-detection", c.AnomalyDetection, "Enable anomaly detection fallback")
	pflag.Float64Var(&c.AnomalyThreshold, "anomaly-threshold", c.AnomalyThreshold, "Aggregate anomaly score threshold")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.ActivityThreshold < 0 || c.ActivityThreshold > 1 {
		return fmt.Errorf("activity threshold must be between 0.0 and 1.0")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0.0 and 1.0")
	}
	if c.AnomalyThreshold < 0 || c.AnomalyThreshold > 1 {
		return fmt.Errorf("anomaly threshold must be between 0.0 and 1.0")
	}
	if c.SmoothingHistorySize < 1 {
		return fmt.Errorf("smoothing history size must be at least 1")
	}
	if c.TimeWindowSec <= 0 {
		return fmt.Errorf("time window must be positive")
	}
	if c.BehaviorHistorySize < 1 {
		return fmt.Errorf("behavior history size must be at least 1")
	}
	if c.MinActivities < 1 {
		return fmt.Errorf("minimum activities must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns the lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// AnalysisInterval returns the minimum time between behavior analyses
func (c *Config) AnalysisInterval() time.Duration {
	return time.Duration(c.AnalysisIntervalMs) * time.Millisecond
}

// TimeWindow returns the sliding window length
func (c *Config) TimeWindow() time.Duration {
	return time.Duration(c.TimeWindowSec) * time.Second
}
