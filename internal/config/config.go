// Package config loads service configuration from VIOLIN_COACH_*
// environment variables. Unset or unparseable values fall back to the
// defaults below.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the full service configuration, loaded once at startup.
type Config struct {
	Service       ServiceConfig
	Pipeline      PipelineConfig
	Storage       StorageConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service instance.
type ServiceConfig struct {
	Name        string
	Principal   string
	HTTPPort    string
	Environment string
}

// PipelineConfig tunes the practice-analysis pipeline. Defaults match the
// component defaults; zero or negative values fall back again inside the
// components.
type PipelineConfig struct {
	// Bow direction classifier.
	WindowSize     int
	DeltaThreshold float64
	StabilityCount int

	// Posture scorer.
	PostureExcellent   float64
	PostureGood        float64
	PostureFair        float64
	ShoulderTolerance  float64
	ElbowToleranceDeg  float64
	BowArmMinDeg       float64
	BowArmMaxDeg       float64
	MinJointConfidence float64
}

// StorageConfig controls PostgreSQL persistence. Disabled runs the service
// on the in-memory store.
type StorageConfig struct {
	Enabled bool
	DSN     string
}

// KafkaConfig controls practice event publishing.
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	TopicEvents    string
	TopicSummaries string
	Principal      string
}

// ObservabilityConfig controls logging and the metrics endpoint.
type ObservabilityConfig struct {
	MetricsPort string
	LogLevel    string
	LogFormat   string
}

// Load reads the configuration from the environment.
func Load() *Config {
	principal := envOrDefault("VIOLIN_COACH_PRINCIPAL", "svc-violin-coach")

	return &Config{
		Service: ServiceConfig{
			Name:        envOrDefault("VIOLIN_COACH_SERVICE_NAME", "violin-coach-service"),
			Principal:   principal,
			HTTPPort:    envOrDefault("VIOLIN_COACH_HTTP_PORT", "8080"),
			Environment: envOrDefault("VIOLIN_COACH_ENVIRONMENT", "development"),
		},
		Pipeline: PipelineConfig{
			WindowSize:     envOrDefaultInt("VIOLIN_COACH_WINDOW_SIZE", 5),
			DeltaThreshold: envOrDefaultFloat("VIOLIN_COACH_DELTA_THRESHOLD", 1.5),
			StabilityCount: envOrDefaultInt("VIOLIN_COACH_STABILITY_COUNT", 3),

			PostureExcellent:   envOrDefaultFloat("VIOLIN_COACH_POSTURE_EXCELLENT", 0.05),
			PostureGood:        envOrDefaultFloat("VIOLIN_COACH_POSTURE_GOOD", 0.10),
			PostureFair:        envOrDefaultFloat("VIOLIN_COACH_POSTURE_FAIR", 0.20),
			ShoulderTolerance:  envOrDefaultFloat("VIOLIN_COACH_SHOULDER_TOLERANCE", 0.1),
			ElbowToleranceDeg:  envOrDefaultFloat("VIOLIN_COACH_ELBOW_TOLERANCE_DEG", 15),
			BowArmMinDeg:       envOrDefaultFloat("VIOLIN_COACH_BOW_ARM_MIN_DEG", 45),
			BowArmMaxDeg:       envOrDefaultFloat("VIOLIN_COACH_BOW_ARM_MAX_DEG", 150),
			MinJointConfidence: envOrDefaultFloat("VIOLIN_COACH_MIN_JOINT_CONFIDENCE", 0.3),
		},
		Storage: StorageConfig{
			Enabled: envOrDefaultBool("VIOLIN_COACH_STORAGE_ENABLED", false),
			DSN: envOrDefault("VIOLIN_COACH_STORAGE_DSN",
				"host=localhost port=5432 user=postgres password=postgres dbname=violin_coach sslmode=disable"),
		},
		Kafka: KafkaConfig{
			Enabled:        envOrDefaultBool("VIOLIN_COACH_KAFKA_ENABLED", false),
			Brokers:        envOrDefaultList("VIOLIN_COACH_KAFKA_BROKERS", nil),
			TopicEvents:    envOrDefault("VIOLIN_COACH_KAFKA_TOPIC_EVENTS", "practice.events.v1"),
			TopicSummaries: envOrDefault("VIOLIN_COACH_KAFKA_TOPIC_SUMMARIES", "practice.sessions.v1"),
			Principal:      envOrDefault("VIOLIN_COACH_KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			MetricsPort: envOrDefault("VIOLIN_COACH_METRICS_PORT", "9090"),
			LogLevel:    envOrDefault("VIOLIN_COACH_LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("VIOLIN_COACH_LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

// envOrDefaultList splits a comma-separated value, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
