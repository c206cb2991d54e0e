package config

import (
	"os"
	"testing"
)

var configEnvVars = []string{
	"VIOLIN_COACH_SERVICE_NAME", "VIOLIN_COACH_PRINCIPAL", "VIOLIN_COACH_HTTP_PORT",
	"VIOLIN_COACH_ENVIRONMENT",
	"VIOLIN_COACH_WINDOW_SIZE", "VIOLIN_COACH_DELTA_THRESHOLD", "VIOLIN_COACH_STABILITY_COUNT",
	"VIOLIN_COACH_POSTURE_EXCELLENT", "VIOLIN_COACH_POSTURE_GOOD", "VIOLIN_COACH_POSTURE_FAIR",
	"VIOLIN_COACH_SHOULDER_TOLERANCE", "VIOLIN_COACH_ELBOW_TOLERANCE_DEG",
	"VIOLIN_COACH_BOW_ARM_MIN_DEG", "VIOLIN_COACH_BOW_ARM_MAX_DEG",
	"VIOLIN_COACH_MIN_JOINT_CONFIDENCE",
	"VIOLIN_COACH_STORAGE_ENABLED", "VIOLIN_COACH_STORAGE_DSN",
	"VIOLIN_COACH_KAFKA_ENABLED", "VIOLIN_COACH_KAFKA_BROKERS",
	"VIOLIN_COACH_KAFKA_TOPIC_EVENTS", "VIOLIN_COACH_KAFKA_TOPIC_SUMMARIES",
	"VIOLIN_COACH_KAFKA_PRINCIPAL",
	"VIOLIN_COACH_METRICS_PORT", "VIOLIN_COACH_LOG_LEVEL", "VIOLIN_COACH_LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Service.Name != "violin-coach-service" {
		t.Errorf("expected default service name 'violin-coach-service', got %s", cfg.Service.Name)
	}
	if cfg.Service.Principal != "svc-violin-coach" {
		t.Errorf("expected default principal 'svc-violin-coach', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default HTTP port '8080', got %s", cfg.Service.HTTPPort)
	}

	if cfg.Pipeline.WindowSize != 5 {
		t.Errorf("expected default window size 5, got %d", cfg.Pipeline.WindowSize)
	}
	if cfg.Pipeline.DeltaThreshold != 1.5 {
		t.Errorf("expected default delta threshold 1.5, got %f", cfg.Pipeline.DeltaThreshold)
	}
	if cfg.Pipeline.StabilityCount != 3 {
		t.Errorf("expected default stability count 3, got %d", cfg.Pipeline.StabilityCount)
	}
	if cfg.Pipeline.PostureExcellent != 0.05 {
		t.Errorf("expected default excellent threshold 0.05, got %f", cfg.Pipeline.PostureExcellent)
	}
	if cfg.Pipeline.BowArmMinDeg != 45 || cfg.Pipeline.BowArmMaxDeg != 150 {
		t.Errorf("expected default bow arm envelope [45,150], got [%f,%f]",
			cfg.Pipeline.BowArmMinDeg, cfg.Pipeline.BowArmMaxDeg)
	}
	if cfg.Pipeline.MinJointConfidence != 0.3 {
		t.Errorf("expected default joint confidence 0.3, got %f", cfg.Pipeline.MinJointConfidence)
	}

	if cfg.Storage.Enabled {
		t.Error("expected storage disabled by default")
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicEvents != "practice.events.v1" {
		t.Errorf("expected default events topic 'practice.events.v1', got %s", cfg.Kafka.TopicEvents)
	}
	if cfg.Kafka.TopicSummaries != "practice.sessions.v1" {
		t.Errorf("expected default summaries topic 'practice.sessions.v1', got %s", cfg.Kafka.TopicSummaries)
	}

	if cfg.Observability.MetricsPort != "9090" {
		t.Errorf("expected default metrics port '9090', got %s", cfg.Observability.MetricsPort)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	os.Setenv("VIOLIN_COACH_PRINCIPAL", "custom-principal")
	os.Setenv("VIOLIN_COACH_HTTP_PORT", "9999")
	os.Setenv("VIOLIN_COACH_WINDOW_SIZE", "7")
	os.Setenv("VIOLIN_COACH_DELTA_THRESHOLD", "2.5")
	os.Setenv("VIOLIN_COACH_STABILITY_COUNT", "4")
	os.Setenv("VIOLIN_COACH_STORAGE_ENABLED", "true")
	os.Setenv("VIOLIN_COACH_KAFKA_ENABLED", "true")
	os.Setenv("VIOLIN_COACH_KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	os.Setenv("VIOLIN_COACH_LOG_LEVEL", "debug")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9999" {
		t.Errorf("expected HTTP port '9999', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Pipeline.WindowSize != 7 {
		t.Errorf("expected window size 7, got %d", cfg.Pipeline.WindowSize)
	}
	if cfg.Pipeline.DeltaThreshold != 2.5 {
		t.Errorf("expected delta threshold 2.5, got %f", cfg.Pipeline.DeltaThreshold)
	}
	if cfg.Pipeline.StabilityCount != 4 {
		t.Errorf("expected stability count 4, got %d", cfg.Pipeline.StabilityCount)
	}
	if !cfg.Storage.Enabled {
		t.Error("expected storage enabled")
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker-1:9092" || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("VIOLIN_COACH_WINDOW_SIZE", "not-a-number")
	os.Setenv("VIOLIN_COACH_DELTA_THRESHOLD", "wide")
	os.Setenv("VIOLIN_COACH_STORAGE_ENABLED", "sometimes")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Pipeline.WindowSize != 5 {
		t.Errorf("expected default window size on invalid input, got %d", cfg.Pipeline.WindowSize)
	}
	if cfg.Pipeline.DeltaThreshold != 1.5 {
		t.Errorf("expected default delta threshold on invalid input, got %f", cfg.Pipeline.DeltaThreshold)
	}
	if cfg.Storage.Enabled {
		t.Error("expected storage disabled on invalid input")
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	os.Setenv("VIOLIN_COACH_PRINCIPAL", "my-service")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	key := "TEST_LIST_VAR"
	defer os.Unsetenv(key)

	os.Setenv(key, "a:1, b:2 ,,c:3")
	got := envOrDefaultList(key, nil)
	if len(got) != 3 || got[0] != "a:1" || got[1] != "b:2" || got[2] != "c:3" {
		t.Errorf("expected trimmed non-empty entries, got %v", got)
	}

	os.Setenv(key, " , ")
	if got := envOrDefaultList(key, []string{"fallback"}); len(got) != 1 || got[0] != "fallback" {
		t.Errorf("expected fallback for blank list, got %v", got)
	}

	os.Unsetenv(key)
	if got := envOrDefaultList(key, nil); got != nil {
		t.Errorf("expected nil default, got %v", got)
	}
}
