package config

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StepMeters != 50 || cfg.TickInterval != time.Second || cfg.ArrivalThresholdMeters != 10 {
		t.Fatalf("unexpected simulator defaults: %+v", cfg)
	}
	if cfg.KafkaTopic != "driver-positions" || cfg.RedisGeoKey != "drivers_geo" {
		t.Fatalf("unexpected topic/key defaults: %+v", cfg)
	}
	if !cfg.RiderPermission {
		t.Fatalf("permission should default to granted")
	}
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("SIM_TICK_INTERVAL", "250ms")
	t.Setenv("RIDER_PERMISSION", "false")
	t.Setenv("RIDER_LAT", "8.5")
	t.Setenv("SURGE_TIMEZONE", "Africa/Lagos")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("brokers not trimmed: %q", cfg.KafkaBrokers)
	}
	if cfg.TickInterval != 250*time.Millisecond || cfg.RiderPermission || cfg.RiderLat != 8.5 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level not lowered: %q", cfg.LogLevel)
	}
	if cfg.SurgeLocation().String() != "Africa/Lagos" {
		t.Fatalf("unexpected surge location %v", cfg.SurgeLocation())
	}
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	t.Setenv("SIM_STEP_METERS", "0")
	t.Setenv("SIM_TICK_INTERVAL", "soon")
	t.Setenv("RIDER_LON", "200")

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"SIM_STEP_METERS", "invalid SIM_TICK_INTERVAL", "RIDER_LON"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "k1:9092")
	t.Setenv("KAFKA_GROUP", "g1")
	cfg, err := LoadConsumerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "k1:9092" || cfg.KafkaGroup != "g1" {
		t.Fatalf("unexpected consumer config %+v", cfg)
	}
}
