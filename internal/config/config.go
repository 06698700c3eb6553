package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the rider API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without any backing services.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	GoogleMapsAPIKey string

	RiderLat        float64
	RiderLon        float64
	RiderPermission bool

	StepMeters             float64
	TickInterval           time.Duration
	ArrivalThresholdMeters float64
	AverageSpeedKmh        float64
	SurgeTimezone          string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:               ":8080",
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           10 * time.Second,
		IdleTimeout:            120 * time.Second,
		ShutdownTimeout:        15 * time.Second,
		RedisGeoKey:            "drivers_geo",
		KafkaTopic:             "driver-positions",
		RiderLat:               6.524379,
		RiderLon:               3.379206,
		RiderPermission:        true,
		StepMeters:             50,
		TickInterval:           time.Second,
		ArrivalThresholdMeters: 10,
		AverageSpeedKmh:        50,
		SurgeTimezone:          "UTC",
		LogLevel:               "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.GoogleMapsAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY"))

	setFloatFromEnv(&cfg.RiderLat, "RIDER_LAT", &errs)
	setFloatFromEnv(&cfg.RiderLon, "RIDER_LON", &errs)
	setBoolFromEnv(&cfg.RiderPermission, "RIDER_PERMISSION", &errs)

	setFloatFromEnv(&cfg.StepMeters, "SIM_STEP_METERS", &errs)
	setDurationFromEnv(&cfg.TickInterval, "SIM_TICK_INTERVAL", &errs)
	setFloatFromEnv(&cfg.ArrivalThresholdMeters, "SIM_ARRIVAL_METERS", &errs)
	setFloatFromEnv(&cfg.AverageSpeedKmh, "AVERAGE_SPEED_KMH", &errs)
	setStringFromEnv(&cfg.SurgeTimezone, "SURGE_TIMEZONE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.StepMeters <= 0 {
		errs = append(errs, fmt.Errorf("SIM_STEP_METERS must be > 0"))
	}
	if cfg.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("SIM_TICK_INTERVAL must be > 0"))
	}
	if cfg.ArrivalThresholdMeters < 0 {
		errs = append(errs, fmt.Errorf("SIM_ARRIVAL_METERS must be >= 0"))
	}
	if cfg.AverageSpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("AVERAGE_SPEED_KMH must be > 0"))
	}
	if cfg.RiderLat < -90 || cfg.RiderLat > 90 {
		errs = append(errs, fmt.Errorf("RIDER_LAT must be within [-90,90]"))
	}
	if cfg.RiderLon < -180 || cfg.RiderLon > 180 {
		errs = append(errs, fmt.Errorf("RIDER_LON must be within [-180,180]"))
	}
	if _, err := time.LoadLocation(cfg.SurgeTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid SURGE_TIMEZONE: %w", err))
	}

	return cfg, errors.Join(errs...)
}

// SurgeLocation resolves SurgeTimezone, falling back to UTC.
func (c ServerConfig) SurgeLocation() *time.Location {
	loc, err := time.LoadLocation(c.SurgeTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ConsumerConfig drives cmd/consumer, which mirrors published driver
// positions into Redis.
type ConsumerConfig struct {
	MetricsAddr   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
	LogLevel      string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:  ":2112",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "driver-positions",
		KafkaGroup:   "rider-position-consumer",
		RedisAddr:    "localhost:6379",
		RedisGeoKey:  "drivers_geo",
		LogLevel:     "info",
	}
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKER")
	}
	if brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return cfg, fmt.Errorf("KAFKA_BROKERS must list at least one broker")
	}
	return cfg, nil
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
