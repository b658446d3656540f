package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config defines the telemetry backend configuration.
type Config struct {
	HTTP struct {
		Port                 string `yaml:"port" env:"HTTP_PORT"`
		IngestTimeoutSeconds int    `yaml:"ingest_timeout_seconds" env:"HTTP_INGEST_TIMEOUT_SECONDS"`
	} `yaml:"http"`
	Postgres struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`
	Influx struct {
		URL                 string `yaml:"url" env:"INFLUXDB_URL"`
		Token               string `yaml:"token" env:"INFLUXDB_TOKEN"`
		Org                 string `yaml:"org" env:"INFLUXDB_ORG"`
		Bucket              string `yaml:"bucket" env:"INFLUXDB_BUCKET"`
		WriteTimeoutSeconds int    `yaml:"write_timeout_seconds" env:"INFLUXDB_WRITE_TIMEOUT_SECONDS"`
	} `yaml:"influx"`
	MQTT struct {
		Broker      string `yaml:"broker" env:"MQTT_BROKER"`
		ClientID    string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
		Username    string `yaml:"username" env:"MQTT_USERNAME"`
		Password    string `yaml:"password" env:"MQTT_PASSWORD"`
		Topic       string `yaml:"topic" env:"MQTT_TOPIC"`
		StatusTopic string `yaml:"status_topic" env:"MQTT_STATUS_TOPIC"`
		QoS         int    `yaml:"qos" env:"MQTT_QOS"`
	} `yaml:"mqtt"`
	Cache struct {
		MachineTTLSeconds  int `yaml:"machine_ttl_seconds" env:"CACHE_MACHINE_TTL_SECONDS"`
		ResponseTTLSeconds int `yaml:"response_ttl_seconds" env:"CACHE_RESPONSE_TTL_SECONDS"`
	} `yaml:"cache"`
	Evaluator struct {
		RefreshSeconds int `yaml:"refresh_seconds" env:"EVALUATOR_REFRESH_SECONDS"`
		SweepSeconds   int `yaml:"sweep_seconds" env:"EVALUATOR_SWEEP_SECONDS"`
	} `yaml:"evaluator"`
}

// Load hydrates configuration from the optional YAML file and environment.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.HTTP.IngestTimeoutSeconds = 30
	cfg.Redis.Addr = "localhost:6379"
	cfg.Influx.URL = "http://localhost:8086"
	cfg.Influx.Org = "gonsters"
	cfg.Influx.Bucket = "sensor_data"
	cfg.Influx.WriteTimeoutSeconds = 10
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "gonsters-backend-001"
	cfg.MQTT.Topic = "factory/+/machine/+/telemetry"
	cfg.MQTT.StatusTopic = "factory/backend/status"
	cfg.MQTT.QoS = 1
	cfg.Cache.MachineTTLSeconds = 3600
	cfg.Cache.ResponseTTLSeconds = 60
	cfg.Evaluator.RefreshSeconds = 60
	cfg.Evaluator.SweepSeconds = 60

	if err := loadInto(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return nil, errors.New("config: postgres dsn required")
	}
	if strings.TrimSpace(cfg.Influx.Token) == "" {
		return nil, errors.New("config: influxdb token required")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return nil, fmt.Errorf("config: invalid mqtt qos %d", cfg.MQTT.QoS)
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

func (c *Config) IngestTimeout() time.Duration {
	return time.Duration(c.HTTP.IngestTimeoutSeconds) * time.Second
}

func (c *Config) MachineCacheTTL() time.Duration {
	return time.Duration(c.Cache.MachineTTLSeconds) * time.Second
}

func (c *Config) ResponseCacheTTL() time.Duration {
	return time.Duration(c.Cache.ResponseTTLSeconds) * time.Second
}

func (c *Config) InfluxWriteTimeout() time.Duration {
	return time.Duration(c.Influx.WriteTimeoutSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Evaluator.RefreshSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Evaluator.SweepSeconds) * time.Second
}
