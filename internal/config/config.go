package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the monitor service.
// This mirrors config/config.yaml.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	Export   ExportConfig   `yaml:"export"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

type MQTTConfig struct {
	BrokerURL    string        `yaml:"broker_url"`
	ClientID     string        `yaml:"client_id"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Namespace    string        `yaml:"namespace"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ExportConfig struct {
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
}

type HTTPConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// Load reads the YAML config at path, applies defaults, and lets
// MQTT_USER/MQTT_PASS environment variables override broker credentials so
// they never have to live in the file.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Defaults
	if cfg.MQTT.BrokerURL == "" {
		cfg.MQTT.BrokerURL = "tcp://localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "rumen-monitor"
	}
	if cfg.MQTT.Namespace == "" {
		cfg.MQTT.Namespace = "rumen"
	}
	if cfg.MQTT.ReconnectMax <= 0 {
		cfg.MQTT.ReconnectMax = 30 * time.Second
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/monitor.sqlite"
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "export"
	}
	if cfg.Export.Interval <= 0 {
		cfg.Export.Interval = 5 * time.Minute
	}
	if cfg.HTTP.ListenAddress == "" {
		cfg.HTTP.ListenAddress = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if v := os.Getenv("MQTT_USER"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASS"); v != "" {
		cfg.MQTT.Password = v
	}

	return cfg, nil
}
