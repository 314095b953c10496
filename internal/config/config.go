package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	SPC           SPCConfig           `yaml:"spc"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Watchdog      WatchdogConfig      `yaml:"watchdog"`
	Log           string              `yaml:"log"`
}

type SPCConfig struct {
	Host                string `yaml:"host"`
	User                string `yaml:"user"`
	Pin                 string `yaml:"pin"`
	Language            int    `yaml:"language"`
	SessionCacheDir     string `yaml:"session_cache_dir"`
	MinLoginIntervalSec int    `yaml:"min_login_interval_sec"`
	HTTPTimeoutSec      int    `yaml:"http_timeout_sec"`
}

type MQTTConfig struct {
	ClientID  string `yaml:"client_id"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Keepalive int    `yaml:"keepalive"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	QOS       int    `yaml:"qos"`
	Retain    bool   `yaml:"retain"`
	Prefix    string `yaml:"prefix"`
	Clean     bool   `yaml:"clean"`
}

type HomeAssistantConfig struct {
	Discovery bool   `yaml:"discovery"`
	Prefix    string `yaml:"prefix"`
}

type WatchdogConfig struct {
	RefreshIntervalSec int    `yaml:"refresh_interval"`
	LogChanges         bool   `yaml:"log_changes"`
	MetricsListen      string `yaml:"metrics_listen"`
	LockFile           string `yaml:"lock_file"`
}

func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Set default values
	if config.SPC.Host == "" {
		return nil, fmt.Errorf("spc.host is required")
	}
	if config.SPC.Language == 0 {
		config.SPC.Language = 253
	}
	if config.SPC.SessionCacheDir == "" {
		config.SPC.SessionCacheDir = "/var/lib/spc2mqtt"
	}
	if config.SPC.MinLoginIntervalSec == 0 {
		config.SPC.MinLoginIntervalSec = 60
	}
	if config.SPC.HTTPTimeoutSec == 0 {
		config.SPC.HTTPTimeoutSec = 8
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "spc2mqtt"
	}
	if config.MQTT.Host == "" {
		config.MQTT.Host = "localhost"
	}
	if config.MQTT.Port == 0 {
		config.MQTT.Port = 1883
	}
	if config.MQTT.Keepalive == 0 {
		config.MQTT.Keepalive = 30
	}
	if config.MQTT.Prefix == "" {
		config.MQTT.Prefix = "spc"
	}
	if config.HomeAssistant.Prefix == "" {
		config.HomeAssistant.Prefix = "homeassistant"
	}
	if config.Watchdog.RefreshIntervalSec == 0 {
		config.Watchdog.RefreshIntervalSec = 2
	}
	if config.Watchdog.LockFile == "" {
		config.Watchdog.LockFile = "/var/run/spc2mqtt.lock"
	}
	if config.Log == "" {
		config.Log = "info"
	}

	return &config, nil
}
