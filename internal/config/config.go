// Package config loads the daemon's ambient configuration: which CAN
// transport to use, where to persist history, and which local query
// surface to expose. The telemetry-signal configuration (the INI
// grammar in ini.go) is a separate, narrower loader — mechanical
// key/value extraction kept deliberately out of the core's scope.
package config

import (
	"fmt"
	"os"

	"evtelemetry/internal/transport"
	"gopkg.in/yaml.v3"
)

// Daemon is the YAML-backed ambient configuration for cmd/agent.
type Daemon struct {
	VIN string `yaml:"vin"`

	Transport struct {
		Type     string `yaml:"type"`
		Address  string `yaml:"address"`
		BaudRate int    `yaml:"baudRate"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"transport"`

	Signals struct {
		ConfigPath string `yaml:"configPath"`
		ObdPath    string `yaml:"obdPath"`
	} `yaml:"signals"`

	Storage struct {
		LogDir string `yaml:"logDir"`
	} `yaml:"storage"`

	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Datastore struct {
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		InfluxDB struct {
			URL    string `yaml:"url"`
			Org    string `yaml:"org"`
			Bucket string `yaml:"bucket"`
			Token  string `yaml:"token"`
		} `yaml:"influxdb"`
	} `yaml:"datastore"`

	Vehicle struct {
		DefaultThresholds struct {
			MaxBattTempC  float64 `yaml:"max_batt_temp_c"`
			MinSOCPercent float64 `yaml:"min_soc_percent"`
			MaxPowerKW    float64 `yaml:"max_power_kw"`
		} `yaml:"default_thresholds"`
	} `yaml:"vehicle"`
}

// LoadDaemon reads and parses a daemon configuration file.
func LoadDaemon(filename string) (*Daemon, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", filename, err)
	}
	var d Daemon
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", filename, err)
	}
	return &d, nil
}

// TransportConfig builds the canbus port-selection config from the
// daemon config.
func (d *Daemon) TransportConfig() *transport.Config {
	return &transport.Config{
		Type:     d.Transport.Type,
		Address:  d.Transport.Address,
		BaudRate: d.Transport.BaudRate,
		Debug:    d.Transport.Debug,
	}
}
