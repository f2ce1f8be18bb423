// Package vehicle is a registry of vehicles and their alert
// thresholds, observing telemetry snapshots produced by the core
// scheduler. It never mutates a FieldStore — it reads post-tick
// snapshots handed to it by the host loop.
package vehicle

import "time"

// Vehicle represents a registered vehicle and its last known state.
type Vehicle struct {
	VIN         string
	Make        string
	Model       string
	Year        int
	State       State
	LastUpdated time.Time
}

// State is the subset of a telemetry snapshot the registry tracks for
// display and anomaly detection.
type State struct {
	SOC        float64
	Power      float64
	Speed      float64
	BattTemp   float64
	IsCharging bool
	IsDCFC     bool
	IsParked   bool
	Odometer   float64
}

// Profile represents vehicle-specific alert thresholds.
type Profile struct {
	MaxBattTempC     float64
	MinSOCPercent    float64
	MaxPowerKW       float64
	CustomThresholds map[string]float64
}

// Alert represents a vehicle alert condition.
type Alert struct {
	ID        string
	Type      string
	Severity  string // "info", "warning", "critical"
	Message   string
	Timestamp time.Time
	Value     float64
	Threshold float64
	Fields    []string // telemetry field names that triggered the alert
}
