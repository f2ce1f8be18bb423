package vehicle

import (
	"fmt"
	"sync"
	"time"

	"evtelemetry/internal/analysis"
	"evtelemetry/internal/signal"
	"evtelemetry/internal/telemetry"

	"github.com/google/uuid"
)

// Manager handles vehicle registration, state tracking, and
// threshold-based anomaly detection over telemetry snapshots.
type Manager struct {
	vehicles map[string]*Vehicle
	profiles map[string]*Profile
	mu       sync.RWMutex
}

// NewManager creates a new vehicle manager instance.
func NewManager() *Manager {
	return &Manager{
		vehicles: make(map[string]*Vehicle),
		profiles: make(map[string]*Profile),
	}
}

// RegisterVehicle adds a new vehicle to the manager.
func (m *Manager) RegisterVehicle(vin, make, model string, year int) (*Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.vehicles[vin]; exists {
		return nil, fmt.Errorf("vehicle with VIN %s already registered", vin)
	}

	v := &Vehicle{
		VIN:         vin,
		Make:        make,
		Model:       model,
		Year:        year,
		LastUpdated: time.Now(),
	}

	m.vehicles[vin] = v
	return v, nil
}

// GetVehicle retrieves a vehicle by VIN.
func (m *Manager) GetVehicle(vin string) (*Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return nil, fmt.Errorf("vehicle with VIN %s not found", vin)
	}
	return v, nil
}

// UpdateVehicleState applies a post-tick telemetry snapshot to the
// registered vehicle's tracked State.
func (m *Manager) UpdateVehicleState(vin string, snap telemetry.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return fmt.Errorf("vehicle with VIN %s not found", vin)
	}

	v.State = stateFromSnapshot(snap)
	v.LastUpdated = time.Now()
	return nil
}

func stateFromSnapshot(snap telemetry.Snapshot) State {
	var s State
	if snap.Valid(signal.FieldSOC) {
		s.SOC = float64(snap.Value(signal.FieldSOC))
	}
	if snap.Valid(signal.FieldPower) {
		s.Power = float64(snap.Value(signal.FieldPower))
	}
	if snap.Valid(signal.FieldSpeed) {
		s.Speed = float64(snap.Value(signal.FieldSpeed))
	}
	if snap.Valid(signal.FieldBattTemp) {
		s.BattTemp = float64(snap.Value(signal.FieldBattTemp))
	}
	if snap.Valid(signal.FieldIsCharging) {
		s.IsCharging = snap.Value(signal.FieldIsCharging) != 0
	}
	if snap.Valid(signal.FieldIsDCFC) {
		s.IsDCFC = snap.Value(signal.FieldIsDCFC) != 0
	}
	if snap.Valid(signal.FieldIsParked) {
		s.IsParked = snap.Value(signal.FieldIsParked) != 0
	}
	if snap.Valid(signal.FieldOdometer) {
		s.Odometer = float64(snap.Value(signal.FieldOdometer))
	}
	return s
}

// RegisterProfile adds or updates a vehicle profile.
func (m *Manager) RegisterProfile(make, model string, profile Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s-%s", make, model)
	m.profiles[key] = &profile
}

// GetProfile retrieves a vehicle profile by make and model.
func (m *Manager) GetProfile(make, model string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := fmt.Sprintf("%s-%s", make, model)
	profile, exists := m.profiles[key]
	if !exists {
		return nil, fmt.Errorf("profile for %s %s not found", make, model)
	}
	return profile, nil
}

// DetectAnomalies checks a vehicle's last known state against its
// profile's thresholds and returns any alerts raised. It only reads
// state the scheduler has already written; it never mutates a
// FieldStore.
func (m *Manager) DetectAnomalies(vin string) ([]Alert, error) {
	v, err := m.GetVehicle(vin)
	if err != nil {
		return nil, err
	}

	profile, err := m.GetProfile(v.Make, v.Model)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	now := time.Now()

	if profile.MaxBattTempC > 0 && v.State.BattTemp > profile.MaxBattTempC {
		alerts = append(alerts, Alert{
			ID:        uuid.NewString(),
			Type:      "BattTemp",
			Severity:  "critical",
			Message:   fmt.Sprintf("battery temperature exceeds threshold (%.1f > %.1f)", v.State.BattTemp, profile.MaxBattTempC),
			Timestamp: now,
			Value:     v.State.BattTemp,
			Threshold: profile.MaxBattTempC,
			Fields:    []string{"batt_temp"},
		})
	}

	if profile.MinSOCPercent > 0 && v.State.SOC < profile.MinSOCPercent && !v.State.IsCharging {
		alerts = append(alerts, Alert{
			ID:        uuid.NewString(),
			Type:      "LowSOC",
			Severity:  "warning",
			Message:   fmt.Sprintf("state of charge below threshold (%.1f < %.1f)", v.State.SOC, profile.MinSOCPercent),
			Timestamp: now,
			Value:     v.State.SOC,
			Threshold: profile.MinSOCPercent,
			Fields:    []string{"soc"},
		})
	}

	if profile.MaxPowerKW > 0 && v.State.Power > profile.MaxPowerKW {
		alerts = append(alerts, Alert{
			ID:        uuid.NewString(),
			Type:      "Power",
			Severity:  "warning",
			Message:   fmt.Sprintf("draw power exceeds threshold (%.1f > %.1f)", v.State.Power, profile.MaxPowerKW),
			Timestamp: now,
			Value:     v.State.Power,
			Threshold: profile.MaxPowerKW,
			Fields:    []string{"power"},
		})
	}

	for name, threshold := range profile.CustomThresholds {
		if value, ok := getValueForField(v.State, name); ok {
			if value > threshold {
				alerts = append(alerts, Alert{
					ID:        uuid.NewString(),
					Type:      "Custom",
					Severity:  "warning",
					Message:   fmt.Sprintf("custom threshold exceeded for %s: %.1f > %.1f", name, value, threshold),
					Timestamp: now,
					Value:     value,
					Threshold: threshold,
					Fields:    []string{name},
				})
			}
		}
	}

	return alerts, nil
}

func getValueForField(state State, name string) (float64, bool) {
	switch name {
	case "soc":
		return state.SOC, true
	case "power":
		return state.Power, true
	case "speed":
		return state.Speed, true
	case "batt_temp":
		return state.BattTemp, true
	case "odometer":
		return state.Odometer, true
	default:
		return 0, false
	}
}

// AnalyzePerformance runs a trip analyzer over a capture session and
// produces a PerformanceReport for the vehicle.
func (m *Manager) AnalyzePerformance(analyzer *analysis.Analyzer) (*PerformanceReport, error) {
	results, err := analyzer.Analyze()
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	report := &PerformanceReport{
		Timestamp: time.Now(),
		Duration:  results.SessionInfo.Duration,
		Stats: PerformanceStats{
			AverageSpeed:    results.Performance.Speed.Mean,
			MaxSpeed:        results.Performance.Speed.Max,
			AverageSOC:      results.Performance.SOC.Mean,
			MinSOC:          results.Performance.SOC.Min,
			IdleTimePercent: results.DrivingBehavior.IdleTime,
			RapidAccels:     results.DrivingBehavior.RapidAccel,
			RapidDecels:     results.DrivingBehavior.RapidDecel,
		},
		Alerts: make([]Alert, 0),
	}

	if results.Performance.Speed.Mean > 0 {
		report.Stats.EfficiencyScore = calculateEfficiencyScore(results)
	}

	return report, nil
}

// calculateEfficiencyScore generates a 0-100 score based on idle time
// and harsh driving events, the same heuristic the original OBD-II
// tooling used, unchanged by the field-set remapping.
func calculateEfficiencyScore(results *analysis.Analysis) float64 {
	score := 100.0

	if results.DrivingBehavior.IdleTime > 20 {
		score -= (results.DrivingBehavior.IdleTime - 20) * 0.5
	}

	score -= float64(results.DrivingBehavior.RapidAccel) * 2
	score -= float64(results.DrivingBehavior.RapidDecel) * 2

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return score
}
