package analysis

import (
	"fmt"
	"math"
	"time"

	"evtelemetry/internal/capture"
)

// FrameTypeTelemetry marks a capture.Frame whose Decoded map holds a
// telemetry field name to value snapshot, taken once per scheduler
// tick. FrameTypeCAN marks a raw, undecoded CAN frame captured for
// bus-load and traffic analysis.
const (
	FrameTypeTelemetry = "TELEMETRY"
	FrameTypeCAN       = "CAN"
)

// Analyzer processes capture sessions to generate analysis results
type Analyzer struct {
	session  *capture.Session
	analysis *Analysis
	options  AnalyzerOptions
}

// AnalyzerOptions configures the analysis process
type AnalyzerOptions struct {
	RapidAccelThreshold float64       // km/h/s for rapid acceleration detection
	RapidDecelThreshold float64       // km/h/s for rapid deceleration detection
	IdleSpeedThreshold  float64       // km/h below which is considered idle
	CruiseThreshold     float64       // km/h/s variance for cruise detection
	MinPhaseTime        time.Duration // minimum duration for a driving phase
}

// DefaultOptions returns sensible default analyzer options
func DefaultOptions() AnalyzerOptions {
	return AnalyzerOptions{
		RapidAccelThreshold: 10.0, // 10 km/h per second
		RapidDecelThreshold: -8.0, // -8 km/h per second
		IdleSpeedThreshold:  3.0,  // 3 km/h
		CruiseThreshold:     2.0,  // 2 km/h/s variance
		MinPhaseTime:        3 * time.Second,
	}
}

// NewAnalyzer creates a new analyzer instance
func NewAnalyzer(session *capture.Session, options AnalyzerOptions) *Analyzer {
	return &Analyzer{
		session:  session,
		analysis: &Analysis{},
		options:  options,
	}
}

// Analyze processes the session and returns analysis results
func (a *Analyzer) Analyze() (*Analysis, error) {
	if err := a.analyzeSessionInfo(); err != nil {
		return nil, fmt.Errorf("session info analysis failed: %w", err)
	}

	if err := a.analyzePerformance(); err != nil {
		return nil, fmt.Errorf("performance analysis failed: %w", err)
	}

	if err := a.analyzeDrivingBehavior(); err != nil {
		return nil, fmt.Errorf("driving behavior analysis failed: %w", err)
	}

	if err := a.analyzeCANActivity(); err != nil {
		return nil, fmt.Errorf("CAN activity analysis failed: %w", err)
	}

	if err := a.analyzeCharging(); err != nil {
		return nil, fmt.Errorf("charging analysis failed: %w", err)
	}

	return a.analysis, nil
}

func (a *Analyzer) analyzeSessionInfo() error {
	a.analysis.SessionInfo.StartTime = a.session.StartTime
	a.analysis.SessionInfo.EndTime = a.session.EndTime
	a.analysis.SessionInfo.Duration = a.session.EndTime.Sub(a.session.StartTime)
	a.analysis.SessionInfo.VehicleInfo = fmt.Sprintf("%v", a.session.VehicleInfo)
	a.analysis.SessionInfo.TotalFrames = len(a.session.Frames)
	return nil
}

func telemetryValues(frame capture.Frame) (map[string]float64, bool) {
	if frame.Type != FrameTypeTelemetry || frame.Decoded == nil {
		return nil, false
	}
	return frame.Decoded, true
}

func (a *Analyzer) analyzePerformance() error {
	var socValues, powerValues, speedValues, battTempValues []float64

	for _, frame := range a.session.Frames {
		decoded, ok := telemetryValues(frame)
		if !ok {
			continue
		}
		if v, ok := decoded["soc"]; ok {
			socValues = append(socValues, v)
		}
		if v, ok := decoded["power"]; ok {
			powerValues = append(powerValues, v)
		}
		if v, ok := decoded["speed"]; ok {
			speedValues = append(speedValues, v)
		}
		if v, ok := decoded["batt_temp"]; ok {
			battTempValues = append(battTempValues, v)
		}
	}

	a.analysis.Performance.SOC = CalculateStats(socValues)
	a.analysis.Performance.Power = CalculateStats(powerValues)
	a.analysis.Performance.Speed = CalculateStats(speedValues)
	a.analysis.Performance.BattTemp = CalculateStats(battTempValues)

	duration := a.analysis.SessionInfo.Duration.Seconds()
	if duration > 0 {
		a.analysis.Performance.DataRate = float64(len(a.session.Frames)) / duration
	}

	return nil
}

func (a *Analyzer) analyzeDrivingBehavior() error {
	var currentPhase *DrivingPhase
	var lastSpeed float64
	var lastTime time.Time

	for _, frame := range a.session.Frames {
		decoded, ok := telemetryValues(frame)
		if !ok {
			continue
		}

		speed, ok := decoded["speed"]
		if !ok {
			continue
		}

		if !lastTime.IsZero() {
			timeDiff := frame.Timestamp.Sub(lastTime).Seconds()
			if timeDiff > 0 {
				acceleration := (speed - lastSpeed) / timeDiff

				phaseType := a.detectPhaseType(speed, acceleration)

				if currentPhase == nil || currentPhase.Type != phaseType {
					if currentPhase != nil {
						currentPhase.EndTime = frame.Timestamp
						currentPhase.Duration = currentPhase.EndTime.Sub(currentPhase.StartTime)
						if currentPhase.Duration >= a.options.MinPhaseTime {
							a.analysis.DrivingBehavior.Phases = append(a.analysis.DrivingBehavior.Phases, *currentPhase)
						}
					}

					currentPhase = &DrivingPhase{
						Type:      phaseType,
						StartTime: frame.Timestamp,
						Stats:     make(map[string]float64),
					}
				}

				if acceleration >= a.options.RapidAccelThreshold {
					a.analysis.DrivingBehavior.RapidAccel++
				} else if acceleration <= a.options.RapidDecelThreshold {
					a.analysis.DrivingBehavior.RapidDecel++
				}
			}
		}

		lastSpeed = speed
		lastTime = frame.Timestamp
	}

	var idleTime time.Duration
	for _, phase := range a.analysis.DrivingBehavior.Phases {
		if phase.Type == "idle" {
			idleTime += phase.Duration
			a.analysis.DrivingBehavior.StopCount++
		}
	}

	totalDuration := a.analysis.SessionInfo.Duration
	if totalDuration > 0 {
		a.analysis.DrivingBehavior.IdleTime = float64(idleTime) / float64(totalDuration) * 100
	}

	return nil
}

func (a *Analyzer) detectPhaseType(speed, acceleration float64) string {
	if speed < a.options.IdleSpeedThreshold {
		return "idle"
	}
	if acceleration >= a.options.RapidAccelThreshold {
		return "acceleration"
	}
	if acceleration <= a.options.RapidDecelThreshold {
		return "deceleration"
	}
	if math.Abs(acceleration) < a.options.CruiseThreshold {
		return "cruise"
	}
	return "unknown"
}

func (a *Analyzer) analyzeCANActivity() error {
	idCounts := make(map[uint32]int)

	for _, frame := range a.session.Frames {
		if frame.Type == FrameTypeCAN {
			idCounts[frame.ID]++
		}
	}

	a.analysis.CANActivity.UniqueIDs = len(idCounts)
	a.analysis.CANActivity.IDCounts = idCounts

	totalBits := 0
	for _, frame := range a.session.Frames {
		if frame.Type == FrameTypeCAN {
			// Standard CAN frame overhead plus payload, ignoring
			// extended-ID framing differences.
			totalBits += 108 + len(frame.Data)*8
		}
	}

	duration := a.analysis.SessionInfo.Duration.Seconds()
	if duration > 0 {
		bitsPerSecond := float64(totalBits) / duration
		a.analysis.CANActivity.BusLoad = bitsPerSecond / 1_000_000 * 100 // percentage of 1Mbps
	}

	return nil
}

// analyzeCharging walks the telemetry frames counting is_charging /
// is_dcfc transitions and the state-of-charge gained while charging.
func (a *Analyzer) analyzeCharging() error {
	var inCharge, inDCFC bool
	var chargeStart, dcfcStart time.Time
	var firstChargingSOC, lastChargingSOC float64
	var haveSOCRange bool

	for _, frame := range a.session.Frames {
		decoded, ok := telemetryValues(frame)
		if !ok {
			continue
		}

		charging := decoded["is_charging"] != 0
		dcfc := decoded["is_dcfc"] != 0

		if charging && !inCharge {
			a.analysis.Charging.ChargingEvents++
			chargeStart = frame.Timestamp
		} else if !charging && inCharge {
			a.analysis.Charging.ChargingTime += frame.Timestamp.Sub(chargeStart)
		}

		if dcfc && !inDCFC {
			a.analysis.Charging.DCFCEvents++
			dcfcStart = frame.Timestamp
		} else if !dcfc && inDCFC {
			a.analysis.Charging.DCFCTime += frame.Timestamp.Sub(dcfcStart)
		}

		if charging {
			if soc, ok := decoded["soc"]; ok {
				if !haveSOCRange {
					firstChargingSOC = soc
					haveSOCRange = true
				}
				lastChargingSOC = soc
			}
		}

		inCharge = charging
		inDCFC = dcfc
	}

	if inCharge {
		a.analysis.Charging.ChargingTime += a.session.EndTime.Sub(chargeStart)
	}
	if inDCFC {
		a.analysis.Charging.DCFCTime += a.session.EndTime.Sub(dcfcStart)
	}
	if haveSOCRange && lastChargingSOC > firstChargingSOC {
		a.analysis.Charging.SOCGained = lastChargingSOC - firstChargingSOC
	}

	return nil
}
