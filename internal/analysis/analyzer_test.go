package analysis

import (
	"math"
	"testing"
	"time"

	"evtelemetry/internal/capture"
)

func TestAnalyzer(t *testing.T) {
	now := time.Now()
	session := &capture.Session{
		StartTime:   now,
		EndTime:     now.Add(10 * time.Second),
		VehicleInfo: "1TESTVIN0000000001 Model 2023",
		Frames: []capture.Frame{
			// Idle phase
			{
				Type:      FrameTypeTelemetry,
				Timestamp: now,
				Decoded: map[string]float64{
					"soc":       80.0,
					"speed":     0.0,
					"batt_temp": 28.0,
					"power":     0.5,
				},
			},
			// Acceleration phase
			{
				Type:      FrameTypeTelemetry,
				Timestamp: now.Add(2 * time.Second),
				Decoded: map[string]float64{
					"soc":       79.5,
					"speed":     20.0,
					"batt_temp": 29.0,
					"power":     35.0,
				},
			},
			// Cruise phase
			{
				Type:      FrameTypeTelemetry,
				Timestamp: now.Add(4 * time.Second),
				Decoded: map[string]float64{
					"soc":       79.0,
					"speed":     60.0,
					"batt_temp": 30.0,
					"power":     15.0,
				},
			},
			// Deceleration phase
			{
				Type:      FrameTypeTelemetry,
				Timestamp: now.Add(6 * time.Second),
				Decoded: map[string]float64{
					"soc":       78.8,
					"speed":     30.0,
					"batt_temp": 30.0,
					"power":     -5.0,
				},
			},
			// CAN frame
			{
				Type:      FrameTypeCAN,
				Timestamp: now.Add(8 * time.Second),
				ID:        0x7E8,
				Data:      []byte{0x02, 0x41, 0x0D, 0x45, 0x00, 0x00, 0x00, 0x00},
			},
		},
	}

	analyzer := NewAnalyzer(session, DefaultOptions())

	analysis, err := analyzer.Analyze()
	if err != nil {
		t.Fatalf("Analysis failed: %v", err)
	}

	if analysis.SessionInfo.Duration != 10*time.Second {
		t.Errorf("Expected duration 10s, got %v", analysis.SessionInfo.Duration)
	}
	if analysis.SessionInfo.TotalFrames != 5 {
		t.Errorf("Expected 5 frames, got %d", analysis.SessionInfo.TotalFrames)
	}

	if analysis.Performance.Speed.Max != 60.0 {
		t.Errorf("Expected max speed 60.0, got %f", analysis.Performance.Speed.Max)
	}
	if analysis.Performance.SOC.Min != 78.8 {
		t.Errorf("Expected min SOC 78.8, got %f", analysis.Performance.SOC.Min)
	}

	if analysis.DrivingBehavior.RapidAccel == 0 {
		t.Error("Expected at least one rapid acceleration")
	}
	if analysis.DrivingBehavior.RapidDecel == 0 {
		t.Error("Expected at least one rapid deceleration")
	}

	if analysis.CANActivity.UniqueIDs != 1 {
		t.Errorf("Expected 1 unique CAN ID, got %d", analysis.CANActivity.UniqueIDs)
	}
}

func TestCalculateStats(t *testing.T) {
	values := []float64{1.0, 2.0, 3.0, 4.0, 5.0}
	stats := CalculateStats(values)

	expected := Stats{
		Min:    1.0,
		Max:    5.0,
		Mean:   3.0,
		StdDev: 1.5811388300841898,
	}

	if stats.Min != expected.Min {
		t.Errorf("Expected min %f, got %f", expected.Min, stats.Min)
	}
	if stats.Max != expected.Max {
		t.Errorf("Expected max %f, got %f", expected.Max, stats.Max)
	}
	if stats.Mean != expected.Mean {
		t.Errorf("Expected mean %f, got %f", expected.Mean, stats.Mean)
	}
	if math.Abs(stats.StdDev-expected.StdDev) > 0.0001 {
		t.Errorf("Expected stddev %f, got %f", expected.StdDev, stats.StdDev)
	}
}

func TestCalculateStatsSingleSample(t *testing.T) {
	stats := CalculateStats([]float64{42.0})
	if stats.StdDev != 0 {
		t.Errorf("Expected stddev 0 for a single sample, got %f", stats.StdDev)
	}
}
