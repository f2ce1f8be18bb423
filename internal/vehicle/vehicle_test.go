package vehicle

import (
	"testing"

	"evtelemetry/internal/signal"
	"evtelemetry/internal/telemetry"
)

func snapshotWith(fields map[signal.Field]float32) telemetry.Snapshot {
	var store telemetry.FieldStore
	for f, v := range fields {
		store.Set(f, v)
	}
	return store.Snapshot()
}

func TestVehicleManager(t *testing.T) {
	manager := NewManager()

	vin := "1EVTESTVIN00000001"
	v, err := manager.RegisterVehicle(vin, "Kia", "Niro EV", 2023)
	if err != nil {
		t.Fatalf("Failed to register vehicle: %v", err)
	}
	if v.VIN != vin {
		t.Errorf("Expected VIN %s, got %s", vin, v.VIN)
	}

	_, err = manager.RegisterVehicle(vin, "Kia", "Niro EV", 2023)
	if err == nil {
		t.Error("Expected error on duplicate registration")
	}

	v2, err := manager.GetVehicle(vin)
	if err != nil {
		t.Fatalf("Failed to get vehicle: %v", err)
	}
	if v2.VIN != vin {
		t.Errorf("Expected VIN %s, got %s", vin, v2.VIN)
	}

	snap := snapshotWith(map[signal.Field]float32{
		signal.FieldSpeed:    60.0,
		signal.FieldSOC:      70.0,
		signal.FieldBattTemp: 30.0,
		signal.FieldPower:    12.0,
	})
	if err := manager.UpdateVehicleState(vin, snap); err != nil {
		t.Fatalf("Failed to update state: %v", err)
	}

	v3, _ := manager.GetVehicle(vin)
	if v3.State.Speed != 60.0 {
		t.Errorf("Expected speed 60.0, got %.1f", v3.State.Speed)
	}

	profile := Profile{
		MaxBattTempC:  45.0,
		MinSOCPercent: 15.0,
		MaxPowerKW:    80.0,
		CustomThresholds: map[string]float64{
			"speed": 130.0,
		},
	}
	manager.RegisterProfile("Kia", "Niro EV", profile)

	p, err := manager.GetProfile("Kia", "Niro EV")
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	if p.MaxBattTempC != profile.MaxBattTempC {
		t.Errorf("Expected MaxBattTempC %.1f, got %.1f", profile.MaxBattTempC, p.MaxBattTempC)
	}

	hotSnap := snapshotWith(map[signal.Field]float32{
		signal.FieldSpeed:    60.0,
		signal.FieldSOC:      70.0,
		signal.FieldBattTemp: 48.0, // above MaxBattTempC
		signal.FieldPower:    12.0,
	})
	if err := manager.UpdateVehicleState(vin, hotSnap); err != nil {
		t.Fatalf("Failed to update state: %v", err)
	}

	alerts, err := manager.DetectAnomalies(vin)
	if err != nil {
		t.Fatalf("Failed to detect anomalies: %v", err)
	}
	if len(alerts) == 0 {
		t.Error("Expected at least one alert for high battery temperature")
	}

	found := false
	for _, alert := range alerts {
		if alert.Type == "BattTemp" && alert.Severity == "critical" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected critical BattTemp alert")
	}
}

func TestServiceSchedule(t *testing.T) {
	schedule := DefaultServiceSchedule()
	if len(schedule.Items) == 0 {
		t.Error("Expected default service schedule to have items")
	}

	var brakeService *ServiceItem
	for i := range schedule.Items {
		if schedule.Items[i].Name == "Brake Service" {
			brakeService = &schedule.Items[i]
			break
		}
	}

	if brakeService == nil {
		t.Fatal("Expected to find brake service")
	}

	if brakeService.IntervalMiles != 30000 {
		t.Errorf("Expected brake service interval of 30000 miles, got %.1f", brakeService.IntervalMiles)
	}

	if brakeService.Priority != "required" {
		t.Errorf("Expected brake service priority 'required', got '%s'", brakeService.Priority)
	}

	for _, item := range schedule.Items {
		if item.Name == "Oil Change" {
			t.Error("EV service schedule should not include an oil change")
		}
	}
}
