package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"evtelemetry/internal/vehicle"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreVehicleRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	v := &vehicle.Vehicle{
		VIN:         "1EVTESTVIN00000001",
		Make:        "Kia",
		Model:       "Niro EV",
		Year:        2023,
		State:       vehicle.State{SOC: 72.5, Speed: 10, BattTemp: 25},
		LastUpdated: time.Now().Truncate(time.Second),
	}

	if err := store.SaveVehicle(v); err != nil {
		t.Fatalf("SaveVehicle failed: %v", err)
	}

	got, err := store.GetVehicle(v.VIN)
	if err != nil {
		t.Fatalf("GetVehicle failed: %v", err)
	}
	if got.State.SOC != v.State.SOC {
		t.Errorf("expected SOC %.1f, got %.1f", v.State.SOC, got.State.SOC)
	}

	list, err := store.ListVehicles()
	if err != nil {
		t.Fatalf("ListVehicles failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 vehicle, got %d", len(list))
	}

	if err := store.DeleteVehicle(v.VIN); err != nil {
		t.Fatalf("DeleteVehicle failed: %v", err)
	}
	if _, err := store.GetVehicle(v.VIN); err == nil {
		t.Error("expected error getting deleted vehicle")
	}
}

func TestSQLiteStoreProfileRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	profile := &vehicle.Profile{
		MaxBattTempC:  45,
		MinSOCPercent: 15,
		MaxPowerKW:    80,
	}

	if err := store.SaveProfile("Kia", "Niro EV", profile); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err := store.GetProfile("Kia", "Niro EV")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.MaxBattTempC != profile.MaxBattTempC {
		t.Errorf("expected MaxBattTempC %.1f, got %.1f", profile.MaxBattTempC, got.MaxBattTempC)
	}

	all, err := store.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(all))
	}
}

func TestSQLiteStoreAlertRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	v := &vehicle.Vehicle{VIN: "1EVTESTVIN00000002", Make: "Kia", Model: "Niro EV", Year: 2023}
	if err := store.SaveVehicle(v); err != nil {
		t.Fatalf("SaveVehicle failed: %v", err)
	}

	now := time.Now().Truncate(time.Second)
	alert := &vehicle.Alert{
		ID:        "alert-1",
		Type:      "BattTemp",
		Severity:  "critical",
		Message:   "battery temperature exceeds threshold",
		Timestamp: now,
		Value:     48,
		Threshold: 45,
		Fields:    []string{"batt_temp"},
	}

	if err := store.SaveAlert(v.VIN, alert); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	alerts, err := store.GetAlerts(v.VIN, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].ID != alert.ID {
		t.Errorf("expected alert id %s, got %s", alert.ID, alerts[0].ID)
	}
	if len(alerts[0].Fields) != 1 || alerts[0].Fields[0] != "batt_temp" {
		t.Errorf("expected fields [batt_temp], got %v", alerts[0].Fields)
	}
}
