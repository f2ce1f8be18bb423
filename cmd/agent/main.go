// Command agent is the in-vehicle telemetry daemon: it loads
// configuration, builds a CAN transport, wires the ISO-TP/UDS/signal
// decoder stack into the Telemetry Scheduler, and runs the
// single-threaded host loop that drives polling, GPS updates, and JSON
// emission. Fleet registry and capture recording are optional side
// observers started alongside the core loop.
package main

import (
	"flag"
	"time"

	"evtelemetry/internal/capture"
	"evtelemetry/internal/config"
	"evtelemetry/internal/gpsfeed"
	"evtelemetry/internal/isotp"
	"evtelemetry/internal/signal"
	"evtelemetry/internal/sink"
	"evtelemetry/internal/telemetry"
	"evtelemetry/internal/transport"
	"evtelemetry/internal/uds"
	"evtelemetry/internal/vehicle"

	"go.uber.org/zap"
)

// tickInterval is the host loop's cooperative scheduling granularity.
// The scheduler itself gates polling/emission to their own cadences;
// this just bounds how often it's given a chance to check them.
const tickInterval = 100 * time.Millisecond

// capturedFrameType marks a recorded snapshot as a decoded telemetry
// reading rather than a raw CAN frame, matching the convention the
// trip analyzer expects when walking a capture session.
const capturedFrameType = "TELEMETRY"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to daemon configuration")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	daemon, err := config.LoadDaemon(configPath)
	if err != nil {
		logger.Fatal("loading daemon config", zap.Error(err))
	}

	telemetryCfg, err := config.LoadTelemetryConfig(daemon.Signals.ConfigPath, daemon.Signals.ObdPath)
	if err != nil {
		logger.Fatal("loading telemetry signal config", zap.Error(err))
	}
	logger.Info("loaded signal configuration", zap.Int("signals", len(telemetryCfg.Signals)))

	port, err := transport.NewPort(daemon.TransportConfig())
	if err != nil {
		logger.Fatal("building CAN port", zap.Error(err))
	}
	if err := port.Start(daemon.TransportConfig().Baud()); err != nil {
		logger.Fatal("starting CAN port", zap.Error(err))
	}
	defer port.Stop()

	engine := isotp.NewEngine(port)
	udsLayer := uds.NewLayer(engine)

	scheduler := telemetry.NewScheduler(udsLayer)
	scheduler.Begin(telemetryCfg)

	var fileSink *sink.FileSink
	if telemetryCfg.SaveJSONLog {
		fileSink, err = sink.Open(daemon.Storage.LogDir, uint64(time.Now().Unix()))
		if err != nil {
			logger.Warn("opening JSON sink, continuing without durable logging", zap.Error(err))
		} else {
			defer fileSink.Close()
			scheduler.SetStorageReady(fileSink)
		}
	}

	manager := vehicle.NewManager()
	if daemon.VIN != "" {
		if _, err := manager.RegisterVehicle(daemon.VIN, "", "", 0); err != nil {
			logger.Warn("registering vehicle", zap.Error(err))
		}
		manager.RegisterProfile("", "", vehicle.Profile{
			MaxBattTempC:  daemon.Vehicle.DefaultThresholds.MaxBattTempC,
			MinSOCPercent: daemon.Vehicle.DefaultThresholds.MinSOCPercent,
			MaxPowerKW:    daemon.Vehicle.DefaultThresholds.MaxPowerKW,
		})
	}

	var recorder *capture.Recorder
	if daemon.Storage.LogDir != "" {
		recorder = capture.NewRecorder(daemon.VIN)
		if err := recorder.Start(); err != nil {
			logger.Warn("starting capture recorder", zap.Error(err))
			recorder = nil
		} else {
			defer recorder.Stop()
		}
	}

	logger.Info("telemetry daemon running", zap.String("vin", daemon.VIN))

	gpsSource := gpsfeed.Source(gpsfeed.NewFakeSource(nil))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		nowMs := telemetry.NowMs(now)

		scheduler.UpdateGps(gpsSource.Read())
		scheduler.UpdateUtc(now.Unix())
		scheduler.PollUDS(nowMs)

		if err := scheduler.LogJSON(nowMs); err != nil {
			logger.Warn("writing JSON telemetry line", zap.Error(err))
		}

		snap := scheduler.Snapshot()
		if recorder != nil && recorder.IsRunning() {
			if err := recorder.Record(capture.Frame{
				Timestamp: now,
				Type:      capturedFrameType,
				Decoded:   snapshotFields(snap),
			}); err != nil {
				logger.Debug("recording telemetry frame", zap.Error(err))
			}
		}

		if daemon.VIN != "" {
			if err := manager.UpdateVehicleState(daemon.VIN, snap); err != nil {
				logger.Debug("updating vehicle state", zap.Error(err))
			} else if alerts, err := manager.DetectAnomalies(daemon.VIN); err == nil {
				for _, alert := range alerts {
					logger.Warn("vehicle alert", zap.String("type", alert.Type),
						zap.String("severity", alert.Severity), zap.String("message", alert.Message))
				}
			}
		}
	}
}

// snapshotFields flattens a telemetry.Snapshot's valid fields into the
// generic map shape the capture recorder and trip analyzer consume.
func snapshotFields(snap telemetry.Snapshot) map[string]float64 {
	out := make(map[string]float64)
	for f := signal.Field(0); f < signal.FieldCount; f++ {
		if snap.Valid(f) {
			out[f.Name()] = float64(snap.Value(f))
		}
	}
	return out
}
