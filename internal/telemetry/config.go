package telemetry

import "evtelemetry/internal/signal"

// MaxSignals is the maximum number of SignalConfigs a TelemetryConfig
// may carry.
const MaxSignals = 32

// Config is the TelemetryConfig: whether to persist the JSON log, the
// send cadence, the opaque upload token, and the ordered signal list.
// Built once by the configuration loader and never mutated afterward.
type Config struct {
	SaveJSONLog     bool
	SendIntervalSec int
	UserToken       string
	Signals         []signal.Config
}
