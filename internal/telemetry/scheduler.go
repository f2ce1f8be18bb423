// Package telemetry owns the FieldStore, the Telemetry Scheduler, and
// the JSON emitter: component E of the core, plus the FieldStore it
// shares exclusively with the Decoder's output (component D's store
// half).
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"evtelemetry/internal/gpsfeed"
	"evtelemetry/internal/signal"
	"evtelemetry/internal/uds"
)

// State is the scheduler's per-session state machine.
type State int

const (
	StateCreated State = iota
	StateConfigured
	StateLogging
	StatePaused
)

// knotsToKPH converts GPS speed (knots) to km/h.
const knotsToKPH = 1.852

// jsonFlushIntervalMs mirrors kJsonFlushIntervalMs in the source
// device firmware: the sink is flushed durably on this cadence,
// independent of the 1-second emission cadence.
const jsonFlushIntervalMs = 5000

// logIntervalMs is the fixed 1-second JSON emission cadence.
const logIntervalMs = 1000

// defaultEmitBufferSize matches the "implementations SHOULD size at
// least 512 bytes" guidance.
const defaultEmitBufferSize = 512

// Requester is the UDS Request Layer as seen by the scheduler — just
// enough surface to issue a request and get bytes back, so tests can
// substitute a fake without standing up a real ISO-TP engine.
type Requester interface {
	Request(addr uds.Addressing, requestBytes []byte) ([]byte, error)
}

// Scheduler is the Telemetry Scheduler + JSON Emitter (component E).
type Scheduler struct {
	cfg   Config
	store FieldStore
	uds   Requester
	sink  Sink

	state   State
	enabled bool

	lastPollMs  int64
	lastLogMs   int64
	lastFlushMs int64

	// EmitBufferSize bounds the JSON line length; fields beyond this
	// are dropped and the line is still closed with '}'. Defaults to
	// 512 when zero.
	EmitBufferSize int
}

// NewScheduler builds a scheduler in the CREATED state.
func NewScheduler(requester Requester) *Scheduler {
	return &Scheduler{uds: requester, enabled: true, state: StateCreated}
}

// Begin transitions CREATED -> CONFIGURED, resetting all session state.
func (s *Scheduler) Begin(cfg Config) {
	s.cfg = cfg
	s.store.Reset()
	s.lastPollMs = 0
	s.lastLogMs = 0
	s.lastFlushMs = 0
	s.enabled = true
	s.state = StateConfigured
}

// SetStorageReady transitions CONFIGURED -> LOGGING once the sink is
// available to open (or re-open).
func (s *Scheduler) SetStorageReady(sink Sink) {
	s.sink = sink
	if s.state == StateConfigured || s.state == StatePaused {
		s.state = StateLogging
	}
}

// SetEnabled pauses or resumes the scheduler. While paused, PollUDS and
// LogJSON are no-ops (timers stay frozen, not merely skipped, so a
// resume doesn't see a burst of catch-up polling).
func (s *Scheduler) SetEnabled(enabled bool) {
	s.enabled = enabled
	if !enabled {
		s.state = StatePaused
	} else if s.sink != nil {
		s.state = StateLogging
	} else {
		s.state = StateConfigured
	}
}

// State returns the current session state.
func (s *Scheduler) State() State { return s.state }

// Snapshot returns a copy of the FieldStore for read-only inspection by observers
// (vehicle alerting, analysis) outside the single-writer loop.
func (s *Scheduler) Snapshot() Snapshot { return s.store.Snapshot() }

// UpdateGps applies a GPS snapshot: lat/lon only when either is
// nonzero, speed (converted knots->km/h) only when >= 0, heading only
// when nonzero, elevation only when nonzero.
func (s *Scheduler) UpdateGps(gps gpsfeed.Snapshot, ok bool) {
	if !s.enabled || !ok {
		return
	}
	if gps.Lat != 0 || gps.Lng != 0 {
		s.store.Set(signal.FieldLat, float32(gps.Lat))
		s.store.Set(signal.FieldLon, float32(gps.Lng))
	}
	if gps.Speed >= 0 {
		s.store.Set(signal.FieldSpeed, gps.Speed*knotsToKPH)
	}
	if gps.Heading != 0 {
		s.store.Set(signal.FieldHeading, gps.Heading)
	}
	if gps.Alt != 0 {
		s.store.Set(signal.FieldElevation, gps.Alt)
	}
}

// UpdateUtc writes the utc field from a wall-clock seconds source,
// when positive.
func (s *Scheduler) UpdateUtc(utcSeconds int64) {
	if !s.enabled {
		return
	}
	if utcSeconds > 0 {
		s.store.Set(signal.FieldUTC, float32(utcSeconds))
	}
}

// PollUDS runs one cooperative pass: if the cadence hasn't elapsed,
// it returns immediately; otherwise it polls every configured signal
// in order and applies the derived-field rules.
func (s *Scheduler) PollUDS(nowMs int64) {
	if !s.enabled || len(s.cfg.Signals) == 0 {
		return
	}
	intervalMs := int64(s.cfg.SendIntervalSec) * 1000
	if intervalMs <= 0 {
		intervalMs = 1000
	}
	if nowMs-s.lastPollMs < intervalMs {
		return
	}
	s.lastPollMs = nowMs

	for _, sig := range s.cfg.Signals {
		addr := uds.Addressing{
			TxID: sig.TxID, TxExtended: sig.TxExt,
			RxID: sig.RxID, RxExtended: sig.RxExt,
		}
		resp, err := s.uds.Request(addr, sig.Request)
		if err != nil {
			continue
		}
		value, ok := signal.Decode(sig, resp)
		if !ok {
			continue
		}
		s.store.Set(sig.Field, value)
	}

	s.applyDerivedValues()
}

// applyDerivedValues computes fields from other fields instead of a
// UDS response. Each rule fires only if its target is currently
// invalid and its inputs are valid; once set, a derived field behaves
// like any other (never recomputed).
func (s *Scheduler) applyDerivedValues() {
	if !s.store.Valid(signal.FieldPower) &&
		s.store.Valid(signal.FieldVoltage) && s.store.Valid(signal.FieldCurrent) {
		power := s.store.Value(signal.FieldVoltage) * s.store.Value(signal.FieldCurrent) / 1000
		s.store.Set(signal.FieldPower, power)
	}
	if !s.store.Valid(signal.FieldIsCharging) && s.store.Valid(signal.FieldPower) {
		s.store.Set(signal.FieldIsCharging, boolF32(s.store.Value(signal.FieldPower) < 0))
	}
	if !s.store.Valid(signal.FieldIsDCFC) && s.store.Valid(signal.FieldPower) {
		s.store.Set(signal.FieldIsDCFC, boolF32(s.store.Value(signal.FieldPower) < -20))
	}
	if !s.store.Valid(signal.FieldIsParked) && s.store.Valid(signal.FieldSpeed) {
		s.store.Set(signal.FieldIsParked, boolF32(s.store.Value(signal.FieldSpeed) < 1))
	}
}

func boolF32(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// LogJSON emits one JSON line to the sink if enabled, the sink is
// open, and the 1-second cadence has elapsed. It also drives the
// independent 5-second durable flush.
func (s *Scheduler) LogJSON(nowMs int64) error {
	if !s.enabled || !s.cfg.SaveJSONLog || s.sink == nil {
		return nil
	}
	if nowMs-s.lastLogMs >= logIntervalMs {
		s.lastLogMs = nowMs
		line := s.buildLine()
		if err := s.sink.WriteLine(line); err != nil {
			return err
		}
	}
	if nowMs-s.lastFlushMs >= jsonFlushIntervalMs {
		s.lastFlushMs = nowMs
		return s.sink.Flush()
	}
	return nil
}

func (s *Scheduler) buildLine() string {
	limit := s.EmitBufferSize
	if limit <= 0 {
		limit = defaultEmitBufferSize
	}
	// Reserve one byte for the trailing '}'.
	budget := limit - 1

	var b strings.Builder
	b.WriteByte('{')
	wrote := false
	for f := signal.Field(0); f < signal.FieldCount; f++ {
		if !s.store.Valid(f) {
			continue
		}
		field := appendJSONField(f, s.store.Value(f), wrote)
		if b.Len()+len(field) > budget {
			break
		}
		b.WriteString(field)
		wrote = true
	}
	b.WriteByte('}')
	return b.String()
}

// appendJSONField renders one "name":value pair, with a leading comma
// unless it is the first field in the line.
func appendJSONField(f signal.Field, value float32, notFirst bool) string {
	var sb strings.Builder
	if notFirst {
		sb.WriteByte(',')
	}
	sb.WriteByte('"')
	sb.WriteString(f.Name())
	sb.WriteString(`":`)
	if f.IsInteger() {
		sb.WriteString(strconv.FormatInt(int64(value), 10))
	} else {
		sb.WriteString(fmt.Sprintf("%.3f", value))
	}
	return sb.String()
}

// NowMs converts a time.Time to the monotonic-ish millisecond
// timestamp the scheduler expects. The host loop is free to use any
// monotonically increasing source; this helper matches the common
// case of deriving it from time.Now().
func NowMs(t time.Time) int64 {
	return t.UnixMilli()
}
