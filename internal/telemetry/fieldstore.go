package telemetry

import "evtelemetry/internal/signal"

// FieldStore is a fixed-size array of {valid, value} slots indexed by
// signal.Field. It has exactly one writer — the Scheduler — for the
// lifetime of a session; readers in the same goroutine see a
// consistent snapshot because nothing mutates it concurrently with a
// read.
type FieldStore struct {
	valid  [signal.FieldCount]bool
	values [signal.FieldCount]float32
}

// Valid reports whether f currently holds a value.
func (s *FieldStore) Valid(f signal.Field) bool {
	return s.valid[f]
}

// Value returns f's current value, or 0 if invalid.
func (s *FieldStore) Value(f signal.Field) float32 {
	return s.values[f]
}

// Set writes a value into f. A field transitions from invalid to
// valid exactly once per write; once valid it stays valid for the
// rest of the session (normal operation never clears a slot).
func (s *FieldStore) Set(f signal.Field, value float32) {
	s.valid[f] = true
	s.values[f] = value
}

// Reset clears every slot back to its CREATED-session state.
func (s *FieldStore) Reset() {
	s.valid = [signal.FieldCount]bool{}
	s.values = [signal.FieldCount]float32{}
}

// Snapshot is an immutable copy of the FieldStore at a point in time,
// safe to hand to observers (analysis, vehicle alerting) outside the
// single-writer loop.
type Snapshot struct {
	valid  [signal.FieldCount]bool
	values [signal.FieldCount]float32
}

func (s *FieldStore) Snapshot() Snapshot {
	return Snapshot{valid: s.valid, values: s.values}
}

func (s Snapshot) Valid(f signal.Field) bool    { return s.valid[f] }
func (s Snapshot) Value(f signal.Field) float32 { return s.values[f] }
