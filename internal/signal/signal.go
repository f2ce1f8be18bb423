// Package signal implements the signal decoder: a pure function that
// turns a UDS response blob into a typed telemetry value according to
// a SignalConfig's extraction window, bit mask, and linear transform.
package signal

// Config is a SignalConfig: immutable once loaded. StartByte and
// Length describe the extraction window within the response payload
// (after the envelope heuristic in Decode strips any leading
// service/DID echo). Bit, when in [0,31], selects a single bit out of
// the combined big-endian raw word; -1 means no bit extraction.
type Config struct {
	Field     Field
	Name      string
	Unit      string
	TxID      uint32
	TxExt     bool
	RxID      uint32
	RxExt     bool
	Request   []byte
	StartByte int
	Length    int
	Bit       int
	Scale     float32
	Offset    float32
}

// Decode extracts the configured value from a UDS response. It
// returns ok=false when the window falls outside the response or the
// config is degenerate (zero request length or zero extraction
// length) — callers treat this identically to a transport failure:
// the field is simply not updated this tick.
func Decode(cfg Config, response []byte) (value float32, ok bool) {
	if len(cfg.Request) == 0 || cfg.Length <= 0 {
		return 0, false
	}

	payloadStart := 0
	if len(response) >= 3 && response[0] == 0x62 {
		payloadStart = 3
	}

	start := payloadStart + cfg.StartByte
	end := start + cfg.Length
	if start < 0 || end > len(response) {
		return 0, false
	}

	var raw uint32
	for _, b := range response[start:end] {
		raw = raw<<8 | uint32(b)
	}

	if cfg.Bit >= 0 && cfg.Bit <= 31 {
		raw = (raw >> uint(cfg.Bit)) & 0x1
	}

	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}

	return float32(raw)*scale + cfg.Offset, true
}
