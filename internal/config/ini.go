package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"evtelemetry/internal/signal"
	"evtelemetry/internal/telemetry"
)

// LoadTelemetryConfig loads a TelemetryConfig from two cooperating
// INI-style files: configPath for the [common]/[ABRP] scalar settings,
// obdPath for the OBD-ABRP-<field> signal lines. Either file is
// optional — a missing file simply leaves its settings at their
// defaults.
func LoadTelemetryConfig(configPath, obdPath string) (telemetry.Config, error) {
	cfg := telemetry.Config{SaveJSONLog: true, SendIntervalSec: 1}

	if f, err := os.Open(configPath); err == nil {
		err := parseConfigFile(f, &cfg)
		f.Close()
		if err != nil {
			return cfg, err
		}
	}

	if f, err := os.Open(obdPath); err == nil {
		err := parseObdFile(f, &cfg)
		f.Close()
		if err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func parseConfigFile(r io.Reader, cfg *telemetry.Config) error {
	section := ""
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				section = strings.TrimSpace(line[1:end])
			}
			continue
		}
		key, value, ok := splitKV(line)
		if !ok {
			continue
		}
		switch {
		case strings.EqualFold(section, "common") && strings.EqualFold(key, "save-json-log"):
			cfg.SaveJSONLog = parseBool(value)
		case strings.EqualFold(section, "ABRP") && strings.EqualFold(key, "ABRP-user-token"):
			cfg.UserToken = value
		case strings.EqualFold(section, "ABRP") && strings.EqualFold(key, "ABRP-send-data-interval"):
			if n, err := strconv.Atoi(value); err == nil {
				cfg.SendIntervalSec = n
			}
		}
	}
	return sc.Err()
}

func parseObdFile(r io.Reader, cfg *telemetry.Config) error {
	section := ""
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				section = strings.TrimSpace(line[1:end])
			}
			continue
		}
		if !strings.EqualFold(section, "ABRP") {
			continue
		}
		key, value, ok := splitKV(line)
		if !ok {
			continue
		}
		if strings.HasPrefix(key, "OBD-ABRP-") {
			if sig, ok := parseAbrpSignal(key, value); ok {
				if len(cfg.Signals) < telemetry.MaxSignals {
					cfg.Signals = append(cfg.Signals, sig)
				}
			}
		}
	}
	return sc.Err()
}

func splitKV(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:i])
	value = trimQuotes(strings.TrimSpace(line[i+1:]))
	return key, value, true
}

func trimQuotes(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, `"`)
	v = strings.TrimSuffix(v, `"`)
	return strings.TrimSpace(v)
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "on") || strings.EqualFold(v, "true") || v == "1"
}

// parseCanId parses a tx_id/rx_id token: an optional "11:"/"29:"
// prefix forces addressing mode, the remainder is a hex id, and
// ids > 0x7FF always imply extended addressing regardless of prefix.
func parseCanId(token string) (id uint32, extended bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	if idx := strings.IndexByte(token, ':'); idx > 0 {
		prefix := token[:idx]
		token = token[idx+1:]
		switch prefix {
		case "29":
			extended = true
		case "11":
			extended = false
		}
	}
	v, _ := strconv.ParseUint(token, 16, 32)
	id = uint32(v)
	if id > 0x7FF {
		extended = true
	}
	return id, extended
}

// parseHexBytes parses a hex byte string, stripped of spaces and an
// optional 0x/0X prefix. Odd-length strings are rejected (return nil).
func parseHexBytes(s string) []byte {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 != 0 {
		return nil
	}
	out := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		v, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			return nil
		}
		out = append(out, byte(v))
	}
	return out
}

// parseAbrpSignal parses one "OBD-ABRP-<field>" key/value pair into a
// signal.Config, applying the start/end/length and scale normalization
// rules below. Returns ok=false when the field name is unrecognized or
// the line is missing its request bytes or CAN addressing.
func parseAbrpSignal(key, value string) (signal.Config, bool) {
	name := strings.TrimSpace(strings.TrimPrefix(key, "OBD-ABRP-"))
	field, known := signal.FieldFromName(name)
	if !known {
		return signal.Config{}, false
	}

	tokens := strings.Split(value, ",")
	get := func(i int) string {
		if i < len(tokens) {
			return strings.TrimSpace(tokens[i])
		}
		return ""
	}

	var cfg signal.Config
	cfg.Field = field
	cfg.Name = name
	cfg.Unit = get(0)
	cfg.TxID, cfg.TxExt = parseCanId(get(1))
	cfg.Request = parseHexBytes(get(2))
	cfg.RxID, cfg.RxExt = parseCanId(get(3))

	start := atoiDefault(get(4), 0)
	end := atoiDefault(get(5), 0)
	length := atoiDefault(get(6), 0)
	bit := atoiDefault(get(7), -1)
	scale := atofDefault(get(8), 1.0)
	offset := atofDefault(get(9), 0.0)

	if length <= 0 {
		if end > start {
			length = end - start + 1
		} else {
			length = 1
		}
	}
	if start > 0 {
		cfg.StartByte = start - 1
	}
	cfg.Length = length
	cfg.Bit = bit
	if scale == 0 {
		scale = 1
	}
	cfg.Scale = float32(scale)
	cfg.Offset = float32(offset)

	if len(cfg.Request) == 0 || cfg.TxID == 0 || cfg.RxID == 0 {
		return signal.Config{}, false
	}
	return cfg, true
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atofDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
