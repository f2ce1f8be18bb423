package config

import (
	"os"
	"path/filepath"
	"testing"

	"evtelemetry/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCanIdPrefixRules(t *testing.T) {
	id, ext := parseCanId("11:7E0")
	assert.Equal(t, uint32(0x7E0), id)
	assert.False(t, ext)

	id, ext = parseCanId("29:18DA10F1")
	assert.Equal(t, uint32(0x18DA10F1), id)
	assert.True(t, ext)

	// No prefix, id within 11-bit range: not extended.
	id, ext = parseCanId("7E8")
	assert.Equal(t, uint32(0x7E8), id)
	assert.False(t, ext)

	// "11:" prefix, but id exceeds 11 bits: forced extended regardless.
	id, ext = parseCanId("11:18DB33F1")
	assert.Equal(t, uint32(0x18DB33F1), id)
	assert.True(t, ext)

	id, ext = parseCanId("")
	assert.Equal(t, uint32(0), id)
	assert.False(t, ext)
}

func TestParseHexBytes(t *testing.T) {
	assert.Equal(t, []byte{0x22, 0x49, 0x2E}, parseHexBytes("22 49 2E"))
	assert.Equal(t, []byte{0x22, 0x49, 0x2E}, parseHexBytes("0x22492E"))
	assert.Nil(t, parseHexBytes("abc")) // odd length
	assert.Nil(t, parseHexBytes("zz"))  // invalid hex digit
}

func TestParseAbrpSignalStartEndLengthDerivation(t *testing.T) {
	// start=1,end=2 (1-indexed, inclusive) -> StartByte=0, Length=2.
	cfg, ok := parseAbrpSignal("OBD-ABRP-soc", "%,11:7E0,22492E,11:7E8,1,2,,,1.0,0.0")
	require.True(t, ok)
	assert.Equal(t, 0, cfg.StartByte)
	assert.Equal(t, 2, cfg.Length)
	assert.Equal(t, signal.FieldSOC, cfg.Field)

	// explicit length wins over start/end.
	cfg, ok = parseAbrpSignal("OBD-ABRP-soc", "%,11:7E0,22492E,11:7E8,3,,4,,1.0,0.0")
	require.True(t, ok)
	assert.Equal(t, 2, cfg.StartByte) // start=3 -> StartByte=2
	assert.Equal(t, 4, cfg.Length)

	// neither start/end nor length given -> length defaults to 1.
	cfg, ok = parseAbrpSignal("OBD-ABRP-soc", "%,11:7E0,22492E,11:7E8,,,,,,")
	require.True(t, ok)
	assert.Equal(t, 1, cfg.Length)
	assert.Equal(t, 0, cfg.StartByte) // start defaults to 0 -> StartByte stays 0
}

func TestParseAbrpSignalScaleDefaultsWhenZero(t *testing.T) {
	cfg, ok := parseAbrpSignal("OBD-ABRP-soc", "%,11:7E0,22492E,11:7E8,1,1,,,0,0")
	require.True(t, ok)
	assert.Equal(t, float32(1), cfg.Scale)
}

func TestParseAbrpSignalUnknownFieldDropped(t *testing.T) {
	_, ok := parseAbrpSignal("OBD-ABRP-not-a-real-field", "%,11:7E0,22492E,11:7E8,1,1,,,1,0")
	assert.False(t, ok)
}

func TestParseAbrpSignalDroppedOnMissingAddressingOrRequest(t *testing.T) {
	// Missing request bytes.
	_, ok := parseAbrpSignal("OBD-ABRP-soc", "%,11:7E0,,11:7E8,1,1,,,1,0")
	assert.False(t, ok)

	// Missing tx id.
	_, ok = parseAbrpSignal("OBD-ABRP-soc", "%,,22492E,11:7E8,1,1,,,1,0")
	assert.False(t, ok)

	// Missing rx id.
	_, ok = parseAbrpSignal("OBD-ABRP-soc", "%,11:7E0,22492E,,1,1,,,1,0")
	assert.False(t, ok)
}

func TestLoadTelemetryConfigFromFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.ini")
	obdPath := filepath.Join(dir, "obd.ini")

	err := os.WriteFile(configPath, []byte(`
[common]
save-json-log = on

[ABRP]
ABRP-user-token = "test-token"
ABRP-send-data-interval = 5
`), 0o644)
	require.NoError(t, err)

	err = os.WriteFile(obdPath, []byte(`
[ABRP]
OBD-ABRP-soc = %,11:7E0,22492E,11:7E8,1,1,,,1.0,0.0
OBD-ABRP-batt_temp = C,11:7E0,224201,11:7E8,1,1,,,1.0,-40.0
`), 0o644)
	require.NoError(t, err)

	cfg, err := LoadTelemetryConfig(configPath, obdPath)
	require.NoError(t, err)

	assert.True(t, cfg.SaveJSONLog)
	assert.Equal(t, "test-token", cfg.UserToken)
	assert.Equal(t, 5, cfg.SendIntervalSec)
	require.Len(t, cfg.Signals, 2)
	assert.Equal(t, signal.FieldSOC, cfg.Signals[0].Field)
	assert.Equal(t, signal.FieldBattTemp, cfg.Signals[1].Field)
}

func TestLoadTelemetryConfigMissingFilesUsesDefaults(t *testing.T) {
	cfg, err := LoadTelemetryConfig("/no/such/config.ini", "/no/such/obd.ini")
	require.NoError(t, err)
	assert.True(t, cfg.SaveJSONLog)
	assert.Equal(t, 1, cfg.SendIntervalSec)
	assert.Empty(t, cfg.Signals)
}
