package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSingleByteWithScale(t *testing.T) {
	cfg := Config{
		Request:   []byte{0x22, 0x49, 0x2E},
		StartByte: 0,
		Length:    1,
		Bit:       -1,
		Scale:     0.5,
		Offset:    -40,
	}
	// Positive response envelope: 0x62 DID_HI DID_LO <data...>
	response := []byte{0x62, 0x49, 0x2E, 200}

	value, ok := Decode(cfg, response)
	assert.True(t, ok)
	assert.InDelta(t, float32(60), value, 0.001) // 200*0.5 - 40
}

func TestDecodeDefaultsScaleToOneWhenZero(t *testing.T) {
	cfg := Config{
		Request:   []byte{0x22, 0x01, 0x02},
		StartByte: 0,
		Length:    1,
		Bit:       -1,
	}
	response := []byte{0x62, 0x01, 0x02, 42}

	value, ok := Decode(cfg, response)
	assert.True(t, ok)
	assert.Equal(t, float32(42), value)
}

func TestDecodeMultiByteBigEndian(t *testing.T) {
	cfg := Config{
		Request:   []byte{0x22, 0x01, 0x02},
		StartByte: 0,
		Length:    2,
		Bit:       -1,
		Scale:     1,
	}
	response := []byte{0x62, 0x01, 0x02, 0x01, 0x00} // 0x0100 = 256

	value, ok := Decode(cfg, response)
	assert.True(t, ok)
	assert.Equal(t, float32(256), value)
}

func TestDecodeBitExtraction(t *testing.T) {
	cfg := Config{
		Request:   []byte{0x22, 0x01, 0x02},
		StartByte: 0,
		Length:    1,
		Bit:       2,
		Scale:     1,
	}
	response := []byte{0x62, 0x01, 0x02, 0b00000100}

	value, ok := Decode(cfg, response)
	assert.True(t, ok)
	assert.Equal(t, float32(1), value)
}

func TestDecodeWithoutEnvelope(t *testing.T) {
	// response[0] != 0x62, so payloadStart is 0 and the window is read
	// directly from the start of the response.
	cfg := Config{
		Request:   []byte{0x22, 0x01, 0x02},
		StartByte: 0,
		Length:    1,
		Bit:       -1,
		Scale:     1,
	}
	response := []byte{0x99}

	value, ok := Decode(cfg, response)
	assert.True(t, ok)
	assert.Equal(t, float32(0x99), value)
}

func TestDecodeRejectsWindowPastResponseEnd(t *testing.T) {
	cfg := Config{
		Request:   []byte{0x22, 0x01, 0x02},
		StartByte: 5,
		Length:    2,
		Bit:       -1,
	}
	response := []byte{0x62, 0x01, 0x02, 0x00}

	_, ok := Decode(cfg, response)
	assert.False(t, ok)
}

func TestDecodeRejectsDegenerateConfig(t *testing.T) {
	response := []byte{0x62, 0x01, 0x02, 0x00}

	_, ok := Decode(Config{Request: nil, Length: 1}, response)
	assert.False(t, ok)

	_, ok = Decode(Config{Request: []byte{0x22}, Length: 0}, response)
	assert.False(t, ok)
}

func TestFieldNameAndFromName(t *testing.T) {
	assert.Equal(t, "soc", FieldSOC.Name())
	assert.Equal(t, "is_charging", FieldIsCharging.Name())

	f, ok := FieldFromName("batt_temp")
	assert.True(t, ok)
	assert.Equal(t, FieldBattTemp, f)

	_, ok = FieldFromName("not_a_field")
	assert.False(t, ok)
}

func TestFieldIsInteger(t *testing.T) {
	assert.True(t, FieldIsCharging.IsInteger())
	assert.False(t, FieldSOC.IsInteger())
}
