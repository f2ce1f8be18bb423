package isotp

import (
	"testing"
	"time"

	"evtelemetry/internal/canbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnginePair(t *testing.T) (client, server *Engine) {
	t.Helper()
	a, b := canbus.NewLoopbackPair()
	require.NoError(t, a.Start(canbus.Baud500k))
	require.NoError(t, b.Start(canbus.Baud500k))
	t.Cleanup(func() {
		a.Stop()
		b.Stop()
	})
	clientEngine := NewEngine(a)
	serverEngine := NewEngine(b)
	clientEngine.FrameTimeout = 50 * time.Millisecond
	serverEngine.FrameTimeout = 50 * time.Millisecond
	return clientEngine, serverEngine
}

// TestSingleFrameRoundTrip checks that receive is the inverse of send
// for a payload that fits in one CAN frame.
func TestSingleFrameRoundTrip(t *testing.T) {
	client, server := newEnginePair(t)
	payload := []byte{0x22, 0x01, 0x02}

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Send(0x7E0, false, 0x7E8, false, payload)
	}()

	got, err := server.Receive(0x7E8, false, 0x7E0, false)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, payload, got)
}

// TestMultiFrameRoundTrip exercises segmentation/reassembly and flow
// control for a payload spanning First Frame + Consecutive Frames.
func TestMultiFrameRoundTrip(t *testing.T) {
	client, server := newEnginePair(t)
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Send(0x7E0, false, 0x7E8, false, payload)
	}()

	got, err := server.Receive(0x7E8, false, 0x7E0, false)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, payload, got)
}

func TestSendRejectsOutOfRangeLength(t *testing.T) {
	client, _ := newEnginePair(t)

	err := client.Send(0x7E0, false, 0x7E8, false, nil)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindMalformedLength, e.Kind)

	huge := make([]byte, MaxPayloadLen+1)
	err = client.Send(0x7E0, false, 0x7E8, false, huge)
	require.Error(t, err)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindMalformedLength, e.Kind)
}

func TestReceiveTimesOutWithoutTraffic(t *testing.T) {
	_, server := newEnginePair(t)

	_, err := server.Receive(0x7E0, false, 0x7E8, false)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestSequenceErrorOnOutOfOrderConsecutiveFrame(t *testing.T) {
	a, b := canbus.NewLoopbackPair()
	require.NoError(t, a.Start(canbus.Baud500k))
	require.NoError(t, b.Start(canbus.Baud500k))
	t.Cleanup(func() { a.Stop(); b.Stop() })

	server := NewEngine(b)
	server.FrameTimeout = 50 * time.Millisecond

	resultCh := make(chan error, 1)
	go func() {
		_, err := server.Receive(0x7E8, false, 0x7E0, false)
		resultCh <- err
	}()

	// First Frame announcing 20 bytes total.
	first := canbus.NewFrame(0x7E0, false, []byte{0x10, 0x14, 0, 1, 2, 3, 4, 5})
	require.NoError(t, a.Send(first, time.Second))

	// Drain the flow control frame the server sends back.
	_, err := a.Receive(time.Second)
	require.NoError(t, err)

	// Consecutive frame with sequence 2 instead of the expected 1.
	bad := canbus.NewFrame(0x7E0, false, []byte{0x22, 6, 7, 8, 9, 10, 11, 12})
	require.NoError(t, a.Send(bad, time.Second))

	err = <-resultCh
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindSequenceError, e.Kind)
}
