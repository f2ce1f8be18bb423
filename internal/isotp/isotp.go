// Package isotp implements ISO 15765-2 transport framing over classic
// (non-FD) CAN: segmentation, reassembly, and flow control for
// payloads up to 4095 bytes. The engine is stateless between
// transfers — no half-open transfer persists across calls.
package isotp

import (
	"errors"
	"fmt"
	"time"

	"evtelemetry/internal/canbus"
)

// PCI (Protocol Control Information) frame types, upper nibble of the
// first payload byte.
const (
	pciSingleFrame      byte = 0x0
	pciFirstFrame       byte = 0x1
	pciConsecutiveFrame byte = 0x2
	pciFlowControl      byte = 0x3
)

// Kind classifies an engine error.
type Kind int

const (
	KindTimeout Kind = iota
	KindUnexpectedFrame
	KindSequenceError
	KindBufferTooSmall
	KindMalformedLength
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnexpectedFrame:
		return "unexpected_frame"
	case KindSequenceError:
		return "sequence_error"
	case KindBufferTooSmall:
		return "buffer_too_small"
	case KindMalformedLength:
		return "malformed_length"
	default:
		return "unknown"
	}
}

// Error is the error type returned by Engine operations.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("isotp: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("isotp: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

// Default timeouts: 200ms is generous enough for a typical UDS
// request/response exchange over CAN.
const (
	DefaultFrameTimeout = 200 * time.Millisecond
	MaxPayloadLen       = 4095
)

// Engine drives ISO-TP send/receive over a single canbus.Port.
type Engine struct {
	port canbus.Port
	// FrameTimeout bounds every individual frame read (Flow Control,
	// Consecutive Frame, and the lead frame of a Receive).
	FrameTimeout time.Duration
}

// NewEngine builds an engine over the given port.
func NewEngine(port canbus.Port) *Engine {
	return &Engine{port: port, FrameTimeout: DefaultFrameTimeout}
}

func (e *Engine) timeout() time.Duration {
	if e.FrameTimeout <= 0 {
		return DefaultFrameTimeout
	}
	return e.FrameTimeout
}

// Send segments payload (1-4095 bytes) and transmits it to txID,
// awaiting Flow Control from rxID when a multi-frame transfer is
// needed.
func (e *Engine) Send(txID uint32, txExtended bool, rxID uint32, rxExtended bool, payload []byte) error {
	n := len(payload)
	if n == 0 || n > MaxPayloadLen {
		return newErr(KindMalformedLength, fmt.Errorf("payload length %d out of range", n))
	}
	if n <= 7 {
		return e.sendSingleFrame(txID, txExtended, payload)
	}
	return e.sendMultiFrame(txID, txExtended, rxID, rxExtended, payload)
}

func (e *Engine) sendSingleFrame(txID uint32, txExtended bool, payload []byte) error {
	data := make([]byte, 0, 8)
	data = append(data, pciSingleFrame<<4|byte(len(payload)&0x0F))
	data = append(data, payload...)
	frame := canbus.NewFrame(txID, txExtended, data)
	if err := e.port.Send(frame, e.timeout()); err != nil {
		return translatePortErr(err)
	}
	return nil
}

func (e *Engine) sendMultiFrame(txID uint32, txExtended bool, rxID uint32, rxExtended bool, payload []byte) error {
	n := len(payload)
	first := make([]byte, 0, 8)
	first = append(first, pciFirstFrame<<4|byte((n>>8)&0x0F), byte(n&0xFF))
	first = append(first, payload[:6]...)
	frame := canbus.NewFrame(txID, txExtended, first)
	if err := e.port.Send(frame, e.timeout()); err != nil {
		return translatePortErr(err)
	}

	sent := 6
	seq := byte(1)
	blockSize, stMin, err := e.awaitFlowControl(rxID, rxExtended)
	if err != nil {
		return err
	}
	sinceFC := 0
	for sent < n {
		if blockSize > 0 && sinceFC == int(blockSize) {
			blockSize, stMin, err = e.awaitFlowControl(rxID, rxExtended)
			if err != nil {
				return err
			}
			sinceFC = 0
		}
		chunk := n - sent
		if chunk > 7 {
			chunk = 7
		}
		cf := make([]byte, 0, 8)
		cf = append(cf, pciConsecutiveFrame<<4|(seq&0x0F))
		cf = append(cf, payload[sent:sent+chunk]...)
		frame := canbus.NewFrame(txID, txExtended, cf)
		if err := e.port.Send(frame, e.timeout()); err != nil {
			return translatePortErr(err)
		}
		sent += chunk
		seq = (seq + 1) % 16
		sinceFC++
		if sent < n {
			sleepStMin(stMin)
		}
	}
	return nil
}

func (e *Engine) awaitFlowControl(rxID uint32, rxExtended bool) (blockSize byte, stMin byte, err error) {
	frame, ferr := e.port.Receive(e.timeout())
	if ferr != nil {
		return 0, 0, translatePortErr(ferr)
	}
	if frame.ID != rxID || frame.Extended != rxExtended {
		return 0, 0, newErr(KindUnexpectedFrame, fmt.Errorf("flow control from unexpected id 0x%X", frame.ID))
	}
	if frame.Len < 3 {
		return 0, 0, newErr(KindUnexpectedFrame, fmt.Errorf("flow control frame too short"))
	}
	pci := frame.Data[0] >> 4
	if pci != pciFlowControl {
		return 0, 0, newErr(KindUnexpectedFrame, fmt.Errorf("expected flow control, got pci 0x%X", pci))
	}
	return frame.Data[1], frame.Data[2], nil
}

// sleepStMin honors stMin milliseconds of separation between
// consecutive frames. Values 0x00-0x7F are milliseconds; any other
// encoding (sub-millisecond steps, reserved values) is treated as
// zero.
func sleepStMin(stMin byte) {
	if stMin <= 0x7F {
		time.Sleep(time.Duration(stMin) * time.Millisecond)
	}
}

// Receive reassembles one inbound transfer addressed to rxID.
func (e *Engine) Receive(txID uint32, txExtended bool, rxID uint32, rxExtended bool) ([]byte, error) {
	frame, err := e.port.Receive(e.timeout())
	if err != nil {
		return nil, translatePortErr(err)
	}
	if frame.ID != rxID || frame.Extended != rxExtended {
		return nil, newErr(KindUnexpectedFrame, fmt.Errorf("response from unexpected id 0x%X", frame.ID))
	}
	if frame.Len == 0 {
		return nil, newErr(KindMalformedLength, fmt.Errorf("empty frame"))
	}
	pci := frame.Data[0] >> 4
	switch pci {
	case pciSingleFrame:
		return e.receiveSingleFrame(frame)
	case pciFirstFrame:
		return e.receiveMultiFrame(txID, txExtended, rxID, rxExtended, frame)
	default:
		return nil, newErr(KindUnexpectedFrame, fmt.Errorf("expected SF or FF, got pci 0x%X", pci))
	}
}

func (e *Engine) receiveSingleFrame(frame canbus.Frame) ([]byte, error) {
	length := frame.Data[0] & 0x0F
	if length == 0 || int(length) > int(frame.Len)-1 {
		return nil, newErr(KindMalformedLength, fmt.Errorf("single frame length %d invalid", length))
	}
	out := make([]byte, length)
	copy(out, frame.Data[1:1+length])
	return out, nil
}

func (e *Engine) receiveMultiFrame(txID uint32, txExtended bool, rxID uint32, rxExtended bool, first canbus.Frame) ([]byte, error) {
	total := (uint16(first.Data[0]&0x0F) << 8) | uint16(first.Data[1])
	if total == 0 {
		return nil, newErr(KindMalformedLength, fmt.Errorf("first frame total length is zero"))
	}
	out := make([]byte, total)
	copy(out, first.Data[2:8])
	copied := 6

	fc := canbus.NewFrame(txID, txExtended, []byte{pciFlowControl << 4, 0x00, 0x00})
	if err := e.port.Send(fc, e.timeout()); err != nil {
		return nil, translatePortErr(err)
	}

	expectedSeq := byte(1)
	for copied < int(total) {
		frame, err := e.port.Receive(e.timeout())
		if err != nil {
			return nil, translatePortErr(err)
		}
		if frame.ID != rxID || frame.Extended != rxExtended || frame.Len == 0 {
			continue
		}
		pci := frame.Data[0] >> 4
		if pci != pciConsecutiveFrame {
			continue
		}
		seq := frame.Data[0] & 0x0F
		if seq != expectedSeq {
			return nil, newErr(KindSequenceError, fmt.Errorf("expected sequence %d, got %d", expectedSeq, seq))
		}
		chunk := int(total) - copied
		if chunk > 7 {
			chunk = 7
		}
		if int(frame.Len)-1 < chunk {
			chunk = int(frame.Len) - 1
		}
		copy(out[copied:], frame.Data[1:1+chunk])
		copied += chunk
		expectedSeq = (expectedSeq + 1) % 16
	}
	if copied < int(total) {
		return nil, newErr(KindBufferTooSmall, fmt.Errorf("reassembled %d of %d bytes", copied, total))
	}
	return out, nil
}

func translatePortErr(err error) error {
	if canbus.IsTimeout(err) {
		return newErr(KindTimeout, err)
	}
	return newErr(KindUnexpectedFrame, err)
}

// IsTimeout reports whether err is an isotp.Error of KindTimeout.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTimeout
}
