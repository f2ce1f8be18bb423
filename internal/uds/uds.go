// Package uds implements the UDS (ISO 14229) request layer over an
// ISO-TP engine: issue a diagnostic request and hand back the raw
// response bytes. Parsing the positive-response envelope belongs to
// the signal decoder, not here.
package uds

import "evtelemetry/internal/isotp"

// ReadDataByIdentifier and WriteDataByIdentifier service IDs.
const (
	ServiceReadDataByIdentifier  byte = 0x22
	ServiceWriteDataByIdentifier byte = 0x2E
)

// Addressing carries the CAN id pair for one ECU conversation.
type Addressing struct {
	TxID       uint32
	TxExtended bool
	RxID       uint32
	RxExtended bool
}

// Layer dispatches UDS requests through an ISO-TP engine.
type Layer struct {
	engine *isotp.Engine
}

// NewLayer builds a UDS layer over the given ISO-TP engine.
func NewLayer(engine *isotp.Engine) *Layer {
	return &Layer{engine: engine}
}

// Request sends a full UDS request payload (e.g. 0x22 DID_HI DID_LO)
// and returns the raw response bytes.
func (l *Layer) Request(addr Addressing, requestBytes []byte) ([]byte, error) {
	if err := l.engine.Send(addr.TxID, addr.TxExtended, addr.RxID, addr.RxExtended, requestBytes); err != nil {
		return nil, err
	}
	return l.engine.Receive(addr.TxID, addr.TxExtended, addr.RxID, addr.RxExtended)
}

// WriteDataByIdentifier builds and issues a 0x2E request: byte 0 is
// the service id, bytes 1-2 are the DID big-endian, followed by data.
func (l *Layer) WriteDataByIdentifier(addr Addressing, did uint16, data []byte) ([]byte, error) {
	req := make([]byte, 0, 3+len(data))
	req = append(req, ServiceWriteDataByIdentifier, byte(did>>8), byte(did&0xFF))
	req = append(req, data...)
	return l.Request(addr, req)
}
