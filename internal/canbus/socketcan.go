package canbus

import (
	"fmt"
	"time"

	"github.com/brutella/can"
)

// effFlag is SocketCAN's extended-frame-format bit, OR'd into the raw
// 32-bit CAN ID field to distinguish 29-bit from 11-bit addressing.
const effFlag uint32 = 0x80000000

// SocketCANPort drives a real CAN interface via github.com/brutella/can.
type SocketCANPort struct {
	ifaceName string
	bus       *can.Bus
	frames    chan can.Frame
}

// NewSocketCANPort builds a port bound to the named Linux network
// interface (e.g. "can0").
func NewSocketCANPort(ifaceName string) *SocketCANPort {
	return &SocketCANPort{ifaceName: ifaceName}
}

type frameHandler struct {
	out chan<- can.Frame
}

func (h frameHandler) Handle(frame can.Frame) {
	select {
	case h.out <- frame:
	default:
		// drop-newest backpressure: a full channel means the core isn't
		// keeping up; the incoming frame is dropped rather than blocking
		// the bus's delivery goroutine.
	}
}

func (p *SocketCANPort) Start(baud int) error {
	if p.bus != nil {
		return newError("start", KindBusError, fmt.Errorf("port already started"))
	}
	bus, err := can.NewBusForInterfaceWithName(p.ifaceName)
	if err != nil {
		return newError("start", KindBusError, err)
	}
	p.bus = bus
	p.frames = make(chan can.Frame, 256)
	bus.Subscribe(frameHandler{out: p.frames})
	go func() {
		_ = bus.ConnectAndPublish()
	}()
	return nil
}

func (p *SocketCANPort) Stop() error {
	if p.bus == nil {
		return nil
	}
	p.bus.Disconnect()
	p.bus = nil
	p.frames = nil
	return nil
}

func (p *SocketCANPort) Send(f Frame, timeout time.Duration) error {
	if p.bus == nil {
		return newError("send", KindNotStarted, nil)
	}
	id := f.ID
	if f.Extended {
		id |= effFlag
	}
	cf := can.Frame{
		ID:     id,
		Length: f.Len,
		Data:   f.Data,
	}
	if err := p.bus.Publish(cf); err != nil {
		return newError("send", KindBusError, err)
	}
	return nil
}

func (p *SocketCANPort) Receive(timeout time.Duration) (Frame, error) {
	if p.bus == nil {
		return Frame{}, newError("receive", KindNotStarted, nil)
	}
	select {
	case cf := <-p.frames:
		return fromCANFrame(cf), nil
	case <-time.After(timeout):
		return Frame{}, newError("receive", KindTimeout, nil)
	}
}

func fromCANFrame(cf can.Frame) Frame {
	extended := cf.ID&effFlag != 0
	id := cf.ID &^ effFlag
	f := Frame{ID: id, Extended: extended, Len: cf.Length}
	copy(f.Data[:], cf.Data[:])
	return f
}
