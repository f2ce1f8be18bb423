package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"evtelemetry/internal/canbus"
)

// LoadSession reads a session file written by Session.Save.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	s.filePath = path

	return &s, nil
}

// Replayer re-drives a captured session's frames, preserving
// their original inter-frame timing (scaled by Speed), so the engine
// sitting behind a canbus.Port sees the same traffic it saw live.
type Replayer struct {
	session *Session
	speed   float64
}

// NewReplayer creates a replayer over session at real-time speed.
func NewReplayer(session *Session) *Replayer {
	return &Replayer{session: session, speed: 1.0}
}

// SetSpeed sets the replay speed multiplier; 2.0 replays twice as
// fast, 0.5 replays at half speed. Values <= 0 disable the inter-frame
// delay entirely (as fast as the consumer can keep up).
func (r *Replayer) SetSpeed(speed float64) {
	r.speed = speed
}

// Play walks all of the session's frames (CAN and telemetry alike) in
// order, invoking fn for each
// and sleeping between them according to their recorded timestamps and
// the configured speed.
func (r *Replayer) Play(fn func(Frame)) {
	var lastTime time.Time
	for _, frame := range r.session.Frames {
		if !lastTime.IsZero() && r.speed > 0 {
			gap := frame.Timestamp.Sub(lastTime)
			if gap > 0 {
				time.Sleep(time.Duration(float64(gap) / r.speed))
			}
		}
		fn(frame)
		lastTime = frame.Timestamp
	}
}

// PlayToPort replays the session's CAN frames onto port, reconstructing
// a canbus.Frame from each captured Frame's ID/Data. Non-CAN frames
// (e.g. FrameTypeTelemetry snapshots) are skipped. This is the
// regression-testing harness for re-driving the ISO-TP engine offline.
func (r *Replayer) PlayToPort(port canbus.Port, sendTimeout time.Duration) error {
	var playErr error
	r.Play(func(f Frame) {
		if playErr != nil || f.Type != "CAN" {
			return
		}
		cf := canbus.NewFrame(f.ID, f.ID > 0x7FF, f.Data)
		if err := port.Send(cf, sendTimeout); err != nil {
			playErr = fmt.Errorf("replay: sending frame 0x%X: %w", f.ID, err)
		}
	})
	return playErr
}
