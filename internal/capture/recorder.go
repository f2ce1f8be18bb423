package capture

import (
	"fmt"
	"sync"
)

// Recorder handles the recording of frames to a session
type Recorder struct {
	session *Session
	running bool
	mu      sync.Mutex
}

// NewRecorder creates a new recorder instance
func NewRecorder(vehicleInfo string) *Recorder {
	return &Recorder{
		session: NewSession(vehicleInfo),
	}
}

// Start begins the recording session
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("recorder is already running")
	}

	r.running = true
	return nil
}

// Stop ends the recording session and saves the data
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return fmt.Errorf("recorder is not running")
	}

	r.running = false
	return r.session.Save()
}

// Record adds a frame to the current session
func (r *Recorder) Record(frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return fmt.Errorf("recorder is not running")
	}

	r.session.AddFrame(frame)
	return nil
}

// SetMetadata adds metadata to the session
func (r *Recorder) SetMetadata(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.SetMetadata(key, value)
}

// IsRunning returns the current recording state
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
