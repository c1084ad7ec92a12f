package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"scribe/audio"
	"scribe/speech"
)

// State models the recording lifecycle.
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateActive               State = "recording"
	StateStopping             State = "stopping"
	StateError                State = "error"
)

var (
	// ErrNotIdle rejects Start while a session is in flight.
	ErrNotIdle = errors.New("recording session already in progress")
	// ErrNotConfigured rejects Start before speech credentials exist.
	ErrNotConfigured = errors.New("speech service not configured")
)

// Status strings surfaced to the user.
const (
	statusConfigure        = "Please configure speech settings first."
	statusRequesting       = "Requesting microphone access..."
	statusPermissionDenied = "Microphone permission denied."
	statusRecording        = "Recording... speak now."
	statusStopping         = "Stopping recording..."
	statusComplete         = "Recording complete."
	statusStopWarning      = "Recording stopped, but the session did not shut down cleanly."
	statusServiceEnded     = "Recording ended by the speech service."
)

// Sink receives state transitions as they happen, including ones the
// speech service initiates on its own. Implementations must not call
// back into the Recorder.
type Sink interface {
	StateChanged(state State, status string)
}

// NopSink discards notifications.
type NopSink struct{}

func (NopSink) StateChanged(State, string) {}

// Recorder drives one microphone capture and recognition stream at a
// time. All event-sourced transcript appends happen in delivery order.
type Recorder struct {
	engine     speech.Engine
	capture    audio.Capture
	captureCfg audio.Config
	sink       Sink
	logger     *log.Logger

	mu         sync.Mutex
	state      State
	status     string
	transcript strings.Builder
	stream     speech.Stream
	mic        audio.Session
	eventsDone chan struct{}
}

func NewRecorder(
	engine speech.Engine,
	capture audio.Capture,
	captureCfg audio.Config,
	sink Sink,
	logger *log.Logger,
) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	return &Recorder{
		engine:     engine,
		capture:    capture,
		captureCfg: captureCfg,
		sink:       sink,
		logger:     logger,
		state:      StateIdle,
	}
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Recorder) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript.String()
}

// ClearTranscript resets the accumulated transcript. Recording state is
// unaffected.
func (r *Recorder) ClearTranscript() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript.Reset()
}

// Start opens the microphone and the recognition stream. Valid from
// Idle; a prior error state may also be retried. Any other state is a
// defensive no-op.
func (r *Recorder) Start(ctx context.Context, cfg speech.Config) error {
	r.mu.Lock()
	switch r.state {
	case StateIdle, StateError:
	default:
		r.mu.Unlock()
		return ErrNotIdle
	}

	if strings.TrimSpace(cfg.Key) == "" || strings.TrimSpace(cfg.Region) == "" {
		r.state = StateError
		r.status = statusConfigure
		r.mu.Unlock()
		r.sink.StateChanged(StateError, statusConfigure)
		return ErrNotConfigured
	}

	r.state = StateRequestingPermission
	r.status = statusRequesting
	r.mu.Unlock()
	r.sink.StateChanged(StateRequestingPermission, statusRequesting)

	mic, err := r.capture.Start(ctx, r.captureCfg)
	if err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) {
			r.fail(statusPermissionDenied)
		} else {
			r.fail(fmt.Sprintf("Could not open the microphone: %v", err))
		}
		return err
	}

	stream, err := r.engine.Start(ctx, cfg)
	if err != nil {
		_ = mic.Stop()
		r.fail(startFailureStatus(err))
		return err
	}

	eventsDone := make(chan struct{})

	r.mu.Lock()
	r.stream = stream
	r.mic = mic
	r.eventsDone = eventsDone
	r.state = StateActive
	r.status = statusRecording
	r.mu.Unlock()
	r.sink.StateChanged(StateActive, statusRecording)

	go r.pump(mic, stream)
	go r.consume(stream, eventsDone)

	r.logger.Info("recording started", "language", cfg.Language)
	return nil
}

// Stop ends the active session. From Idle it is an idempotent success
// that never touches the engine handle. A stop failure still forces
// Idle so the session can never get stuck.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateIdle, StateError:
		r.state = StateIdle
		r.status = statusComplete
		r.mu.Unlock()
		r.sink.StateChanged(StateIdle, statusComplete)
		return nil
	case StateRequestingPermission, StateStopping:
		r.mu.Unlock()
		return nil
	}

	stream := r.stream
	mic := r.mic
	eventsDone := r.eventsDone
	r.state = StateStopping
	r.status = statusStopping
	r.mu.Unlock()
	r.sink.StateChanged(StateStopping, statusStopping)

	var failed bool
	if mic != nil {
		if err := mic.Stop(); err != nil {
			r.logger.Warn("microphone stop failed", "error", err)
			failed = true
		}
	}
	if stream != nil {
		if err := stream.Stop(); err != nil {
			r.logger.Warn("recognition stop failed", "error", err)
			failed = true
		}
	}
	if eventsDone != nil {
		<-eventsDone
	}

	status := statusComplete
	if failed {
		status = statusStopWarning
	}

	r.mu.Lock()
	r.stream = nil
	r.mic = nil
	r.eventsDone = nil
	r.state = StateIdle
	r.status = status
	r.mu.Unlock()
	r.sink.StateChanged(StateIdle, status)

	r.logger.Info("recording stopped")
	return nil
}

func (r *Recorder) fail(status string) {
	r.mu.Lock()
	r.state = StateError
	r.status = status
	r.mu.Unlock()
	r.sink.StateChanged(StateError, status)
}

func startFailureStatus(err error) string {
	switch {
	case errors.Is(err, speech.ErrInvalidCredential):
		return "Speech service rejected the key. Check your speech settings."
	case errors.Is(err, speech.ErrQuotaExceeded), errors.Is(err, speech.ErrBadRegion):
		return "Speech service quota exceeded or region mismatch."
	default:
		return fmt.Sprintf("Could not start recognition: %v", err)
	}
}

// pump copies captured audio into the recognition stream until either
// side ends.
func (r *Recorder) pump(mic audio.Session, stream speech.Stream) {
	buf := make([]byte, 3200)
	for {
		n, err := mic.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				r.logger.Debug("audio send ended", "error", sendErr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// consume applies recognition events in delivery order. Interim text
// and finalized phrases both append; no-match results are discarded
// without surfacing anything. A closed event channel while still
// Active means the service ended the session itself.
func (r *Recorder) consume(stream speech.Stream, done chan struct{}) {
	defer close(done)

	for ev := range stream.Events() {
		switch ev.Reason {
		case speech.ReasonRecognizing:
			r.appendTranscript(ev.Text)
		case speech.ReasonRecognized:
			r.appendTranscript(ev.Text)
			r.logger.Info("hear", "txt", ev.Text)
		default:
		}
	}

	r.mu.Lock()
	if r.stream != stream || r.state != StateActive {
		r.mu.Unlock()
		return
	}
	mic := r.mic
	r.stream = nil
	r.mic = nil
	r.eventsDone = nil
	r.state = StateIdle
	r.status = statusServiceEnded
	r.mu.Unlock()
	r.sink.StateChanged(StateIdle, statusServiceEnded)

	if mic != nil {
		_ = mic.Stop()
	}
	r.logger.Info("recording ended by service")
}

func (r *Recorder) appendTranscript(text string) {
	if text == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transcript.Len() > 0 {
		r.transcript.WriteString(" ")
	}
	r.transcript.WriteString(text)
}
