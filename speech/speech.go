package speech

import (
	"context"
	"errors"
)

// Reason classifies a recognition event the way the service reports it.
type Reason string

const (
	// ReasonRecognizing is an interim hypothesis; the text may still change.
	ReasonRecognizing Reason = "recognizing"
	// ReasonRecognized is a finalized phrase.
	ReasonRecognized Reason = "recognized_speech"
	// ReasonNoMatch means the service heard audio but produced no speech.
	ReasonNoMatch Reason = "no_match"
	// ReasonSessionStopped means the service ended the session on its own,
	// for example after a silence timeout.
	ReasonSessionStopped Reason = "session_stopped"
)

// Event is one recognition result from the stream.
type Event struct {
	Text   string
	Reason Reason
}

// Config constructs a recognition stream.
type Config struct {
	Key      string
	Region   string
	Language string
}

// Stream is a live continuous-recognition session. Events is closed
// when the stream ends, whether by Stop or by the service.
type Stream interface {
	SendAudio(data []byte) error
	Events() <-chan Event
	Stop() error
}

// Engine opens recognition streams against a speech service.
type Engine interface {
	Start(ctx context.Context, cfg Config) (Stream, error)
}

// Start failures the session layer turns into distinct user messages.
var (
	ErrInvalidCredential = errors.New("speech service rejected the credential")
	ErrQuotaExceeded     = errors.New("speech service quota exceeded")
	ErrBadRegion         = errors.New("speech service region mismatch")
)
