package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
)

// DeepgramEngine is the alternate recognizer backend. Deepgram has no
// region concept; only the key is used from Config.
type DeepgramEngine struct {
	logger *log.Logger
}

func NewDeepgramEngine(logger *log.Logger) *DeepgramEngine {
	return &DeepgramEngine{logger: logger}
}

func (e *DeepgramEngine) Start(ctx context.Context, cfg Config) (Stream, error) {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}

	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          "nova-2",
		Language:       cfg.Language,
		Punctuate:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     16000,
		SmartFormat:    true,
		InterimResults: true,
	}

	s := &deepgramStream{
		logger: e.logger,
		events: make(chan Event, 16),
	}

	client, err := listen.NewWebSocket(ctx, cfg.Key, cOptions, tOptions, s)
	if err != nil {
		return nil, fmt.Errorf("create live transcription connection: %w", err)
	}
	s.client = client

	if !client.Connect() {
		return nil, ErrInvalidCredential
	}

	return s, nil
}

type deepgramStream struct {
	client *listen.LiveClient
	logger *log.Logger

	// The SDK delivers callbacks from its own read goroutine, which can
	// still be running when Stop closes the channel. Sends and the close
	// share the mutex so a late Message is dropped instead of panicking.
	mu     sync.Mutex
	events chan Event
	closed bool
}

func (s *deepgramStream) Events() <-chan Event {
	return s.events
}

func (s *deepgramStream) SendAudio(data []byte) error {
	return s.client.WriteBinary(data)
}

func (s *deepgramStream) Stop() error {
	s.client.Stop()
	s.closeEvents()
	return nil
}

func (s *deepgramStream) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

func (s *deepgramStream) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// Callback handlers below implement the SDK's live message interface.

func (s *deepgramStream) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	transcript := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if transcript == "" {
		return nil
	}

	if mr.IsFinal {
		s.emit(Event{Text: transcript, Reason: ReasonRecognized})
	} else {
		s.emit(Event{Text: transcript, Reason: ReasonRecognizing})
	}
	return nil
}

func (s *deepgramStream) Open(ocr *api.OpenResponse) error {
	s.logger.Debug("open", "kind", "deepgram")
	return nil
}

func (s *deepgramStream) Close(ocr *api.CloseResponse) error {
	s.logger.Debug("closed", "reason", ocr.Type)
	s.closeEvents()
	return nil
}

func (s *deepgramStream) Metadata(md *api.MetadataResponse) error {
	return nil
}

func (s *deepgramStream) SpeechStarted(ssr *api.SpeechStartedResponse) error {
	return nil
}

func (s *deepgramStream) UtteranceEnd(ur *api.UtteranceEndResponse) error {
	return nil
}

func (s *deepgramStream) Error(er *api.ErrorResponse) error {
	s.logger.Error("deepgram error", "type", er.Type, "description", er.Description)
	return nil
}

func (s *deepgramStream) UnhandledEvent(byData []byte) error {
	s.logger.Warn("unhandled event", "data", string(byData))
	return nil
}
