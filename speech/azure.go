package speech

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"scribe/etc"
)

const (
	azureURLTemplate = "wss://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1?language=%s&format=simple"

	pathSpeechConfig     = "speech.config"
	pathAudio            = "audio"
	pathTurnStart        = "turn.start"
	pathTurnEnd          = "turn.end"
	pathSpeechHypothesis = "speech.hypothesis"
	pathSpeechPhrase     = "speech.phrase"
	pathSpeechEnd        = "speech.endDetected"
)

// AzureEngine streams microphone audio to the Azure Speech continuous
// recognition endpoint over a websocket.
type AzureEngine struct {
	logger *log.Logger
	dialer *websocket.Dialer
}

func NewAzureEngine(logger *log.Logger) *AzureEngine {
	return &AzureEngine{
		logger: logger,
		dialer: websocket.DefaultDialer,
	}
}

func (e *AzureEngine) Start(ctx context.Context, cfg Config) (Stream, error) {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}

	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", cfg.Key)
	header.Set("X-ConnectionId", etc.NewFreshID())

	url := fmt.Sprintf(azureURLTemplate, cfg.Region, cfg.Language)
	conn, resp, err := e.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, classifyDialError(err, resp)
	}

	s := &azureStream{
		conn:      conn,
		logger:    e.logger,
		requestID: strings.ReplaceAll(etc.NewFreshID(), "-", ""),
		events:    make(chan Event, 16),
	}

	if err := s.sendSpeechConfig(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send speech.config: %w", err)
	}

	go s.readLoop()

	return s, nil
}

func classifyDialError(err error, resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("connect to speech service: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidCredential
	case http.StatusNotFound:
		return ErrBadRegion
	case http.StatusTooManyRequests:
		return ErrQuotaExceeded
	default:
		return fmt.Errorf("connect to speech service (HTTP %d): %w", resp.StatusCode, err)
	}
}

type azureStream struct {
	conn      *websocket.Conn
	logger    *log.Logger
	requestID string
	events    chan Event

	writeMu  sync.Mutex
	stopOnce sync.Once
}

func (s *azureStream) Events() <-chan Event {
	return s.events
}

func (s *azureStream) sendSpeechConfig() error {
	body, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"system": map[string]string{"name": "scribe"},
		},
	})
	if err != nil {
		return err
	}
	return s.writeText(pathSpeechConfig, body)
}

func (s *azureStream) writeText(path string, body []byte) error {
	var b strings.Builder
	b.WriteString("Path: " + path + "\r\n")
	b.WriteString("X-RequestId: " + s.requestID + "\r\n")
	b.WriteString("X-Timestamp: " + wireTimestamp() + "\r\n")
	b.WriteString("Content-Type: application/json\r\n")
	b.WriteString("\r\n")
	b.Write(body)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(b.String()))
}

// SendAudio frames one chunk of PCM audio. Binary messages carry a
// two-byte header-length prefix before the header block.
func (s *azureStream) SendAudio(data []byte) error {
	headers := "Path: " + pathAudio + "\r\n" +
		"X-RequestId: " + s.requestID + "\r\n" +
		"X-Timestamp: " + wireTimestamp() + "\r\n" +
		"Content-Type: audio/x-wav\r\n"

	frame := make([]byte, 2+len(headers)+len(data))
	binary.BigEndian.PutUint16(frame[:2], uint16(len(headers)))
	copy(frame[2:], headers)
	copy(frame[2+len(headers):], data)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Stop ends the stream. A zero-length audio frame tells the service the
// utterance is over; the connection close terminates the read loop.
func (s *azureStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if sendErr := s.SendAudio(nil); sendErr != nil {
			err = sendErr
		}

		s.writeMu.Lock()
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		s.writeMu.Unlock()

		if closeErr := s.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

func (s *azureStream) readLoop() {
	defer close(s.events)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("speech socket closed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		path, body, err := splitWireMessage(data)
		if err != nil {
			s.logger.Debug("unparseable speech message", "error", err)
			continue
		}

		switch path {
		case pathTurnStart, pathSpeechEnd:
			// Lifecycle markers, no transcript payload.
		case pathTurnEnd:
			// The service cycles turns during continuous recognition;
			// the stream itself stays open.
		case pathSpeechHypothesis:
			var hyp struct {
				Text string `json:"Text"`
			}
			if err := json.Unmarshal(body, &hyp); err != nil {
				continue
			}
			if hyp.Text != "" {
				s.events <- Event{Text: hyp.Text, Reason: ReasonRecognizing}
			}
		case pathSpeechPhrase:
			ev, ok := phraseEvent(body)
			if !ok {
				continue
			}
			s.events <- ev
			if ev.Reason == ReasonSessionStopped {
				return
			}
		}
	}
}

// phraseEvent maps a speech.phrase payload onto an Event. The second
// return is false for payloads that carry nothing worth reporting.
func phraseEvent(body []byte) (Event, bool) {
	var phrase struct {
		RecognitionStatus string `json:"RecognitionStatus"`
		DisplayText       string `json:"DisplayText"`
	}
	if err := json.Unmarshal(body, &phrase); err != nil {
		return Event{}, false
	}

	switch phrase.RecognitionStatus {
	case "Success":
		return Event{Text: phrase.DisplayText, Reason: ReasonRecognized}, true
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		return Event{Reason: ReasonNoMatch}, true
	case "EndOfDictation", "Canceled":
		return Event{Reason: ReasonSessionStopped}, true
	default:
		return Event{}, false
	}
}

// splitWireMessage splits a text frame into its Path header value and
// JSON body. Headers and body are separated by a blank line.
func splitWireMessage(data []byte) (string, []byte, error) {
	text := string(data)
	sep := strings.Index(text, "\r\n\r\n")
	if sep < 0 {
		return "", nil, fmt.Errorf("missing header separator")
	}

	var path string
	for _, line := range strings.Split(text[:sep], "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Path") {
			path = strings.TrimSpace(value)
		}
	}
	if path == "" {
		return "", nil, fmt.Errorf("missing Path header")
	}

	return path, []byte(text[sep+4:]), nil
}

func wireTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
