package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/app"
	"scribe/audio"
	"scribe/notes"
	"scribe/settings"
	"scribe/speech"
	"scribe/store"
)

type testStream struct {
	events    chan speech.Event
	closeOnce sync.Once
}

func (s *testStream) SendAudio([]byte) error { return nil }

func (s *testStream) Events() <-chan speech.Event { return s.events }

func (s *testStream) Stop() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

type testEngine struct {
	stream *testStream
}

func (e *testEngine) Start(ctx context.Context, cfg speech.Config) (speech.Stream, error) {
	return e.stream, nil
}

type testMic struct {
	stopped chan struct{}
	once    sync.Once
}

func (m *testMic) Read(p []byte) (int, error) {
	<-m.stopped
	return 0, io.EOF
}

func (m *testMic) Stop() error {
	m.once.Do(func() { close(m.stopped) })
	return nil
}

type testCapture struct{}

func (testCapture) Start(ctx context.Context, cfg audio.Config) (audio.Session, error) {
	return &testMic{stopped: make(chan struct{})}, nil
}

type stubChat struct {
	response string
}

func (c *stubChat) CreateChatCompletion(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.response}},
		},
	}, nil
}

func newTestServer(t *testing.T, events ...speech.Event) *httptest.Server {
	t.Helper()

	logger := log.New(io.Discard)
	stream := &testStream{events: make(chan speech.Event, len(events)+1)}
	for _, ev := range events {
		stream.events <- ev
	}

	a, err := app.New(app.Options{
		Logger:  logger,
		Docs:    store.NewMemory(),
		Engine:  &testEngine{stream: stream},
		Capture: testCapture{},
		Generator: notes.NewGeneratorWith(logger, func(settings.API) notes.ChatClient {
			return &stubChat{response: "Chief Complaint: fatigue"}
		}),
	})
	require.NoError(t, err)

	require.NoError(t, a.UpdateSettings(settings.API{
		SpeechKey:        "sk",
		SpeechRegion:     "eastus",
		OpenAIEndpoint:   "https://example.openai.azure.com",
		OpenAIKey:        "ok",
		OpenAIDeployment: "gpt-4o",
		OpenAIAPIVersion: "2024-02-15-preview",
	}))

	srv := httptest.NewServer(NewHandler(a, logger).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) app.SessionState {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state app.SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func TestDashboardRenders(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Scribe")
	assert.Contains(t, string(body), "Generate Notes")
}

func TestStateEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var state app.SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.False(t, state.IsRecording)
	assert.True(t, state.SpeechConfigured)
}

func TestRecordingFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t,
		speech.Event{Text: "patient feels dizzy", Reason: speech.ReasonRecognized},
	)

	state := postJSON(t, srv.URL+"/api/recording/start", "{}")
	assert.True(t, state.IsRecording)

	state = postJSON(t, srv.URL+"/api/recording/stop", "{}")
	assert.False(t, state.IsRecording)
	assert.Equal(t, "patient feels dizzy", state.Transcript)

	state = postJSON(t, srv.URL+"/api/notes/generate", "{}")
	assert.Equal(t, "Chief Complaint: fatigue", state.MedicalNotes)
}

func TestCreateAndSelectPatientOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	state := postJSON(t, srv.URL+"/api/patients", `{"name":"Ada","mrn":"MRN-1"}`)
	require.Len(t, state.Patients, 1)
	// Creating selects the new patient.
	assert.Equal(t, state.Patients[0].ID, state.SelectedPatientID)

	state = postJSON(t, srv.URL+"/api/patients/select", `{"id":""}`)
	assert.Empty(t, state.SelectedPatientID)
}

func TestCreatePatientRejectsEmptyName(t *testing.T) {
	srv := newTestServer(t)

	state := postJSON(t, srv.URL+"/api/patients", `{"name":"  "}`)
	assert.Empty(t, state.Patients)
	assert.Equal(t, "Patient name is required.", state.Status)
}

func TestPreferencesUpdateOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	state := postJSON(t, srv.URL+"/api/preferences",
		`{"noteStyle":"concise","includeAssessment":false,"includePlan":true}`)
	assert.Equal(t, settings.StyleConcise, state.Preferences.NoteStyle)
	assert.False(t, state.Preferences.IncludeAssessment)
	assert.True(t, state.Preferences.IncludePlan)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/patients", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
