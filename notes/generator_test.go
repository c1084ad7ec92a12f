package notes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/patient"
	"scribe/settings"
)

type fakeChat struct {
	mu       sync.Mutex
	calls    int
	lastReq  openai.ChatCompletionRequest
	response string
	err      error
	block    chan struct{}
}

func (c *fakeChat) CreateChatCompletion(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	c.calls++
	c.lastReq = req
	c.mu.Unlock()

	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.response}},
		},
	}, nil
}

func configured() settings.API {
	return settings.API{
		OpenAIEndpoint:   "https://example.openai.azure.com",
		OpenAIKey:        "key",
		OpenAIDeployment: "gpt-4o",
		OpenAIAPIVersion: "2024-02-15-preview",
	}
}

func newTestGenerator(chat *fakeChat) *Generator {
	return NewGeneratorWith(log.New(io.Discard), func(settings.API) ChatClient {
		return chat
	})
}

func TestGenerateSuccess(t *testing.T) {
	chat := &fakeChat{response: "Chief Complaint: headache"}
	g := newTestGenerator(chat)

	got, err := g.Generate(
		context.Background(),
		"patient reports headaches",
		nil,
		settings.DefaultPreferences(),
		configured(),
	)
	require.NoError(t, err)
	assert.Equal(t, "Chief Complaint: headache", got)
	assert.Equal(t, 1, chat.calls)
	assert.Equal(t, 1000, chat.lastReq.MaxTokens)
	assert.InDelta(t, 0.3, chat.lastReq.Temperature, 0.0001)
	require.Len(t, chat.lastReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, chat.lastReq.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, chat.lastReq.Messages[1].Role)
}

func TestGenerateEmptyTranscriptNeverCallsNetwork(t *testing.T) {
	chat := &fakeChat{}
	g := newTestGenerator(chat)

	got, err := g.Generate(context.Background(), "   ", nil, settings.DefaultPreferences(), configured())
	assert.Equal(t, Placeholder, got)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindValidation, genErr.Kind)
	assert.Zero(t, chat.calls)
}

func TestGenerateUnconfiguredNeverCallsNetwork(t *testing.T) {
	chat := &fakeChat{}
	g := newTestGenerator(chat)

	_, err := g.Generate(context.Background(), "something", nil, settings.DefaultPreferences(), settings.API{})

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindConfig, genErr.Kind)
	assert.Zero(t, chat.calls)
}

func TestGenerateClassifiesAPIErrors(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		wantKind Kind
	}{
		{"auth", http.StatusUnauthorized, KindAuth},
		{"deployment missing", http.StatusNotFound, KindNotFound},
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"server error", http.StatusInternalServerError, KindTransport},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chat := &fakeChat{err: &openai.APIError{HTTPStatusCode: tc.status}}
			g := newTestGenerator(chat)

			got, err := g.Generate(context.Background(), "transcript", nil, settings.DefaultPreferences(), configured())
			assert.Equal(t, Placeholder, got)

			var genErr *Error
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, tc.wantKind, genErr.Kind)
			assert.NotEmpty(t, genErr.Status())
		})
	}
}

func TestGenerateRateLimitStatusMessage(t *testing.T) {
	chat := &fakeChat{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}}
	g := newTestGenerator(chat)

	got, err := g.Generate(context.Background(), "transcript", nil, settings.DefaultPreferences(), configured())
	assert.Equal(t, Placeholder, got)

	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Status(), "Rate limited")
}

func TestGenerateSecondConcurrentCallIsRejected(t *testing.T) {
	chat := &fakeChat{response: "notes", block: make(chan struct{})}
	g := newTestGenerator(chat)

	firstDone := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background(), "transcript", nil, settings.DefaultPreferences(), configured())
		firstDone <- err
	}()

	// Wait until the first call is inside the client.
	require.Eventually(t, func() bool {
		chat.mu.Lock()
		defer chat.mu.Unlock()
		return chat.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := g.Generate(context.Background(), "transcript", nil, settings.DefaultPreferences(), configured())
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindBusy, genErr.Kind)

	close(chat.block)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, chat.calls)
}

func TestGenerateTransportError(t *testing.T) {
	chat := &fakeChat{err: errors.New("connection refused")}
	g := newTestGenerator(chat)

	_, err := g.Generate(context.Background(), "transcript", nil, settings.DefaultPreferences(), configured())
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, KindTransport, genErr.Kind)
	assert.Contains(t, genErr.Status(), "connection refused")
}

func TestGenerateIncludesPatientContext(t *testing.T) {
	chat := &fakeChat{response: "notes"}
	g := newTestGenerator(chat)

	p := &patient.Patient{
		Name:       "Ada",
		DOB:        "1990-03-14",
		MRN:        "MRN-1",
		Conditions: "hypertension",
		Visits: []patient.Visit{
			{Timestamp: "January 2, 2026 9:00 AM", Notes: strings.Repeat("x", 500)},
		},
	}

	_, err := g.Generate(context.Background(), "transcript", p, settings.DefaultPreferences(), configured())
	require.NoError(t, err)

	user := chat.lastReq.Messages[1].Content
	assert.Contains(t, user, "Patient Context:")
	assert.Contains(t, user, "Name: Ada")
	assert.Contains(t, user, "MRN: MRN-1")
	// Visit notes are truncated in the digest.
	assert.NotContains(t, user, strings.Repeat("x", 201))
	assert.Contains(t, user, strings.Repeat("x", 200))
}
