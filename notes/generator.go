package notes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"

	"scribe/patient"
	"scribe/settings"
)

// Generation constants. These are part of the service contract with
// downstream consumers of the notes and should not drift.
const (
	maxTokens   = 1000
	temperature = 0.3
)

// Placeholder replaces the notes text whenever generation fails, so
// stale notes are never shown as if they were fresh.
const Placeholder = "[Note generation failed. No notes were produced for this recording.]"

// Kind classifies a generation failure for status reporting.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindConfig      Kind = "configuration"
	KindBusy        Kind = "busy"
	KindAuth        Kind = "authentication"
	KindNotFound    Kind = "deployment_not_found"
	KindRateLimited Kind = "rate_limited"
	KindTransport   Kind = "transport"
)

// Error carries the failure classification alongside the cause.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Status renders the user-facing message for this failure.
func (e *Error) Status() string {
	switch e.Kind {
	case KindValidation:
		return "Record a conversation before generating notes."
	case KindConfig:
		return "Please configure OpenAI settings first."
	case KindBusy:
		return "Note generation is already in progress."
	case KindAuth:
		return "OpenAI authentication failed. Check your API key."
	case KindNotFound:
		return "Deployment not found. Check your endpoint and deployment name."
	case KindRateLimited:
		return "Rate limited by the completion service. Wait a moment and try again."
	default:
		return fmt.Sprintf("Note generation failed: %v", e.err)
	}
}

// ChatClient is the completion-service boundary. *openai.Client
// satisfies it; tests substitute a scripted double.
type ChatClient interface {
	CreateChatCompletion(
		ctx context.Context,
		req openai.ChatCompletionRequest,
	) (openai.ChatCompletionResponse, error)
}

// ClientFactory builds a client from the current API settings, so a
// settings change takes effect on the next generation call.
type ClientFactory func(api settings.API) ChatClient

// Generator turns a transcript into structured medical notes through an
// Azure OpenAI chat deployment. It holds no state beyond the in-flight
// flag; a second concurrent call is rejected, never queued.
type Generator struct {
	logger    *log.Logger
	inFlight  atomic.Bool
	newClient ClientFactory
}

func NewGenerator(logger *log.Logger) *Generator {
	return NewGeneratorWith(logger, AzureClient)
}

func NewGeneratorWith(logger *log.Logger, factory ClientFactory) *Generator {
	return &Generator{
		logger:    logger,
		newClient: factory,
	}
}

// AzureClient is the production factory. The deployment name doubles as
// the model: the Azure API routes by deployment, not by model name.
func AzureClient(api settings.API) ChatClient {
	cfg := openai.DefaultAzureConfig(api.OpenAIKey, api.OpenAIEndpoint)
	cfg.APIVersion = api.OpenAIAPIVersion
	deployment := api.OpenAIDeployment
	cfg.AzureModelMapperFunc = func(string) string { return deployment }
	return openai.NewClientWithConfig(cfg)
}

// Generate assembles the prompt and calls the completion service.
// Validation and configuration failures return before any network
// call. On any failure the returned notes are the Placeholder.
func (g *Generator) Generate(
	ctx context.Context,
	transcript string,
	p *patient.Patient,
	prefs settings.Preferences,
	api settings.API,
) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return Placeholder, &Error{Kind: KindValidation}
	}
	if !api.OpenAIConfigured() {
		return Placeholder, &Error{Kind: KindConfig}
	}
	if !g.inFlight.CompareAndSwap(false, true) {
		return Placeholder, &Error{Kind: KindBusy}
	}
	defer g.inFlight.Store(false)

	req := openai.ChatCompletionRequest{
		Model: api.OpenAIDeployment,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt(prefs),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: UserPrompt(transcript, p),
			},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	g.logger.Info("generating notes",
		"transcript_chars", len(transcript),
		"patient", p != nil,
	)

	resp, err := g.newClient(api).CreateChatCompletion(ctx, req)
	if err != nil {
		return Placeholder, classify(err)
	}
	if len(resp.Choices) == 0 {
		return Placeholder, &Error{Kind: KindTransport, err: errors.New("empty completion response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// Processing reports whether a generation call is in flight.
func (g *Generator) Processing() bool {
	return g.inFlight.Load()
}

func classify(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return &Error{Kind: KindAuth, err: err}
		case http.StatusNotFound:
			return &Error{Kind: KindNotFound, err: err}
		case http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimited, err: err}
		}
	}
	return &Error{Kind: KindTransport, err: err}
}
