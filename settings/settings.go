package settings

import (
	"fmt"
	"strings"
	"sync"

	"scribe/store"
)

// API holds the credentials and endpoints for the two external
// services. The document is sensitive: values are sent only to their
// own service's auth mechanism and never logged.
type API struct {
	SpeechKey        string `json:"speechKey"`
	SpeechRegion     string `json:"speechRegion"`
	OpenAIEndpoint   string `json:"openaiEndpoint"`
	OpenAIKey        string `json:"openaiKey"`
	OpenAIDeployment string `json:"openaiDeployment"`
	OpenAIAPIVersion string `json:"openaiApiVersion"`

	// Recognizer selects the speech backend ("azure" or "deepgram").
	Recognizer string `json:"recognizer,omitempty"`
}

func (a API) SpeechConfigured() bool {
	return strings.TrimSpace(a.SpeechKey) != "" && strings.TrimSpace(a.SpeechRegion) != ""
}

func (a API) OpenAIConfigured() bool {
	return strings.TrimSpace(a.OpenAIEndpoint) != "" &&
		strings.TrimSpace(a.OpenAIKey) != "" &&
		strings.TrimSpace(a.OpenAIDeployment) != "" &&
		strings.TrimSpace(a.OpenAIAPIVersion) != ""
}

// NoteStyle selects how verbose generated notes should be.
type NoteStyle string

const (
	StyleStandard NoteStyle = "standard"
	StyleDetailed NoteStyle = "detailed"
	StyleConcise  NoteStyle = "concise"
)

// Preferences shapes note generation. Persisted as a whole document,
// last write wins.
type Preferences struct {
	NoteStyle          NoteStyle `json:"noteStyle"`
	IncludeAssessment  bool      `json:"includeAssessment"`
	IncludePlan        bool      `json:"includePlan"`
	CustomInstructions string    `json:"customInstructions"`
}

// DefaultPreferences matches a fresh install.
func DefaultPreferences() Preferences {
	return Preferences{
		NoteStyle:         StyleStandard,
		IncludeAssessment: true,
		IncludePlan:       true,
	}
}

func (p Preferences) Validate() error {
	switch p.NoteStyle {
	case StyleStandard, StyleDetailed, StyleConcise:
		return nil
	default:
		return fmt.Errorf("unknown note style %q", p.NoteStyle)
	}
}

// Store persists both singleton documents write-through. Reads and
// writes arrive from concurrent handler goroutines.
type Store struct {
	docs store.Store

	mu    sync.Mutex
	api   API
	prefs Preferences
}

func NewStore(docs store.Store) (*Store, error) {
	s := &Store{docs: docs, prefs: DefaultPreferences()}

	if _, err := docs.Load(store.KeySettings, &s.api); err != nil {
		return nil, err
	}
	loaded, err := docs.Load(store.KeyPreferences, &s.prefs)
	if err != nil {
		return nil, err
	}
	if loaded && s.prefs.Validate() != nil {
		s.prefs = DefaultPreferences()
	}
	return s, nil
}

func (s *Store) API() API {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api
}

func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

func (s *Store) SaveAPI(api API) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.docs.Save(store.KeySettings, api); err != nil {
		return err
	}
	s.api = api
	return nil
}

func (s *Store) SavePreferences(prefs Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.docs.Save(store.KeyPreferences, prefs); err != nil {
		return err
	}
	s.prefs = prefs
	return nil
}
