package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"scribe/audio"
	"scribe/notes"
	"scribe/patient"
	"scribe/session"
	"scribe/settings"
	"scribe/speech"
	"scribe/store"
)

// SessionState is the transient view of one dictation session. It is
// never persisted; credentials never appear here.
type SessionState struct {
	Transcript        string               `json:"transcript"`
	MedicalNotes      string               `json:"medicalNotes"`
	IsRecording       bool                 `json:"isRecording"`
	IsProcessing      bool                 `json:"isProcessing"`
	SelectedPatientID string               `json:"selectedPatientId"`
	Status            string               `json:"status"`
	Patients          []patient.Patient    `json:"patients"`
	Preferences       settings.Preferences `json:"preferences"`
	SpeechConfigured  bool                 `json:"speechConfigured"`
	OpenAIConfigured  bool                 `json:"openaiConfigured"`
}

// Options wires the collaborators for New.
type Options struct {
	Logger        *log.Logger
	Docs          store.Store
	Engine        speech.Engine
	Capture       audio.Capture
	CaptureConfig audio.Config

	// EngineFor, when set, overrides Engine and is consulted with the
	// stored recognizer name at every recording start, so a settings
	// change applies to the next session without a restart.
	EngineFor func(recognizer string) speech.Engine

	// Generator overrides the default Azure-backed generator.
	Generator *notes.Generator
}

// App owns the session state and dispatches every user action to the
// stores, the recorder, and the note generator. Every failure becomes a
// status string; nothing propagates to the surface as a fault.
type App struct {
	logger    *log.Logger
	patients  *patient.Store
	settings  *settings.Store
	recorder  *session.Recorder
	generator *notes.Generator

	mu           sync.Mutex
	medicalNotes string
	selectedID   string
	status       string
}

func New(opts Options) (*App, error) {
	patients, err := patient.NewStore(opts.Docs)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	prefs, err := settings.NewStore(opts.Docs)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	generator := opts.Generator
	if generator == nil {
		generator = notes.NewGenerator(opts.Logger)
	}

	a := &App{
		logger:    opts.Logger,
		patients:  patients,
		settings:  prefs,
		generator: generator,
		status:    "Ready.",
	}
	engine := opts.Engine
	if opts.EngineFor != nil {
		engine = recognizerDispatch{app: a, engineFor: opts.EngineFor}
	}
	a.recorder = session.NewRecorder(
		engine,
		opts.Capture,
		opts.CaptureConfig,
		a,
		opts.Logger,
	)
	return a, nil
}

// recognizerDispatch defers the backend choice until a recording
// actually starts, reading the recognizer from the settings document.
type recognizerDispatch struct {
	app       *App
	engineFor func(recognizer string) speech.Engine
}

func (d recognizerDispatch) Start(ctx context.Context, cfg speech.Config) (speech.Stream, error) {
	return d.engineFor(d.app.settings.API().Recognizer).Start(ctx, cfg)
}

// StateChanged implements session.Sink; recording transitions flow into
// the session status.
func (a *App) StateChanged(_ session.State, status string) {
	a.setStatus(status)
}

func (a *App) setStatus(status string) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
}

// Snapshot renders the current session state for the surface layer.
func (a *App) Snapshot() SessionState {
	a.mu.Lock()
	medicalNotes := a.medicalNotes
	selected := a.selectedID
	status := a.status
	a.mu.Unlock()

	api := a.settings.API()
	return SessionState{
		Transcript:        a.recorder.Transcript(),
		MedicalNotes:      medicalNotes,
		IsRecording:       a.recorder.State() == session.StateActive,
		IsProcessing:      a.generator.Processing(),
		SelectedPatientID: selected,
		Status:            status,
		Patients:          a.patients.List(),
		Preferences:       a.settings.Preferences(),
		SpeechConfigured:  api.SpeechConfigured(),
		OpenAIConfigured:  api.OpenAIConfigured(),
	}
}

func (a *App) StartRecording(ctx context.Context) error {
	api := a.settings.API()
	return a.recorder.Start(ctx, speech.Config{
		Key:      api.SpeechKey,
		Region:   api.SpeechRegion,
		Language: "en-US",
	})
}

func (a *App) StopRecording(ctx context.Context) error {
	return a.recorder.Stop(ctx)
}

// GenerateNotes runs the completion call synchronously. The recording
// stream is unaffected; stopping a recording never cancels generation.
func (a *App) GenerateNotes(ctx context.Context) error {
	var selected *patient.Patient
	a.mu.Lock()
	selectedID := a.selectedID
	a.mu.Unlock()
	if selectedID != "" {
		if p, ok := a.patients.Get(selectedID); ok {
			selected = &p
		}
	}

	result, err := a.generator.Generate(
		ctx,
		a.recorder.Transcript(),
		selected,
		a.settings.Preferences(),
		a.settings.API(),
	)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		var genErr *notes.Error
		if errors.As(err, &genErr) {
			a.status = genErr.Status()
			// A rejected concurrent call must not clobber the notes
			// the in-flight call is about to produce.
			if genErr.Kind != notes.KindBusy {
				a.medicalNotes = result
			}
		} else {
			a.status = fmt.Sprintf("Note generation failed: %v", err)
			a.medicalNotes = result
		}
		return err
	}

	a.medicalNotes = result
	a.status = "Medical notes generated."
	return nil
}

// SaveToPatient appends one visit built from the current transcript and
// notes to the selected patient.
func (a *App) SaveToPatient() error {
	a.mu.Lock()
	selectedID := a.selectedID
	medicalNotes := a.medicalNotes
	a.mu.Unlock()

	if selectedID == "" {
		a.setStatus("Select a patient before saving the visit.")
		return patient.ErrNotFound
	}
	if medicalNotes == "" || medicalNotes == notes.Placeholder {
		a.setStatus("Generate notes before saving the visit.")
		return errors.New("no notes to save")
	}

	_, err := a.patients.AppendVisit(selectedID, a.recorder.Transcript(), medicalNotes)
	if err != nil {
		a.setStatus(fmt.Sprintf("Could not save the visit: %v", err))
		return err
	}

	a.setStatus("Visit saved to the patient record.")
	return nil
}

// ClearSession wipes the transcript, the notes, and the status. The
// selected patient stays selected until explicitly changed.
func (a *App) ClearSession() {
	a.recorder.ClearTranscript()
	a.mu.Lock()
	a.medicalNotes = ""
	a.status = "Session cleared."
	a.mu.Unlock()
}

// SelectPatient selects by ID; an empty ID clears the selection.
func (a *App) SelectPatient(id string) error {
	if id != "" {
		if _, ok := a.patients.Get(id); !ok {
			a.setStatus("That patient no longer exists.")
			return patient.ErrNotFound
		}
	}

	a.mu.Lock()
	a.selectedID = id
	a.mu.Unlock()
	return nil
}

func (a *App) CreatePatient(name, dob, mrn, conditions string) (patient.Patient, error) {
	p, err := a.patients.Create(name, dob, mrn, conditions)
	if err != nil {
		if errors.Is(err, patient.ErrEmptyName) {
			a.setStatus("Patient name is required.")
		} else {
			a.setStatus(fmt.Sprintf("Could not add the patient: %v", err))
		}
		return patient.Patient{}, err
	}

	a.setStatus(fmt.Sprintf("Added patient %s.", p.Name))
	return p, nil
}

func (a *App) Patients() []patient.Patient {
	return a.patients.List()
}

func (a *App) UpdatePreferences(prefs settings.Preferences) error {
	if err := a.settings.SavePreferences(prefs); err != nil {
		a.setStatus(fmt.Sprintf("Could not save preferences: %v", err))
		return err
	}
	a.setStatus("Preferences saved.")
	return nil
}

func (a *App) UpdateSettings(api settings.API) error {
	if err := a.settings.SaveAPI(api); err != nil {
		a.setStatus("Could not save API settings.")
		return err
	}
	a.setStatus("API settings saved.")
	return nil
}

// Settings exposes the current API settings for command-line flows that
// need them directly.
func (a *App) Settings() settings.API {
	return a.settings.API()
}

func (a *App) Preferences() settings.Preferences {
	return a.settings.Preferences()
}
