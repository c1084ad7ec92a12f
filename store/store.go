package store

// Fixed document keys. Each key names one whole JSON document that is
// loaded once at startup and overwritten wholesale on every save.
const (
	KeyPatients    = "patients"
	KeyPreferences = "ai_preferences"
	KeySettings    = "api_settings"
)

// Store reads and writes whole JSON documents by key. Load reports
// whether a document existed; a missing document is not an error.
type Store interface {
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
}
