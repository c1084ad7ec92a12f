package store

import (
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
)

// Fallback wraps a Store so that persistence failures degrade to
// in-memory operation for the rest of the run instead of blocking the
// feature. The first failure logs a warning; later ones stay quiet.
type Fallback struct {
	backend Store
	logger  *log.Logger

	mu       sync.Mutex
	degraded bool
	warned   bool
	memory   map[string][]byte
}

func NewFallback(backend Store, logger *log.Logger) *Fallback {
	return &Fallback{
		backend: backend,
		logger:  logger,
		memory:  make(map[string][]byte),
	}
}

// Degraded reports whether a persistence failure has switched this
// store to in-memory operation.
func (f *Fallback) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Fallback) Load(key string, v any) (bool, error) {
	f.mu.Lock()
	degraded := f.degraded
	f.mu.Unlock()

	if !degraded {
		ok, err := f.backend.Load(key, v)
		if err == nil {
			return ok, nil
		}
		f.degrade("load", key, err)
	}

	f.mu.Lock()
	data, ok := f.memory[key]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (f *Fallback) Save(key string, v any) error {
	f.mu.Lock()
	degraded := f.degraded
	f.mu.Unlock()

	if !degraded {
		if err := f.backend.Save(key, v); err != nil {
			f.degrade("save", key, err)
		} else {
			return nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.memory[key] = data
	f.mu.Unlock()
	return nil
}

func (f *Fallback) degrade(op, key string, err error) {
	f.mu.Lock()
	f.degraded = true
	warned := f.warned
	f.warned = true
	f.mu.Unlock()

	if !warned && f.logger != nil {
		f.logger.Warn(
			"storage unavailable, continuing in memory only",
			"op", op,
			"key", key,
			"error", err,
		)
	}
}
