package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
)

// Store persists the config file safely under concurrent writers.
//
// A save serializes first, then acquires an exclusive whole-file lock
// (the maximum representable range, so no writer can ever hold less than
// the bytes being written), writes to a temporary file in the same
// directory, flushes it, and atomically renames it over the live path.
// A crash or a lost lock race leaves the previous valid file intact.
type Store struct {
	Path     string
	Attempts int
	Backoff  time.Duration
	Log      *logrus.Logger

	mu     sync.Mutex
	cached *Config
}

// NewStore returns a store for the given config path with default retry
// settings.
func NewStore(path string) *Store {
	return &Store{
		Path:     path,
		Attempts: 5,
		Backoff:  200 * time.Millisecond,
	}
}

func (s *Store) log() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

// Load returns the config, reading the file on first use or after a
// save invalidated the cache. A missing file yields the defaults.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}
	cfg, err := FromFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = Default()
		} else {
			return nil, err
		}
	}
	s.cached = cfg
	return cfg, nil
}

// Save writes cfg through the lock/temp/rename discipline. On failure a
// PersistenceError carries the attempt count, payload size and underlying
// error so callers can tell lock contention from disk trouble.
func (s *Store) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}

	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}
	lock := flock.New(s.lockPath())
	locked := false
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ok, err := lock.TryLock()
		if err != nil {
			lastErr = err
		} else if ok {
			locked = true
			break
		} else {
			lastErr = fmt.Errorf("config locked by another writer")
		}
		if attempt < attempts {
			s.log().WithFields(logrus.Fields{
				"path":    s.Path,
				"attempt": attempt,
				"size":    len(data),
			}).Warn("config lock busy, retrying")
			time.Sleep(s.Backoff)
		}
	}
	if !locked {
		return domain.PersistenceError{Path: s.Path, Attempts: attempts, Size: len(data), Err: lastErr}
	}
	defer lock.Unlock()

	if err := s.writeAtomic(data); err != nil {
		return domain.PersistenceError{Path: s.Path, Attempts: attempts, Size: len(data), Err: err}
	}

	s.mu.Lock()
	s.cached = nil // next Load observes the new content
	s.mu.Unlock()
	return nil
}

func (s *Store) lockPath() string {
	return s.Path + ".lock"
}

// writeAtomic writes data to a sibling temp file, flushes it to disk and
// renames it over the live path.
func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("rename over config: %w", err)
	}
	return nil
}
