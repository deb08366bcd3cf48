package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/config"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
)

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	return config.NewStore(config.Path(t.TempDir()))
}

func TestStoreLoadMissingFileDefaults(t *testing.T) {
	store := newTestStore(t)
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ColumnMappings.Orders.OrderID == "" {
		t.Fatalf("defaults not applied: %+v", cfg.ColumnMappings)
	}
	if _, err := os.Stat(store.Path); !os.IsNotExist(err) {
		t.Fatalf("load must not create the file")
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	cfg := config.Default()
	cfg.Settings.RepeatNote = "seen before"
	if err := store.Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Settings.RepeatNote != "seen before" {
		t.Fatalf("round trip lost settings: %+v", got.Settings)
	}
	if len(got.Rules) != len(cfg.Rules) {
		t.Fatalf("round trip lost rules: %d vs %d", len(got.Rules), len(cfg.Rules))
	}
}

func TestStoreSaveInvalidatesCache(t *testing.T) {
	store := newTestStore(t)
	first, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	updated := config.Default()
	updated.Settings.RepeatNote = "changed"
	if err := store.Save(updated); err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := store.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if second.Settings.RepeatNote != "changed" {
		t.Fatalf("stale cache served after save: %q", second.Settings.RepeatNote)
	}
	if first.Settings.RepeatNote == "changed" {
		t.Fatalf("previously returned config mutated in place")
	}
}

func TestStoreSaveRejectsInvalidConfig(t *testing.T) {
	store := newTestStore(t)
	good := config.Default()
	if err := store.Save(good); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	bad := config.Default()
	bad.ColumnMappings.Orders.SKU = ""
	if err := store.Save(bad); err == nil {
		t.Fatalf("invalid config accepted")
	}
	// The previous valid file must be intact.
	got, err := config.FromFile(store.Path)
	if err != nil {
		t.Fatalf("reload file: %v", err)
	}
	if got.ColumnMappings.Orders.SKU == "" {
		t.Fatalf("rejected save clobbered the file")
	}
}

func TestStoreSaveLockContention(t *testing.T) {
	store := newTestStore(t)
	store.Attempts = 2
	store.Backoff = 5 * time.Millisecond
	if err := os.MkdirAll(filepath.Dir(store.Path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	holder := flock.New(store.Path + ".lock")
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("seed lock: %v", err)
	}
	defer holder.Unlock()

	err = store.Save(config.Default())
	var pe domain.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if pe.Attempts != 2 || pe.Path != store.Path || pe.Size == 0 {
		t.Fatalf("diagnostics incomplete: %+v", pe)
	}
	if _, statErr := os.Stat(store.Path); !os.IsNotExist(statErr) {
		t.Fatalf("failed save must not write the file")
	}
}

func TestStoreConcurrentSaves(t *testing.T) {
	store := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cfg := config.Default()
			cfg.Settings.SaveAttempts = n + 1
			// Contention may exhaust retries; that is an accepted
			// outcome, the file just has to stay valid.
			_ = store.Save(cfg)
		}(i)
	}
	wg.Wait()
	got, err := config.FromFile(store.Path)
	if err != nil {
		t.Fatalf("file corrupt after concurrent saves: %v", err)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("file invalid after concurrent saves: %v", err)
	}
}
