package app

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/config"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/db"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/engine"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/migrate"
)

// Env is everything a CLI command or server needs for one workspace: an
// open database, the config store, and an engine wired to both.
type Env struct {
	DB     *sql.DB
	Store  *config.Store
	Config *config.Config
	Engine engine.Engine
}

// Open prepares a workspace: ensures the data directory, opens and
// migrates the database, and loads the config (seeding defaults when the
// file is missing).
func Open(workspace string) (*Env, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	store := config.NewStore(config.Path(workspace))
	cfg, err := store.Load()
	if err != nil {
		conn.Close()
		return nil, err
	}
	store.Attempts = cfg.Settings.SaveAttempts
	store.Backoff = cfg.Settings.Backoff()
	logrus.WithFields(logrus.Fields{
		"db":     db.Path(workspace),
		"config": store.Path,
	}).Debug("workspace ready")
	return &Env{
		DB:     conn,
		Store:  store,
		Config: cfg,
		Engine: engine.New(conn, cfg),
	}, nil
}

// Close releases the workspace resources.
func (e *Env) Close() error {
	if e == nil || e.DB == nil {
		return nil
	}
	return e.DB.Close()
}
