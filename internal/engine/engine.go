// Package engine runs stock allocation simulations, applies the rule
// set, and keeps the run history and audit log consistent.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/config"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/events"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/repo"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/rules"
)

var ErrOrderNotFound = errors.New("order not found")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Log    *logrus.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Log:    logrus.StandardLogger(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

// RunSimulation executes a full allocation run: load cross-run history,
// simulate, apply the configured rule set, persist the run, and record
// fulfillment outcomes for the next run's repeat detection.
func (e Engine) RunSimulation(ctx context.Context, lines []domain.OrderLine, stock []domain.StockRecord, actorID string) (domain.Run, error) {
	if e.Config == nil {
		return domain.Run{}, errors.New("config not loaded")
	}
	history, err := e.Repo.ListHistory(ctx)
	if err != nil {
		return domain.Run{}, fmt.Errorf("load history: %w", err)
	}

	run := Simulate(lines, stock, history, e.Config.Settings.RepeatNote)
	run.Lines, err = rules.Apply(run.Lines, e.Config.Rules, e.Config.Settings.RequireKnownFields)
	if err != nil {
		return domain.Run{}, err
	}
	run.ID = uuid.New().String()
	run.CreatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Run{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRun(ctx, tx, *run); err != nil {
		return domain.Run{}, err
	}
	if err := e.recordHistory(ctx, tx, run); err != nil {
		return domain.Run{}, err
	}
	if err := e.Events.Append(ctx, tx, "run.completed", run.ID, "run", run.ID, actorID, events.EventPayload{
		"orders":        run.Stats.TotalOrders,
		"fulfillable":   run.Stats.FulfillableOrders,
		"unfulfillable": run.Stats.UnfulfillableOrders,
	}); err != nil {
		return domain.Run{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Run{}, err
	}
	e.log().WithFields(logrus.Fields{
		"run_id":      run.ID,
		"orders":      run.Stats.TotalOrders,
		"fulfillable": run.Stats.FulfillableOrders,
	}).Info("simulation run completed")
	return *run, nil
}

// Toggle flips one order's verdict in a persisted run and rewrites the
// run and its history atomically. No mutation is persisted when the
// toggle conflicts with the ledger.
func (e Engine) Toggle(ctx context.Context, runID, orderID string, fulfillable, force bool, actorID string) (domain.Run, error) {
	run, err := e.Repo.GetRun(ctx, runID)
	if err != nil {
		return domain.Run{}, err
	}
	if err := ToggleOrder(&run, orderID, fulfillable, force); err != nil {
		return domain.Run{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Run{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRun(ctx, tx, run); err != nil {
		return domain.Run{}, err
	}
	if err := e.recordHistory(ctx, tx, &run); err != nil {
		return domain.Run{}, err
	}
	if err := e.Events.Append(ctx, tx, "order.toggled", run.ID, "order", orderID, actorID, events.EventPayload{
		"fulfillable": fulfillable,
		"force":       force,
	}); err != nil {
		return domain.Run{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

// recordHistory upserts the outcome of every order+SKU pair in the run.
func (e Engine) recordHistory(ctx context.Context, tx *sql.Tx, run *domain.Run) error {
	now := e.now().UTC().Format(time.RFC3339)
	for _, l := range run.Lines {
		h := domain.HistoryRecord{
			OrderID:   l.OrderID,
			SKU:       l.SKU,
			Fulfilled: l.Fulfillable,
			RunID:     run.ID,
			CreatedAt: now,
		}
		if err := e.Repo.UpsertHistory(ctx, tx, h); err != nil {
			return fmt.Errorf("record history for %s/%s: %w", l.OrderID, l.SKU, err)
		}
	}
	return nil
}

// SaveConfig validates the rule set, persists the config through the
// store, and reloads the engine's view of it.
func (e *Engine) SaveConfig(ctx context.Context, store *config.Store, cfg *config.Config, actorID string) error {
	if errs := rules.Validate(cfg.Rules, cfg.Settings.RequireKnownFields); len(errs) > 0 {
		return errs
	}
	if err := store.Save(cfg); err != nil {
		return err
	}
	fresh, err := store.Load()
	if err != nil {
		return err
	}
	e.Config = fresh

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "config.saved", "", "config", store.Path, actorID, events.EventPayload{
		"rules": len(cfg.Rules),
	}); err != nil {
		return err
	}
	return tx.Commit()
}
