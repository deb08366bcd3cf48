package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// RunSummary is the listing view of a persisted run.
type RunSummary struct {
	ID        string       `json:"id"`
	CreatedAt string       `json:"created_at" format:"date-time"`
	Stats     domain.Stats `json:"stats"`
}

// InsertRun persists a run and its lines inside tx.
func (r Repo) InsertRun(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	ledgerJSON, err := json.Marshal(run.Ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	var dataErrsJSON any
	if len(run.DataErrors) > 0 {
		b, err := json.Marshal(run.DataErrors)
		if err != nil {
			return fmt.Errorf("marshal data errors: %w", err)
		}
		dataErrsJSON = string(b)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs(id,created_at,ledger_json,stats_json,data_errors_json) VALUES (?,?,?,?,?)`,
		run.ID, run.CreatedAt, string(ledgerJSON), string(statsJSON), dataErrsJSON); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return r.insertLines(ctx, tx, run)
}

func (r Repo) insertLines(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_lines(
		run_id,position,order_id,sku,quantity,shipping_method,product_name,line_total,
		status_note,system_note,priority,fulfillable,excluded,excluded_qty,report_hidden)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, l := range run.Lines {
		var excludedQty any
		if l.ExcludedQty != nil {
			excludedQty = *l.ExcludedQty
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, l.OrderID, l.SKU, l.Quantity,
			nullable(l.ShippingMethod), nullable(l.ProductName), l.LineTotal.String(),
			nullable(l.StatusNote), nullable(l.SystemNote), nullable(l.Priority),
			boolInt(l.Fulfillable), boolInt(l.Excluded), excludedQty, boolInt(l.ReportHidden)); err != nil {
			return fmt.Errorf("insert run line %d: %w", i, err)
		}
	}
	return nil
}

// UpdateRun rewrites a run's ledger, stats and lines after a toggle.
func (r Repo) UpdateRun(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	ledgerJSON, err := json.Marshal(run.Ledger)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE runs SET ledger_json=?, stats_json=? WHERE id=?`,
		string(ledgerJSON), string(statsJSON), run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_lines WHERE run_id=?`, run.ID); err != nil {
		return fmt.Errorf("clear run lines: %w", err)
	}
	return r.insertLines(ctx, tx, run)
}

// GetRun reloads a run; orders are rebuilt by grouping its lines.
func (r Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	var run domain.Run
	var ledgerJSON, statsJSON string
	var dataErrsJSON sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,created_at,ledger_json,stats_json,data_errors_json FROM runs WHERE id=?`, id).
		Scan(&run.ID, &run.CreatedAt, &ledgerJSON, &statsJSON, &dataErrsJSON)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	if err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(ledgerJSON), &run.Ledger); err != nil {
		return run, fmt.Errorf("ledger for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return run, fmt.Errorf("stats for run %s: %w", id, err)
	}
	if dataErrsJSON.Valid {
		if err := json.Unmarshal([]byte(dataErrsJSON.String), &run.DataErrors); err != nil {
			return run, fmt.Errorf("data errors for run %s: %w", id, err)
		}
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT order_id,sku,quantity,
		COALESCE(shipping_method,''),COALESCE(product_name,''),line_total,
		COALESCE(status_note,''),COALESCE(system_note,''),COALESCE(priority,''),
		fulfillable,excluded,excluded_qty,report_hidden
		FROM run_lines WHERE run_id=? ORDER BY position`, id)
	if err != nil {
		return run, err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		var total string
		var fulfillable, excluded, hidden int
		var excludedQty sql.NullInt64
		if err := rows.Scan(&l.OrderID, &l.SKU, &l.Quantity, &l.ShippingMethod, &l.ProductName,
			&total, &l.StatusNote, &l.SystemNote, &l.Priority,
			&fulfillable, &excluded, &excludedQty, &hidden); err != nil {
			return run, err
		}
		l.LineTotal, err = decimal.NewFromString(total)
		if err != nil {
			return run, fmt.Errorf("line total for run %s: %w", id, err)
		}
		l.Fulfillable = fulfillable != 0
		l.Excluded = excluded != 0
		l.ReportHidden = hidden != 0
		if excludedQty.Valid {
			q := int(excludedQty.Int64)
			l.ExcludedQty = &q
		}
		run.Lines = append(run.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return run, err
	}
	run.Orders = domain.GroupOrders(run.Lines)
	return run, nil
}

// ListRuns returns run summaries, newest first.
func (r Repo) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,created_at,stats_json FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var statsJSON string
		if err := rows.Scan(&s.ID, &s.CreatedAt, &statsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(statsJSON), &s.Stats); err != nil {
			return nil, fmt.Errorf("stats for run %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertHistory records the latest fulfillment outcome for an order+SKU
// pair.
func (r Repo) UpsertHistory(ctx context.Context, tx *sql.Tx, h domain.HistoryRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO history(order_id,sku,fulfilled,run_id,created_at) VALUES (?,?,?,?,?)
		ON CONFLICT(order_id,sku) DO UPDATE SET fulfilled=excluded.fulfilled, run_id=excluded.run_id, created_at=excluded.created_at`,
		h.OrderID, h.SKU, boolInt(h.Fulfilled), nullable(h.RunID), h.CreatedAt)
	return err
}

// ListHistory returns all prior fulfillment outcomes.
func (r Repo) ListHistory(ctx context.Context) ([]domain.HistoryRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT order_id,sku,fulfilled,COALESCE(run_id,''),created_at FROM history ORDER BY order_id,sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.HistoryRecord
	for rows.Next() {
		var h domain.HistoryRecord
		var fulfilled int
		if err := rows.Scan(&h.OrderID, &h.SKU, &fulfilled, &h.RunID, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Fulfilled = fulfilled != 0
		out = append(out, h)
	}
	return out, rows.Err()
}

// Event is one audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	RunID      string `json:"run_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// LatestEvents returns the newest events, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, n int, evtType, entityKind, entityID string) ([]Event, error) {
	if n <= 0 {
		n = 20
	}
	q := `SELECT id,ts,type,COALESCE(run_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	var conds []string
	var args []any
	if evtType != "" {
		conds = append(conds, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		conds = append(conds, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		conds = append(conds, "entity_id=?")
		args = append(args, entityID)
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, n)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.RunID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
