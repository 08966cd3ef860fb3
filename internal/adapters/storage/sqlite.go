package storage

// sqlite.go: append-only execution quality store.
//
// Two tables:
//   - `execution_cycles`: one summary row per settled (or failed) cycle.
//   - `execution_details`: one row per simulated order, filled or failed.
// Rows are never updated or pruned. The run history is the dataset a
// research session analyzes, so keeping all of it is the point.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/quantfork/optsim/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- One summary row per execution cycle
CREATE TABLE IF NOT EXISTS execution_cycles (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id          TEXT     NOT NULL,
    run_date          DATETIME NOT NULL,
    state             TEXT     NOT NULL,
    sentiment         TEXT     NOT NULL DEFAULT '',
    exits             INTEGER  NOT NULL DEFAULT 0,
    hedge_closes      INTEGER  NOT NULL DEFAULT 0,
    hedge_adds        INTEGER  NOT NULL DEFAULT 0,
    probes            INTEGER  NOT NULL DEFAULT 0,
    cores             INTEGER  NOT NULL DEFAULT 0,
    failed_orders     INTEGER  NOT NULL DEFAULT 0,
    filled_orders     INTEGER  NOT NULL DEFAULT 0,
    within_nbbo       INTEGER  NOT NULL DEFAULT 0,
    mid_or_better     INTEGER  NOT NULL DEFAULT 0,
    total_slippage    REAL     NOT NULL DEFAULT 0,
    capital_before    REAL     NOT NULL DEFAULT 0,
    capital_after     REAL     NOT NULL DEFAULT 0,
    capital_available REAL     NOT NULL DEFAULT 0,
    realized_pnl      REAL     NOT NULL DEFAULT 0,
    freeze_reason     TEXT     NOT NULL DEFAULT '',
    skip_reasons      TEXT     NOT NULL DEFAULT '',
    err               TEXT     NOT NULL DEFAULT ''
);

-- One row per simulated order
CREATE TABLE IF NOT EXISTS execution_details (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id     TEXT     NOT NULL,
    run_date     DATETIME NOT NULL,
    kind         TEXT     NOT NULL,
    position_id  TEXT     NOT NULL DEFAULT '',
    symbol       TEXT     NOT NULL,
    side         TEXT     NOT NULL,
    quantity     INTEGER  NOT NULL DEFAULT 0,
    strategy_tag TEXT     NOT NULL DEFAULT '',
    avg_price    REAL     NOT NULL DEFAULT 0,
    slippage     REAL     NOT NULL DEFAULT 0,
    within_nbbo  INTEGER  NOT NULL DEFAULT 0,
    mid_or_better INTEGER NOT NULL DEFAULT 0,
    latency_ms   INTEGER  NOT NULL DEFAULT 0,
    filled       INTEGER  NOT NULL DEFAULT 0,
    err          TEXT     NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_exec_cycles_date   ON execution_cycles(run_date DESC);
CREATE INDEX IF NOT EXISTS idx_exec_details_cycle ON execution_details(cycle_id);
CREATE INDEX IF NOT EXISTS idx_exec_details_date  ON execution_details(run_date DESC);
`

// SQLiteSink implements ports.ExecutionSink over SQLite (pure Go, no CGo).
// It also serves the aggregate queries behind the report command.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at the given path and
// applies the schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteSink: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteSink: apply schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// RecordExecution persists the cycle summary and every order detail in one
// transaction.
func (s *SQLiteSink) RecordExecution(ctx context.Context, res domain.ExecutionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordExecution: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO execution_cycles
			(cycle_id, run_date, state, sentiment,
			 exits, hedge_closes, hedge_adds, probes, cores,
			 failed_orders, filled_orders, within_nbbo, mid_or_better, total_slippage,
			 capital_before, capital_after, capital_available, realized_pnl,
			 freeze_reason, skip_reasons, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.CycleID,
		res.Date.UTC(),
		string(res.State),
		string(res.Sentiment),
		res.ExitsDone,
		res.HedgeCloses,
		res.HedgeAdds,
		res.ProbesOpened,
		res.CoresOpened,
		res.FailedOrders,
		res.Compliance.Orders,
		res.Compliance.WithinNbbo,
		res.Compliance.MidOrBetter,
		res.Compliance.TotalSlippage,
		res.CapitalBefore,
		res.CapitalAfter,
		res.CapitalAvailable,
		res.RealizedPnL,
		res.FreezeReason,
		strings.Join(res.SkipReasons, "; "),
		res.Err,
	); err != nil {
		return fmt.Errorf("storage.RecordExecution: insert cycle %s: %w", res.CycleID, err)
	}

	if len(res.Details) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO execution_details
				(cycle_id, run_date, kind, position_id, symbol, side, quantity,
				 strategy_tag, avg_price, slippage, within_nbbo, mid_or_better,
				 latency_ms, filled, err)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("storage.RecordExecution: prepare details: %w", err)
		}
		defer stmt.Close()

		for _, d := range res.Details {
			if _, err := stmt.ExecContext(ctx,
				res.CycleID,
				res.Date.UTC(),
				string(d.Kind),
				d.PositionID,
				d.Order.Symbol,
				string(d.Order.Side),
				d.Order.Quantity,
				d.Order.StrategyTag,
				d.Fill.AvgPrice,
				d.Fill.Slippage,
				boolInt(d.Fill.WithinNbbo),
				boolInt(d.Fill.MidOrBetter),
				d.Fill.Latency.Milliseconds(),
				boolInt(d.Filled),
				d.Err,
			); err != nil {
				return fmt.Errorf("storage.RecordExecution: insert detail %s: %w", d.Order.Symbol, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordExecution: commit: %w", err)
	}
	return nil
}

// GetExecutionStats aggregates the recorded history for reporting: overall
// compliance rates plus a per-day rollup in chronological order.
func (s *SQLiteSink) GetExecutionStats(ctx context.Context) (domain.RunStats, error) {
	var stats domain.RunStats
	var nbbo, mid int

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(filled_orders), 0),
		       COALESCE(SUM(failed_orders), 0),
		       COALESCE(SUM(within_nbbo), 0),
		       COALESCE(SUM(mid_or_better), 0),
		       COALESCE(SUM(total_slippage), 0),
		       COALESCE(SUM(realized_pnl), 0),
		       COALESCE(SUM(freeze_reason != ''), 0)
		FROM execution_cycles`,
	).Scan(&stats.Cycles, &stats.Filled, &stats.Failed, &nbbo, &mid,
		&stats.TotalSlippage, &stats.RealizedPnL, &stats.Freezes)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("storage.GetExecutionStats: totals: %w", err)
	}

	if stats.Filled > 0 {
		stats.NbboRate = float64(nbbo) / float64(stats.Filled)
		stats.MidOrBetterRate = float64(mid) / float64(stats.Filled)
		stats.AvgSlippage = stats.TotalSlippage / float64(stats.Filled)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date(run_date),
		       COUNT(*),
		       COALESCE(SUM(filled_orders), 0),
		       COALESCE(SUM(failed_orders), 0),
		       COALESCE(SUM(within_nbbo), 0),
		       COALESCE(SUM(mid_or_better), 0),
		       COALESCE(SUM(total_slippage), 0),
		       COALESCE(SUM(realized_pnl), 0)
		FROM execution_cycles
		GROUP BY date(run_date)
		ORDER BY date(run_date)`)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("storage.GetExecutionStats: daily: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.DayStats
		var dayNbbo, dayMid int
		var daySlip float64
		if err := rows.Scan(&d.Day, &d.Cycles, &d.Filled, &d.Failed,
			&dayNbbo, &dayMid, &daySlip, &d.RealizedPnL); err != nil {
			return domain.RunStats{}, fmt.Errorf("storage.GetExecutionStats: scan day: %w", err)
		}
		if d.Filled > 0 {
			d.NbboRate = float64(dayNbbo) / float64(d.Filled)
			d.MidOrBetterRate = float64(dayMid) / float64(d.Filled)
			d.AvgSlippage = daySlip / float64(d.Filled)
		}
		stats.Days = append(stats.Days, d)
	}
	return stats, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
