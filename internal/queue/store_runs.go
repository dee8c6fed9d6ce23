package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordStageRun appends one execution record to the audit trail. Runs are
// never updated or deleted outside of a full queue clear.
func (s *Store) RecordStageRun(ctx context.Context, run *StageRun) error {
	if run == nil {
		return fmt.Errorf("nil stage run")
	}
	ctx = ensureContext(ctx)
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	res, err := s.execWithRetry(ctx, `
		INSERT INTO stage_runs (item_id, stage, status, error_message, duration_ms, tokens_in, tokens_out, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(run.ItemID),
		run.Stage,
		string(run.Status),
		nullableString(run.ErrorMessage),
		run.Duration.Milliseconds(),
		run.TokensIn,
		run.TokensOut,
		run.CostUSD,
		run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record stage run: %w", err)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		run.ID = id
	}
	return nil
}

// StageRunsForItem lists the item's runs in execution order, optionally
// filtered to a single stage.
func (s *Store) StageRunsForItem(ctx context.Context, itemID, stage string) ([]*StageRun, error) {
	ctx = ensureContext(ctx)
	query := "SELECT id, item_id, stage, status, error_message, duration_ms, tokens_in, tokens_out, cost_usd, created_at FROM stage_runs WHERE item_id = ?"
	args := []any{itemID}
	if stage != "" {
		query += " AND stage = ?"
		args = append(args, stage)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stage runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*StageRun
	for rows.Next() {
		run, scanErr := scanStageRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan stage run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountStageRuns tallies the item's runs for one stage.
func (s *Store) CountStageRuns(ctx context.Context, itemID, stage string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM stage_runs WHERE item_id = ? AND stage = ?",
		itemID, stage).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stage runs: %w", err)
	}
	return count, nil
}

// UsageTotals aggregates token and cost accounting across every run of an
// item, or across the whole queue when itemID is empty.
func (s *Store) UsageTotals(ctx context.Context, itemID string) (tokensIn, tokensOut int64, costUSD float64, err error) {
	ctx = ensureContext(ctx)
	query := "SELECT COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0), COALESCE(SUM(cost_usd), 0) FROM stage_runs"
	args := []any{}
	if itemID != "" {
		query += " WHERE item_id = ?"
		args = append(args, itemID)
	}
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&tokensIn, &tokensOut, &costUSD)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("usage totals: %w", err)
	}
	return tokensIn, tokensOut, costUSD, nil
}

func scanStageRun(scanner interface{ Scan(dest ...any) error }) (*StageRun, error) {
	var (
		run        StageRun
		itemID     sql.NullString
		statusStr  string
		errMessage sql.NullString
		durationMS int64
		createdRaw string
	)
	if err := scanner.Scan(
		&run.ID,
		&itemID,
		&run.Stage,
		&statusStr,
		&errMessage,
		&durationMS,
		&run.TokensIn,
		&run.TokensOut,
		&run.CostUSD,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	run.ItemID = itemID.String
	run.Status = RunStatus(statusStr)
	run.ErrorMessage = errMessage.String
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	return &run, nil
}
