package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateItem inserts a new draft item. The similarity score, when present,
// records the topic gate score that admitted the item.
func (s *Store) CreateItem(ctx context.Context, channelID, title string, similarityScore *float64) (*Item, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	item := &Item{
		ID:              uuid.NewString(),
		ChannelID:       channelID,
		Title:           title,
		Status:          StatusDraft,
		SimilarityScore: similarityScore,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := s.execWithRetry(ctx, `
		INSERT INTO content_items (id, channel_id, title, status, similarity_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.ChannelID,
		item.Title,
		string(item.Status),
		nullableFloat(item.SimilarityScore),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

// GetByID fetches a single item, returning nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM content_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists every mutable field of the item unconditionally. Stage
// completions must go through CompleteClaimed instead so operator
// cancellation can discard in-flight results.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("nil item")
	}
	ctx = ensureContext(ctx)
	item.UpdatedAt = time.Now().UTC()

	_, err := s.execWithRetry(ctx, `
		UPDATE content_items SET
			channel_id = ?, title = ?, status = ?, similarity_score = ?, repetition_score = ?,
			stage_attempts = ?, script_retries = ?, fact_check_attempts = ?,
			reason_code = ?, error_message = ?, paused = ?, pause_reason = ?,
			claim_id = ?, claimed_at = ?, last_heartbeat = ?,
			claims_json = ?, script_json = ?, storyboard_json = ?, assets_json = ?,
			updated_at = ?
		WHERE id = ?`,
		itemUpdateArgs(item)...,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func itemUpdateArgs(item *Item) []any {
	return []any{
		item.ChannelID,
		item.Title,
		string(item.Status),
		nullableFloat(item.SimilarityScore),
		nullableFloat(item.RepetitionScore),
		item.StageAttempts,
		item.ScriptRetries,
		item.FactCheckAttempts,
		nullableString(item.ReasonCode),
		nullableString(item.ErrorMessage),
		boolToInt(item.Paused),
		nullableString(item.PauseReason),
		nullableString(item.ClaimID),
		nullableTime(item.ClaimedAt),
		nullableTime(item.LastHeartbeat),
		nullableString(item.ClaimsJSON),
		nullableString(item.ScriptJSON),
		nullableString(item.StoryboardJSON),
		nullableString(item.AssetsJSON),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	}
}

// NextForStatus returns the oldest unclaimed, unpaused item in the given
// status. Items whose claim heartbeat predates staleCutoff count as
// unclaimed. Returns nil when nothing is eligible.
func (s *Store) NextForStatus(ctx context.Context, status Status, staleCutoff time.Time) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM content_items
		WHERE status = ? AND paused = 0
		  AND (claim_id IS NULL OR last_heartbeat IS NULL OR last_heartbeat < ?)
		ORDER BY created_at ASC
		LIMIT 1`,
		string(status),
		staleCutoff.UTC().Format(time.RFC3339Nano),
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next for status: %w", err)
	}
	return item, nil
}

// ItemsByStatus lists items in any of the given statuses, oldest first.
// With no statuses it lists the entire queue.
func (s *Store) ItemsByStatus(ctx context.Context, statuses ...Status) ([]*Item, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + itemColumns + " FROM content_items"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*Item
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan item: %w", scanErr)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RecentTitles returns the titles of the channel's most recent items,
// newest first, capped at limit. Failed items are excluded so rejected
// topics do not poison future mining prompts.
func (s *Store) RecentTitles(ctx context.Context, channelID string, limit int) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT title FROM content_items
		WHERE channel_id = ? AND status != ?
		ORDER BY created_at DESC
		LIMIT ?`,
		channelID, string(StatusFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("recent titles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var titles []string
	for rows.Next() {
		var title string
		if scanErr := rows.Scan(&title); scanErr != nil {
			return nil, fmt.Errorf("scan title: %w", scanErr)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// RecentByStatus lists the channel's newest items in the given statuses,
// newest first, capped at limit. It feeds the repetition scorer's history
// windows.
func (s *Store) RecentByStatus(ctx context.Context, channelID string, limit int, statuses ...Status) ([]*Item, error) {
	if len(statuses) == 0 || limit <= 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)
	args := make([]any, 0, len(statuses)+2)
	args = append(args, channelID)
	for _, status := range statuses {
		args = append(args, string(status))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM content_items
		WHERE channel_id = ? AND status IN (`+makePlaceholders(len(statuses))+`)
		ORDER BY created_at DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("recent by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*Item
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan item: %w", scanErr)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Stats summarizes queue composition by status.
type Stats struct {
	Total    int
	ByStatus map[Status]int
	Paused   int
}

// QueueStats counts items per status plus the paused total.
func (s *Store) QueueStats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{ByStatus: make(map[Status]int)}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM content_items GROUP BY status")
	if err != nil {
		return stats, fmt.Errorf("queue stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var statusStr string
		var count int
		if scanErr := rows.Scan(&statusStr, &count); scanErr != nil {
			return stats, fmt.Errorf("scan stats: %w", scanErr)
		}
		stats.ByStatus[Status(statusStr)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM content_items WHERE paused = 1").Scan(&stats.Paused); err != nil {
		return stats, fmt.Errorf("count paused: %w", err)
	}
	return stats, nil
}

// DeleteByStatus removes items in the given statuses and returns the count.
func (s *Store) DeleteByStatus(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)
	args := make([]any, 0, len(statuses))
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
		names = append(names, string(status))
	}
	res, err := s.execWithRetry(ctx,
		"DELETE FROM content_items WHERE status IN ("+makePlaceholders(len(statuses))+")",
		args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s items: %w", strings.Join(names, ","), err)
	}
	return res.RowsAffected()
}

// Clear removes every item and stage run from the queue.
func (s *Store) Clear(ctx context.Context) error {
	ctx = ensureContext(ctx)
	for _, stmt := range []string{
		"DELETE FROM stage_runs",
		"DELETE FROM embeddings",
		"DELETE FROM content_items",
	} {
		if _, err := s.execWithRetry(ctx, stmt); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
	}
	return nil
}
