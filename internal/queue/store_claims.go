package queue

import (
	"context"
	"fmt"
	"time"
)

// Claim marks the item as owned by claimID, provided it is unpaused,
// non-terminal, and not already held by a live claim. A claim whose
// heartbeat predates staleCutoff is treated as abandoned and may be taken
// over. Returns false when another worker holds the item.
func (s *Store) Claim(ctx context.Context, itemID, claimID string, staleCutoff time.Time) (bool, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		UPDATE content_items
		SET claim_id = ?, claimed_at = ?, last_heartbeat = ?, updated_at = ?
		WHERE id = ? AND paused = 0 AND status NOT IN (?, ?)
		  AND (claim_id IS NULL OR last_heartbeat IS NULL OR last_heartbeat < ?)`,
		claimID, now, now, now,
		itemID, string(StatusPublished), string(StatusFailed),
		staleCutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("claim item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim item rows: %w", err)
	}
	return affected == 1, nil
}

// Heartbeat refreshes the claim's liveness marker. Returns false when the
// claim no longer owns the item (released, reclaimed, or cancelled).
func (s *Store) Heartbeat(ctx context.Context, itemID, claimID string) (bool, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		UPDATE content_items
		SET last_heartbeat = ?, updated_at = ?
		WHERE id = ? AND claim_id = ?`,
		now, now, itemID, claimID,
	)
	if err != nil {
		return false, fmt.Errorf("heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows: %w", err)
	}
	return affected == 1, nil
}

// ReleaseClaim gives the item back to the queue without changing its
// status, preserving the accumulated retry counters on the item row.
func (s *Store) ReleaseClaim(ctx context.Context, itemID, claimID string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx, `
		UPDATE content_items
		SET claim_id = NULL, claimed_at = NULL, last_heartbeat = NULL, updated_at = ?
		WHERE id = ? AND claim_id = ?`,
		now, itemID, claimID,
	); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// CompleteClaimed writes the item's post-stage state and drops the claim,
// but only while claimID still owns the row. When an operator failed or
// reclaimed the item mid-flight the update is a no-op and the stage result
// is discarded; the return value reports whether the write landed.
func (s *Store) CompleteClaimed(ctx context.Context, item *Item, claimID string) (bool, error) {
	if item == nil {
		return false, fmt.Errorf("nil item")
	}
	ctx = ensureContext(ctx)
	item.UpdatedAt = time.Now().UTC()
	item.ClaimID = ""
	item.ClaimedAt = nil
	item.LastHeartbeat = nil

	args := itemUpdateArgsExceptID(item)
	args = append(args, item.ID, claimID)
	res, err := s.execWithRetry(ctx, `
		UPDATE content_items SET
			channel_id = ?, title = ?, status = ?, similarity_score = ?, repetition_score = ?,
			stage_attempts = ?, script_retries = ?, fact_check_attempts = ?,
			reason_code = ?, error_message = ?, paused = ?, pause_reason = ?,
			claim_id = NULL, claimed_at = NULL, last_heartbeat = NULL,
			claims_json = ?, script_json = ?, storyboard_json = ?, assets_json = ?,
			updated_at = ?
		WHERE id = ? AND claim_id = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("complete claimed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete claimed rows: %w", err)
	}
	return affected == 1, nil
}

func itemUpdateArgsExceptID(item *Item) []any {
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
		nullableString(item.ClaimsJSON),
		nullableString(item.ScriptJSON),
		nullableString(item.StoryboardJSON),
		nullableString(item.AssetsJSON),
		item.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// ReclaimStale clears abandoned claims whose heartbeat predates the cutoff
// so another worker can pick the items up. Returns the number reclaimed.
func (s *Store) ReclaimStale(ctx context.Context, staleCutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		UPDATE content_items
		SET claim_id = NULL, claimed_at = NULL, last_heartbeat = NULL, updated_at = ?
		WHERE claim_id IS NOT NULL
		  AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		now, staleCutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale: %w", err)
	}
	return res.RowsAffected()
}

// FailItem terminally fails an item on operator request, severing any live
// claim so an in-flight stage result is discarded on completion.
func (s *Store) FailItem(ctx context.Context, itemID, reasonCode, message string) (bool, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		UPDATE content_items
		SET status = ?, reason_code = ?, error_message = ?,
			claim_id = NULL, claimed_at = NULL, last_heartbeat = NULL,
			paused = 0, pause_reason = NULL, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(StatusFailed), reasonCode, nullableString(message), now,
		itemID, string(StatusPublished), string(StatusFailed),
	)
	if err != nil {
		return false, fmt.Errorf("fail item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail item rows: %w", err)
	}
	return affected == 1, nil
}

// ResumeItem clears the pause flag so the workflow can pick the item up
// again. Returns false when the item was not paused.
func (s *Store) ResumeItem(ctx context.Context, itemID string) (bool, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		UPDATE content_items
		SET paused = 0, pause_reason = NULL, updated_at = ?
		WHERE id = ? AND paused = 1`,
		now, itemID,
	)
	if err != nil {
		return false, fmt.Errorf("resume item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resume item rows: %w", err)
	}
	return affected == 1, nil
}

// RetryFailed returns a failed item to draft with fresh counters. The
// stage run history is kept for auditing.
func (s *Store) RetryFailed(ctx context.Context, itemID string) (bool, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		UPDATE content_items
		SET status = ?, reason_code = NULL, error_message = NULL,
			stage_attempts = 0, script_retries = 0, fact_check_attempts = 0,
			claim_id = NULL, claimed_at = NULL, last_heartbeat = NULL,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusDraft), now, itemID, string(StatusFailed),
	)
	if err != nil {
		return false, fmt.Errorf("retry item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("retry item rows: %w", err)
	}
	return affected == 1, nil
}
