package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, channel_id, title, status, similarity_score, repetition_score, stage_attempts, script_retries, fact_check_attempts, reason_code, error_message, paused, pause_reason, claim_id, claimed_at, last_heartbeat, claims_json, script_json, storyboard_json, assets_json, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id                string
		channelID         string
		title             string
		statusStr         string
		similarityScore   sql.NullFloat64
		repetitionScore   sql.NullFloat64
		stageAttempts     int
		scriptRetries     int
		factCheckAttempts int
		reasonCode        sql.NullString
		errorMessage      sql.NullString
		paused            int
		pauseReason       sql.NullString
		claimID           sql.NullString
		claimedAtRaw      sql.NullString
		lastHeartbeatRaw  sql.NullString
		claimsJSON        sql.NullString
		scriptJSON        sql.NullString
		storyboardJSON    sql.NullString
		assetsJSON        sql.NullString
		createdRaw        sql.NullString
		updatedRaw        sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&channelID,
		&title,
		&statusStr,
		&similarityScore,
		&repetitionScore,
		&stageAttempts,
		&scriptRetries,
		&factCheckAttempts,
		&reasonCode,
		&errorMessage,
		&paused,
		&pauseReason,
		&claimID,
		&claimedAtRaw,
		&lastHeartbeatRaw,
		&claimsJSON,
		&scriptJSON,
		&storyboardJSON,
		&assetsJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                id,
		ChannelID:         channelID,
		Title:             title,
		Status:            Status(statusStr),
		StageAttempts:     stageAttempts,
		ScriptRetries:     scriptRetries,
		FactCheckAttempts: factCheckAttempts,
		ReasonCode:        reasonCode.String,
		ErrorMessage:      errorMessage.String,
		Paused:            paused != 0,
		PauseReason:       pauseReason.String,
		ClaimID:           claimID.String,
		ClaimsJSON:        claimsJSON.String,
		ScriptJSON:        scriptJSON.String,
		StoryboardJSON:    storyboardJSON.String,
		AssetsJSON:        assetsJSON.String,
	}
	if similarityScore.Valid {
		v := similarityScore.Float64
		item.SimilarityScore = &v
	}
	if repetitionScore.Valid {
		v := repetitionScore.Float64
		item.RepetitionScore = &v
	}
	if claimedAtRaw.Valid {
		if claimed, err := parseTimeString(claimedAtRaw.String); err == nil {
			item.ClaimedAt = &claimed
		}
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
