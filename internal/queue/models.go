package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a content item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScripted  Status = "scripted"
	StatusRendered  Status = "rendered"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// AllStatuses lists every lifecycle state in pipeline order.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusScripted, StatusRendered, StatusPublished, StatusFailed}
}

// ParseStatus converts user input into a Status.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range AllStatuses() {
		if candidate == status {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// Terminal failure reason codes recorded on items that reach StatusFailed.
const (
	ReasonFactCheckExhausted   = "fact_check_exhausted"
	ReasonScriptDedupExhausted = "script_dedup_exhausted"
	ReasonDataIntegrity        = "data_integrity"
	ReasonOperatorFailed       = "operator_failed"
)

// ReasonRetryExhausted builds the reason code for a stage whose bounded
// retry budget ran out.
func ReasonRetryExhausted(stage string) string {
	return "retry_exhausted:" + stage
}

// Item is a single unit of content moving through the pipeline.
type Item struct {
	ID        string
	ChannelID string
	Title     string
	Status    Status

	SimilarityScore *float64
	RepetitionScore *float64

	StageAttempts     int
	ScriptRetries     int
	FactCheckAttempts int

	ReasonCode   string
	ErrorMessage string

	Paused      bool
	PauseReason string

	ClaimID       string
	ClaimedAt     *time.Time
	LastHeartbeat *time.Time

	ClaimsJSON     string
	ScriptJSON     string
	StoryboardJSON string
	AssetsJSON     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkFailed moves the item to its terminal failure state.
func (i *Item) MarkFailed(reasonCode, message string) {
	i.Status = StatusFailed
	i.ReasonCode = reasonCode
	i.ErrorMessage = message
}

// MarkPaused flags the item for operator review without changing status.
func (i *Item) MarkPaused(reason string) {
	i.Paused = true
	i.PauseReason = reason
}

// ClearPause resumes a paused item.
func (i *Item) ClearPause() {
	i.Paused = false
	i.PauseReason = ""
}

// RunStatus records the outcome of a single stage execution.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunRetry   RunStatus = "retry"
)

// StageRun is one row of the append-only execution audit. Every stage
// invocation produces exactly one run regardless of outcome.
type StageRun struct {
	ID           int64
	ItemID       string
	Stage        string
	Status       RunStatus
	ErrorMessage string
	Duration     time.Duration
	TokensIn     int64
	TokensOut    int64
	CostUSD      float64
	CreatedAt    time.Time
}
