package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classifying stage and gate failures. Wrap tags errors with
// one of these so callers can branch on errors.Is without string matching.
var (
	// ErrGateRejected marks a dedup gate declining progression once the
	// rewrite budget is spent. Not retried.
	ErrGateRejected = errors.New("gate rejected")
	// ErrValidation marks malformed or missing required input (for example a
	// storyboard segment without a measured duration). Not retried.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a stage result discarded because the claim was
	// lost mid-flight, usually to an operator intervention.
	ErrConflict = errors.New("claim conflict")
	// ErrTimeout marks a stage that exceeded its configured deadline.
	ErrTimeout = errors.New("timeout")
	// ErrRetryExhausted marks a stage whose retry budget is spent.
	ErrRetryExhausted = errors.New("retry exhausted")
	// ErrTransient marks an external stage failure eligible for retry.
	ErrTransient = errors.New("transient failure")
	// ErrDataIntegrity marks corrupt persisted state (unparseable item
	// payloads, embedding dimension drift). Terminal; never retried.
	ErrDataIntegrity = errors.New("data integrity")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the workflow should re-run a failed stage,
// budget permitting.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrGateRejected),
		errors.Is(err, ErrRetryExhausted), errors.Is(err, ErrConflict),
		errors.Is(err, ErrDataIntegrity):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
