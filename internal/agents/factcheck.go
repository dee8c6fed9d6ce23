package agents

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"apogee/internal/storyboard"
)

// Fact checking risk weights. A script is rejected only when its
// accumulated risk is strictly above the approval threshold.
const (
	RiskPerUnsourcedClaim   = 0.20
	RiskPerAbsoluteLanguage = 0.15
	ApprovalThreshold       = 0.60
)

// absoluteLanguage flags claims stated with more certainty than their
// sources support. Longer patterns first so they win over substrings.
var absoluteLanguage = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bé provado que\b`),
	regexp.MustCompile(`(?i)\bproven fact\b`),
	regexp.MustCompile(`(?i)\bcertamente\b`),
	regexp.MustCompile(`(?i)\bcertainly\b`),
	regexp.MustCompile(`(?i)\bimpossível\b`),
	regexp.MustCompile(`(?i)\bimpossible\b`),
	regexp.MustCompile(`(?i)\bsempre\b`),
	regexp.MustCompile(`(?i)\balways\b`),
	regexp.MustCompile(`(?i)\bnunca\b`),
	regexp.MustCompile(`(?i)\bnever\b`),
	regexp.MustCompile(`(?i)\bguaranteed\b`),
}

// RuleFactChecker audits scripts without any model call: every claim
// missing a source and every absolute-language hit in the narration adds
// a fixed amount of risk.
type RuleFactChecker struct{}

// NewRuleFactChecker returns the rule-based auditor.
func NewRuleFactChecker() *RuleFactChecker {
	return &RuleFactChecker{}
}

// CheckScript computes the script's risk score from its claims and text.
func (c *RuleFactChecker) CheckScript(_ context.Context, script storyboard.Script, claims []Claim) (FactCheckResult, Usage, error) {
	var issues []string

	unsourced := 0
	for _, claim := range claims {
		if claim.SourceURL == "" && !claim.Verified {
			unsourced++
			issues = append(issues, fmt.Sprintf("unsourced claim: %s", truncate(claim.Text, 80)))
		}
	}

	absoluteHits := 0
	text := script.FullText()
	for _, pattern := range absoluteLanguage {
		if matches := pattern.FindAllString(text, -1); len(matches) > 0 {
			absoluteHits += len(matches)
			issues = append(issues, fmt.Sprintf("absolute language: %q", matches[0]))
		}
	}

	raw := float64(unsourced)*RiskPerUnsourcedClaim + float64(absoluteHits)*RiskPerAbsoluteLanguage
	risk := math.Round(math.Min(1, raw)*1e6) / 1e6

	return FactCheckResult{
		RiskScore: risk,
		Issues:    issues,
		Approved:  risk <= ApprovalThreshold,
	}, Usage{}, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
