package model

// ConfidenceTier is the pipeline's calibrated trust level in a record.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// VerificationStatus is the actionable outcome of verification.
type VerificationStatus string

const (
	VerificationPass             VerificationStatus = "pass"
	VerificationNeedsReview      VerificationStatus = "needs_review"
	VerificationRetryRecommended VerificationStatus = "retry_recommended"
)

// CheckOutcome is the result of one deterministic check.
type CheckOutcome string

const (
	CheckPass CheckOutcome = "pass"
	CheckWarn CheckOutcome = "warn"
	CheckFail CheckOutcome = "fail"
	// CheckSkip means the check was not applicable (missing operands).
	CheckSkip CheckOutcome = "skip"
)

// CheckResult records one deterministic check with its explanation.
type CheckResult struct {
	Name    string       `json:"name"`
	Outcome CheckOutcome `json:"outcome"`
	Detail  string       `json:"detail,omitempty"`
}

// VerificationVerdict combines the deterministic checks and the AI
// critique into a confidence tier and an actionable status.
//
// Invariants: RetryRecommended implies ConfidenceLow; ConfidenceHigh
// requires every deterministic check to pass and the critique to affirm.
type VerificationVerdict struct {
	Status     VerificationStatus `json:"status"`
	Confidence ConfidenceTier     `json:"confidence"`
	Checks     []CheckResult      `json:"checks"`

	CritiqueSupported bool   `json:"critique_supported"`
	CritiqueNotes     string `json:"critique_notes,omitempty"`

	// CompletenessScore is the weighted field-completeness score, 0-100.
	CompletenessScore int `json:"completeness_score"`
}

// FailedChecks counts deterministic checks that ended in fail.
func (v *VerificationVerdict) FailedChecks() int {
	n := 0
	for _, c := range v.Checks {
		if c.Outcome == CheckFail {
			n++
		}
	}
	return n
}
