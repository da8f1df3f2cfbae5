package verify

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/tuition-cli/internal/model"
)

// retryThreshold is the failed-check count at which a denied critique
// escalates from review to a recommended re-extraction.
const retryThreshold = 3

// Verifier runs the deterministic checks and the AI critique and
// aggregates them into a verdict.
type Verifier struct {
	critic *Critic
}

// New creates a verifier. critic may be nil, in which case the critique
// is recorded as unavailable and the verdict cannot reach High.
func New(critic *Critic) *Verifier {
	return &Verifier{critic: critic}
}

// Verify judges the facts against their citations. Verification never
// hard-fails: a critique-call failure degrades to an unsupported critique
// and the verdict says so in its notes.
func (v *Verifier) Verify(ctx context.Context, facts *model.ExtractedFacts, citations []model.Citation, school, program string) (*model.VerificationVerdict, model.TokenUsage) {
	completeness, score := completenessCheck(facts)
	checks := []model.CheckResult{
		arithmeticCheck(facts),
		sourceCheck(school, citations),
		completeness,
		plausibilityCheck(facts),
	}

	critique := &Critique{Supported: false, Notes: "critique unavailable"}
	var usage model.TokenUsage
	if v.critic != nil {
		reviewed, reviewUsage, err := v.critic.Review(ctx, facts, citations, school, program)
		usage = reviewUsage
		if err != nil {
			zap.L().Warn("verify: critique call failed, treating facts as unsupported",
				zap.String("school", school),
				zap.String("program", program),
				zap.Error(err),
			)
			critique.Notes = "critique unavailable: " + err.Error()
		} else {
			critique = reviewed
		}
	}

	verdict := &model.VerificationVerdict{
		Checks:            checks,
		CritiqueSupported: critique.Supported,
		CritiqueNotes:     critique.Notes,
		CompletenessScore: score,
	}
	verdict.Status, verdict.Confidence = aggregate(checks, critique.Supported)

	zap.L().Info("verify: verdict aggregated",
		zap.String("school", school),
		zap.String("program", program),
		zap.String("status", string(verdict.Status)),
		zap.String("confidence", string(verdict.Confidence)),
		zap.Int("failed_checks", verdict.FailedChecks()),
		zap.Bool("critique_supported", critique.Supported),
	)
	return verdict, usage
}

// aggregate applies the priority-ordered rule table. A denied critique
// caps confidence below High no matter what the checks say.
func aggregate(checks []model.CheckResult, supported bool) (model.VerificationStatus, model.ConfidenceTier) {
	failed := 0
	clean := true
	for _, c := range checks {
		switch c.Outcome {
		case model.CheckFail:
			failed++
			clean = false
		case model.CheckWarn:
			clean = false
		}
	}

	switch {
	case clean && supported:
		return model.VerificationPass, model.ConfidenceHigh
	case !supported && failed >= retryThreshold:
		return model.VerificationRetryRecommended, model.ConfidenceLow
	case !supported:
		return model.VerificationNeedsReview, model.ConfidenceMedium
	default:
		return model.VerificationNeedsReview, model.ConfidenceMedium
	}
}
