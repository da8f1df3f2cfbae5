package verify

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/resilience"
	"github.com/sells-group/tuition-cli/pkg/anthropic"
)

type fakeCritic struct {
	reply string
	err   error
	calls int
}

func (f *fakeCritic) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Text:  f.reply,
		Usage: anthropic.TokenUsage{InputTokens: 200, OutputTokens: 40},
	}, nil
}

func strPtr(s string) *string { return &s }

func fullFacts() *model.ExtractedFacts {
	credits := 63.0
	return &model.ExtractedFacts{
		TuitionAmount: strPtr("$160,083"),
		TuitionPeriod: strPtr("total program"),
		AcademicYear:  strPtr("2025-2026"),
		PerUnitCost:   strPtr("$2,541"),
		CreditCount:   &credits,
		ProgramLength: strPtr("3 years"),
		IsSTEM:        new(bool),
		Status:        model.StatusSuccess,
	}
}

func schoolCitations() []model.Citation {
	return []model.Citation{
		{Title: "Tuition", URL: "https://www.example.edu/mba/tuition", Excerpt: "Tuition is $2,541 per credit."},
	}
}

func newTestVerifier(client anthropic.Client) *Verifier {
	return New(NewCritic(client, "test-model", resilience.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond}))
}

func TestArithmeticCheck(t *testing.T) {
	facts := fullFacts()
	res := arithmeticCheck(facts)
	assert.Equal(t, model.CheckPass, res.Outcome, res.Detail)

	// Within the 5% tolerance.
	facts.TuitionAmount = strPtr("$155,000")
	assert.Equal(t, model.CheckPass, arithmeticCheck(facts).Outcome)

	// Outside the tolerance.
	facts.TuitionAmount = strPtr("$120,000")
	assert.Equal(t, model.CheckFail, arithmeticCheck(facts).Outcome)

	facts.PerUnitCost = nil
	assert.Equal(t, model.CheckSkip, arithmeticCheck(facts).Outcome)
}

func TestSourceCheck(t *testing.T) {
	tests := []struct {
		name      string
		school    string
		citations []model.Citation
		want      model.CheckOutcome
	}{
		{"school-owned edu domain", "Example University",
			[]model.Citation{{URL: "https://www.example.edu/tuition"}}, model.CheckPass},
		{"initialism domain", "Massachusetts Institute of Technology",
			[]model.Citation{{URL: "https://mit.edu/sloan"}}, model.CheckPass},
		{"edu but unrelated name", "Example University",
			[]model.Citation{{URL: "https://other.edu/tuition"}}, model.CheckWarn},
		{"aggregator only", "Example University",
			[]model.Citation{{URL: "https://www.usnews.com/best-mba"}}, model.CheckFail},
		{"unrelated commercial site", "Example University",
			[]model.Citation{{URL: "https://randomblog.com/tuition"}}, model.CheckFail},
		{"no citations", "Example University", nil, model.CheckFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := sourceCheck(tt.school, tt.citations)
			assert.Equal(t, tt.want, res.Outcome, res.Detail)
		})
	}
}

func TestCompletenessCheck(t *testing.T) {
	res, score := completenessCheck(fullFacts())
	assert.Equal(t, model.CheckPass, res.Outcome)
	assert.GreaterOrEqual(t, score, 75)

	res, score = completenessCheck(&model.ExtractedFacts{TuitionAmount: strPtr("$76,000")})
	assert.Equal(t, model.CheckFail, res.Outcome)
	assert.Less(t, score, 40)

	_, score = completenessCheck(&model.ExtractedFacts{})
	assert.Equal(t, 0, score)
}

func TestPlausibilityCheck(t *testing.T) {
	assert.Equal(t, model.CheckPass, plausibilityCheck(fullFacts()).Outcome)

	low := fullFacts()
	low.TuitionAmount = strPtr("$1,200")
	res := plausibilityCheck(low)
	assert.Equal(t, model.CheckFail, res.Outcome)
	assert.Contains(t, res.Detail, "tuition")

	manyCredits := fullFacts()
	credits := 400.0
	manyCredits.CreditCount = &credits
	assert.Equal(t, model.CheckFail, plausibilityCheck(manyCredits).Outcome)

	assert.Equal(t, model.CheckSkip, plausibilityCheck(&model.ExtractedFacts{}).Outcome)
}

func TestVerify_AllPassAndCritiqueAffirms(t *testing.T) {
	client := &fakeCritic{reply: `{"supported": true, "notes": "the cited page states the per-credit rate"}`}

	verdict, usage := newTestVerifier(client).Verify(context.Background(), fullFacts(), schoolCitations(), "Example University", "Part-Time MBA")

	assert.Equal(t, model.VerificationPass, verdict.Status)
	assert.Equal(t, model.ConfidenceHigh, verdict.Confidence)
	assert.True(t, verdict.CritiqueSupported)
	assert.Equal(t, 200, usage.InputTokens)
}

func TestVerify_CritiqueDenialNeverHigh(t *testing.T) {
	client := &fakeCritic{reply: `{"supported": false, "notes": "the excerpt does not mention the $160,083 figure"}`}

	verdict, _ := newTestVerifier(client).Verify(context.Background(), fullFacts(), schoolCitations(), "Example University", "Part-Time MBA")

	assert.Equal(t, model.VerificationNeedsReview, verdict.Status)
	assert.Equal(t, model.ConfidenceMedium, verdict.Confidence)
	assert.NotEqual(t, model.ConfidenceHigh, verdict.Confidence)
	assert.False(t, verdict.CritiqueSupported)
}

func TestVerify_CritiqueDenialWithManyFailures(t *testing.T) {
	client := &fakeCritic{reply: `{"supported": false, "notes": "nothing lines up"}`}

	// Implausible, arithmetically wrong, sparsely populated, badly sourced.
	credits := 400.0
	facts := &model.ExtractedFacts{
		TuitionAmount: strPtr("$1,000"),
		PerUnitCost:   strPtr("$2,541"),
		CreditCount:   &credits,
		Status:        model.StatusSuccess,
	}
	citations := []model.Citation{{URL: "https://www.usnews.com/best-mba"}}

	verdict, _ := newTestVerifier(client).Verify(context.Background(), facts, citations, "Example University", "Part-Time MBA")

	assert.Equal(t, model.VerificationRetryRecommended, verdict.Status)
	assert.Equal(t, model.ConfidenceLow, verdict.Confidence)
	assert.GreaterOrEqual(t, verdict.FailedChecks(), 3)
}

func TestVerify_CheckFailureWithAffirmingCritique(t *testing.T) {
	client := &fakeCritic{reply: `{"supported": true, "notes": "figures match the cited page"}`}

	facts := fullFacts()
	facts.TuitionAmount = strPtr("$120,000") // arithmetic check fails

	verdict, _ := newTestVerifier(client).Verify(context.Background(), facts, schoolCitations(), "Example University", "Part-Time MBA")

	assert.Equal(t, model.VerificationNeedsReview, verdict.Status)
	assert.Equal(t, model.ConfidenceMedium, verdict.Confidence)
}

func TestVerify_CritiqueCallFailureDegrades(t *testing.T) {
	client := &fakeCritic{err: eris.New("anthropic: create message: boom")}

	verdict, _ := newTestVerifier(client).Verify(context.Background(), fullFacts(), schoolCitations(), "Example University", "Part-Time MBA")

	assert.False(t, verdict.CritiqueSupported)
	assert.Contains(t, verdict.CritiqueNotes, "critique unavailable")
	assert.Equal(t, model.VerificationNeedsReview, verdict.Status)
	assert.NotEqual(t, model.ConfidenceHigh, verdict.Confidence)
}

func TestVerify_NilCriticNeverHigh(t *testing.T) {
	verdict, usage := New(nil).Verify(context.Background(), fullFacts(), schoolCitations(), "Example University", "Part-Time MBA")

	assert.False(t, verdict.CritiqueSupported)
	assert.NotEqual(t, model.ConfidenceHigh, verdict.Confidence)
	assert.Zero(t, usage)
}

func TestParseCritique(t *testing.T) {
	c, err := parseCritique("Sure, here is my judgment:\n```json\n{\"supported\": true, \"notes\": \"ok\"}\n```")
	require.NoError(t, err)
	assert.True(t, c.Supported)
	assert.Equal(t, "ok", c.Notes)

	_, err = parseCritique("no json here")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), "malformed critique reply is retried")
}

func TestVerify_MalformedCritiqueRetried(t *testing.T) {
	client := &fakeCritic{reply: `{"supported": true, "notes": "ok"}`}
	v := newTestVerifier(client)

	verdict, _ := v.Verify(context.Background(), fullFacts(), schoolCitations(), "Example University", "Part-Time MBA")
	assert.True(t, verdict.CritiqueSupported)
	assert.Equal(t, 1, client.calls)
}
