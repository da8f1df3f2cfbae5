package model

import "time"

// ExtractionStatus classifies the outcome of one extraction attempt.
type ExtractionStatus string

const (
	// StatusSuccess means the provider returned usable tuition facts.
	StatusSuccess ExtractionStatus = "success"
	// StatusNotFound means the school/program pair could not be located.
	// This is a first-class outcome, not an error.
	StatusNotFound ExtractionStatus = "not_found"
	// StatusFailed means the call or its parsing failed after retries.
	StatusFailed ExtractionStatus = "failed"
)

// ExtractionRequest is the input for one pipeline run. TriedNames
// accumulates every program-name phrasing attempted, for the audit trail.
type ExtractionRequest struct {
	Project    string   `json:"project,omitempty"`
	School     string   `json:"school"`
	Program    string   `json:"program"`
	TriedNames []string `json:"tried_names,omitempty"`
}

// ExtractedFacts is the structured result of parsing a model response.
// Pointer fields are nil when the provider did not state the value.
type ExtractedFacts struct {
	TuitionAmount   *string  `json:"tuition_amount,omitempty"`
	TuitionPeriod   *string  `json:"tuition_period,omitempty"`
	AcademicYear    *string  `json:"academic_year,omitempty"`
	PerUnitCost     *string  `json:"per_unit_cost,omitempty"`
	CreditCount     *float64 `json:"credit_count,omitempty"`
	CalculatedTotal *string  `json:"calculated_total,omitempty"`
	ProgramLength   *string  `json:"program_length,omitempty"`
	OfficialName    *string  `json:"official_name,omitempty"`
	IsSTEM          *bool    `json:"is_stem,omitempty"`
	AdditionalFees  *string  `json:"additional_fees,omitempty"`
	Remarks         *string  `json:"remarks,omitempty"`

	Status ExtractionStatus `json:"status"`

	// RawText preserves the provider output verbatim when parsing failed,
	// so a reviewer can see what was actually returned.
	RawText string `json:"raw_text,omitempty"`
}

// HasFinancials reports whether any financial field is populated.
func (f *ExtractedFacts) HasFinancials() bool {
	return f.TuitionAmount != nil || f.PerUnitCost != nil || f.AdditionalFees != nil
}

// NeedsCurriculum reports whether the conditional curriculum phase should
// run: per-unit cost or credit count is still missing.
func (f *ExtractedFacts) NeedsCurriculum() bool {
	return f.PerUnitCost == nil || f.CreditCount == nil
}

// TokenUsage tracks token consumption across provider calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ExtractionRecord is the final, immutable output of one pipeline run.
// The store appends it as a new version of the (project, school, program)
// key; prior versions are never overwritten.
type ExtractionRecord struct {
	ID      string `json:"id"`
	Project string `json:"project,omitempty"`
	School  string `json:"school"`
	Program string `json:"program"`
	Version int    `json:"version,omitempty"`

	Facts     ExtractedFacts       `json:"facts"`
	Citations []Citation           `json:"citations"`
	Verdict   *VerificationVerdict `json:"verdict,omitempty"`

	// Attempts counts extraction calls issued, including name-variant
	// retries. VariantUsed is the alternate phrasing that succeeded, if any.
	Attempts    int      `json:"attempts"`
	VariantUsed string   `json:"variant_used,omitempty"`
	NamesTried  []string `json:"names_tried,omitempty"`
	AuditNote   string   `json:"audit_note,omitempty"`

	DurationMS int64      `json:"duration_ms"`
	Usage      TokenUsage `json:"usage"`
	CreatedAt  time.Time  `json:"created_at"`
}
