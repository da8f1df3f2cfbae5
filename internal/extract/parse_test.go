package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tuition-cli/internal/model"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"prose wrapped", "Here is the data:\n{\"a\": 1}\nHope that helps!", `{"a": 1}`, true},
		{"code fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"nested braces", `{"a": {"b": {"c": 1}}}`, `{"a": {"b": {"c": 1}}}`, true},
		{"brace in string", `{"a": "closing } inside"}`, `{"a": "closing } inside"}`, true},
		{"escaped quote in string", `{"a": "quote \" and } brace"}`, `{"a": "quote \" and } brace"}`, true},
		{"no object", "no json here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFinancial_Success(t *testing.T) {
	facts, err := parseFinancial(`{
		"status": "success",
		"tuition_amount": "$76,000",
		"tuition_period": "total program",
		"academic_year": "2025-2026",
		"per_unit_cost": "$2,541",
		"credit_count": 63,
		"additional_fees": "$500 technology fee",
		"remarks": null
	}`)
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, facts.Status)
	require.NotNil(t, facts.TuitionAmount)
	assert.Equal(t, "$76,000", *facts.TuitionAmount)
	require.NotNil(t, facts.CreditCount)
	assert.Equal(t, 63.0, *facts.CreditCount)
	assert.Nil(t, facts.Remarks)
}

func TestParseFinancial_NotFoundDiscardsStrayFields(t *testing.T) {
	facts, err := parseFinancial(`{"status": "not_found", "tuition_amount": "$99,999"}`)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotFound, facts.Status)
	assert.False(t, facts.HasFinancials())
}

func TestParseFinancial_UnrecognizedStatus(t *testing.T) {
	_, err := parseFinancial(`{"status": "maybe"}`)
	require.Error(t, err)
}

func TestParseFinancial_NoJSON(t *testing.T) {
	_, err := parseFinancial("I could not find any tuition information.")
	require.Error(t, err)
}

func TestParseFinancial_TrailingQualifierStripped(t *testing.T) {
	facts, err := parseFinancial(`{"status": "success", "tuition_amount": "$76,000 (total)"}`)
	require.NoError(t, err)
	require.NotNil(t, facts.TuitionAmount)
	assert.Equal(t, "$76,000", *facts.TuitionAmount)
}

func TestParseFinancial_NonResidentMovedToRemarks(t *testing.T) {
	facts, err := parseFinancial(`{
		"status": "success",
		"tuition_amount": "$42,000 non-resident",
		"remarks": "rates vary by residency"
	}`)
	require.NoError(t, err)

	assert.Nil(t, facts.TuitionAmount, "non-resident rate must not occupy the primary field")
	require.NotNil(t, facts.Remarks)
	assert.Contains(t, *facts.Remarks, "rates vary by residency")
	assert.Contains(t, *facts.Remarks, "$42,000 non-resident")
}

func TestParseFinancial_FlexibleTypes(t *testing.T) {
	facts, err := parseFinancial(`{
		"status": "success",
		"tuition_amount": 76000,
		"credit_count": "63 credits"
	}`)
	require.NoError(t, err)

	require.NotNil(t, facts.TuitionAmount)
	assert.Equal(t, "76000", *facts.TuitionAmount)
	require.NotNil(t, facts.CreditCount)
	assert.Equal(t, 63.0, *facts.CreditCount)
}

func TestParseCurriculum(t *testing.T) {
	facts, err := parseCurriculum("```json\n" + `{
		"credit_count": 63,
		"program_length": "21 months",
		"official_program_name": "Professional MBA",
		"is_stem": true
	}` + "\n```")
	require.NoError(t, err)

	require.NotNil(t, facts.CreditCount)
	assert.Equal(t, 63.0, *facts.CreditCount)
	require.NotNil(t, facts.ProgramLength)
	assert.Equal(t, "21 months", *facts.ProgramLength)
	require.NotNil(t, facts.OfficialName)
	assert.Equal(t, "Professional MBA", *facts.OfficialName)
	require.NotNil(t, facts.IsSTEM)
	assert.True(t, *facts.IsSTEM)
}

func TestParseCurriculum_AllNull(t *testing.T) {
	facts, err := parseCurriculum(`{"credit_count": null, "program_length": null, "official_program_name": null, "is_stem": null}`)
	require.NoError(t, err)
	assert.Nil(t, facts.CreditCount)
	assert.Nil(t, facts.ProgramLength)
	assert.Nil(t, facts.OfficialName)
	assert.Nil(t, facts.IsSTEM)
}
