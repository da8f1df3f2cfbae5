package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/sanitize"
)

// flexString tolerates providers returning a bare number where the schema
// asks for a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return eris.Errorf("extract: expected string, got %s", string(b))
}

// flexFloat tolerates numeric strings like "63" or "63 credits" where the
// schema asks for a number.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Errorf("extract: expected number, got %s", string(b))
	}
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || s[end] == ',') {
		end++
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s[:end], ",", ""), 64)
	if err != nil {
		return eris.Errorf("extract: expected number, got %q", s)
	}
	*f = flexFloat(v)
	return nil
}

type financialPayload struct {
	Status         string      `json:"status"`
	TuitionAmount  *flexString `json:"tuition_amount"`
	TuitionPeriod  *flexString `json:"tuition_period"`
	AcademicYear   *flexString `json:"academic_year"`
	PerUnitCost    *flexString `json:"per_unit_cost"`
	CreditCount    *flexFloat  `json:"credit_count"`
	AdditionalFees *flexString `json:"additional_fees"`
	Remarks        *flexString `json:"remarks"`
}

type curriculumPayload struct {
	CreditCount   *flexFloat  `json:"credit_count"`
	ProgramLength *flexString `json:"program_length"`
	OfficialName  *flexString `json:"official_program_name"`
	IsSTEM        *bool       `json:"is_stem"`
}

// extractJSONObject returns the outermost balanced JSON object embedded in
// s, skipping any prose or code fences the model wrapped around it.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// parseFinancial parses a financial-phase response into facts. A
// not_found status discards any stray field values so the result carries
// no financial data.
func parseFinancial(text string) (*model.ExtractedFacts, error) {
	payload, ok := extractJSONObject(text)
	if !ok {
		return nil, eris.New("extract: no JSON object in response")
	}

	var p financialPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, eris.Wrap(err, "extract: parse financial payload")
	}

	switch p.Status {
	case "not_found":
		return &model.ExtractedFacts{Status: model.StatusNotFound}, nil
	case "success", "":
	default:
		return nil, eris.Errorf("extract: unrecognized status %q", p.Status)
	}

	facts := &model.ExtractedFacts{
		TuitionAmount:  strField(p.TuitionAmount),
		TuitionPeriod:  strField(p.TuitionPeriod),
		AcademicYear:   strField(p.AcademicYear),
		PerUnitCost:    strField(p.PerUnitCost),
		CreditCount:    floatField(p.CreditCount),
		AdditionalFees: strField(p.AdditionalFees),
		Remarks:        strField(p.Remarks),
		Status:         model.StatusSuccess,
	}
	normalizeFinancial(facts)
	return facts, nil
}

// parseCurriculum parses a curriculum-phase response. Only the curriculum
// fields of the result are set.
func parseCurriculum(text string) (*model.ExtractedFacts, error) {
	payload, ok := extractJSONObject(text)
	if !ok {
		return nil, eris.New("extract: no JSON object in response")
	}

	var p curriculumPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, eris.Wrap(err, "extract: parse curriculum payload")
	}

	return &model.ExtractedFacts{
		CreditCount:   floatField(p.CreditCount),
		ProgramLength: strField(p.ProgramLength),
		OfficialName:  strField(p.OfficialName),
		IsSTEM:        p.IsSTEM,
		Status:        model.StatusSuccess,
	}, nil
}

// normalizeFinancial cleans stated amounts and keeps non-resident rates
// out of the primary amount field.
func normalizeFinancial(f *model.ExtractedFacts) {
	if f.TuitionAmount != nil {
		amount := sanitize.StripTrailingQualifier(*f.TuitionAmount)
		if amount == "" {
			f.TuitionAmount = nil
		} else if mentionsNonResident(amount) {
			note := "Non-resident rate reported: " + amount
			if f.Remarks != nil {
				note = *f.Remarks + "; " + note
			}
			f.Remarks = &note
			f.TuitionAmount = nil
		} else {
			f.TuitionAmount = &amount
		}
	}
	if f.PerUnitCost != nil {
		cost := sanitize.StripTrailingQualifier(*f.PerUnitCost)
		if cost == "" {
			f.PerUnitCost = nil
		} else {
			f.PerUnitCost = &cost
		}
	}
}

func mentionsNonResident(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "non-resident") ||
		strings.Contains(l, "nonresident") ||
		strings.Contains(l, "out-of-state") ||
		strings.Contains(l, "out of state")
}

func strField(v *flexString) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(sanitize.StripControl(string(*v)))
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func floatField(v *flexFloat) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
