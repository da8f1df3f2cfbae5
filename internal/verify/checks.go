// Package verify judges extracted facts against their cited sources with
// four deterministic checks and one AI critique, aggregated into a
// confidence tier and an actionable status.
package verify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sells-group/tuition-cli/internal/model"
)

// arithmeticTolerance is the allowed relative gap between the stated
// tuition and the per-credit product.
const arithmeticTolerance = 0.05

// Plausibility bounds for US graduate programs.
const (
	minTuition = 5000
	maxTuition = 300000
	minPerUnit = 100
	maxPerUnit = 5000
	minCredits = 20
	maxCredits = 100
)

// aggregatorDomains are third-party sites whose tuition figures are
// frequently stale; a citation from one never satisfies the source check.
var aggregatorDomains = []string{
	"usnews.com",
	"niche.com",
	"petersons.com",
	"princetonreview.com",
	"collegeboard.org",
	"collegefactual.com",
	"poetsandquants.com",
	"mba.com",
	"wikipedia.org",
	"appily.com",
}

// schoolNameStopwords are words too generic to identify a school in a
// domain name. Connectives additionally stay out of the initialism
// ("Massachusetts Institute of Technology" abbreviates to mit, not miot).
var schoolNameStopwords = map[string]bool{
	"university": true,
	"college":    true,
	"institute":  true,
	"school":     true,
	"the":        true,
	"of":         true,
	"at":         true,
	"and":        true,
	"for":        true,
}

var connectiveWords = map[string]bool{
	"the": true,
	"of":  true,
	"at":  true,
	"and": true,
	"for": true,
}

// arithmeticCheck verifies the stated tuition against per-credit cost
// times credit count, within tolerance. Skipped when any operand is
// missing or unparseable.
func arithmeticCheck(f *model.ExtractedFacts) model.CheckResult {
	const name = "arithmetic"

	if f.TuitionAmount == nil || f.PerUnitCost == nil || f.CreditCount == nil {
		return model.CheckResult{Name: name, Outcome: model.CheckSkip, Detail: "missing operand"}
	}
	tuition, ok := model.ParseDollars(*f.TuitionAmount)
	if !ok || tuition == 0 {
		return model.CheckResult{Name: name, Outcome: model.CheckSkip, Detail: "tuition amount not numeric"}
	}
	perUnit, ok := model.ParseDollars(*f.PerUnitCost)
	if !ok {
		return model.CheckResult{Name: name, Outcome: model.CheckSkip, Detail: "per-unit cost not numeric"}
	}

	product := perUnit * *f.CreditCount
	rel := (tuition - product) / tuition
	if rel < 0 {
		rel = -rel
	}
	detail := fmt.Sprintf("stated %s vs %s x %g = %s (gap %.1f%%)",
		model.FormatDollars(tuition), model.FormatDollars(perUnit), *f.CreditCount,
		model.FormatDollars(product), rel*100)
	if rel <= arithmeticTolerance {
		return model.CheckResult{Name: name, Outcome: model.CheckPass, Detail: detail}
	}
	return model.CheckResult{Name: name, Outcome: model.CheckFail, Detail: detail}
}

// sourceCheck passes when at least one citation resolves to a domain
// plausibly owned by the school; warns when the match is partial; fails
// when there are no citations or only aggregators/unrelated sites.
func sourceCheck(school string, citations []model.Citation) model.CheckResult {
	const name = "source"

	if len(citations) == 0 {
		return model.CheckResult{Name: name, Outcome: model.CheckFail, Detail: "no citations"}
	}

	partial := ""
	for _, c := range citations {
		host := hostOf(c.URL)
		if host == "" || isAggregator(host) {
			continue
		}
		match := domainMatchesSchool(host, school)
		edu := strings.HasSuffix(host, ".edu") || strings.Contains(host, ".edu.")
		switch {
		case match && edu:
			return model.CheckResult{Name: name, Outcome: model.CheckPass,
				Detail: fmt.Sprintf("%s matches %q", host, school)}
		case match || edu:
			if partial == "" {
				partial = host
			}
		}
	}
	if partial != "" {
		return model.CheckResult{Name: name, Outcome: model.CheckWarn,
			Detail: fmt.Sprintf("%s is plausible but not clearly owned by %q", partial, school)}
	}
	return model.CheckResult{Name: name, Outcome: model.CheckFail,
		Detail: fmt.Sprintf("no citation resolves to a domain owned by %q", school)}
}

// completenessCheck scores field completeness 0-100: 50% required
// financial fields, 35% important program fields, 15% optional context.
func completenessCheck(f *model.ExtractedFacts) (model.CheckResult, int) {
	const name = "completeness"

	required := presentFraction(f.TuitionAmount != nil, f.TuitionPeriod != nil, f.AcademicYear != nil)
	important := presentFraction(f.PerUnitCost != nil, f.CreditCount != nil, f.ProgramLength != nil)
	optional := presentFraction(f.IsSTEM != nil, f.AdditionalFees != nil, f.Remarks != nil)

	score := int(50*required + 35*important + 15*optional + 0.5)
	detail := fmt.Sprintf("score %d/100", score)

	switch {
	case score >= 70:
		return model.CheckResult{Name: name, Outcome: model.CheckPass, Detail: detail}, score
	case score >= 40:
		return model.CheckResult{Name: name, Outcome: model.CheckWarn, Detail: detail}, score
	default:
		return model.CheckResult{Name: name, Outcome: model.CheckFail, Detail: detail}, score
	}
}

// plausibilityCheck bounds-checks every numeric fact that is present.
func plausibilityCheck(f *model.ExtractedFacts) model.CheckResult {
	const name = "plausibility"

	var violations []string
	checked := false

	if f.TuitionAmount != nil {
		if v, ok := model.ParseDollars(*f.TuitionAmount); ok {
			checked = true
			if v < minTuition || v > maxTuition {
				violations = append(violations, fmt.Sprintf("tuition %s outside [%s, %s]",
					model.FormatDollars(v), model.FormatDollars(minTuition), model.FormatDollars(maxTuition)))
			}
		}
	}
	if f.PerUnitCost != nil {
		if v, ok := model.ParseDollars(*f.PerUnitCost); ok {
			checked = true
			if v < minPerUnit || v > maxPerUnit {
				violations = append(violations, fmt.Sprintf("per-unit cost %s outside [%s, %s]",
					model.FormatDollars(v), model.FormatDollars(minPerUnit), model.FormatDollars(maxPerUnit)))
			}
		}
	}
	if f.CreditCount != nil {
		checked = true
		if *f.CreditCount < minCredits || *f.CreditCount > maxCredits {
			violations = append(violations, fmt.Sprintf("credit count %g outside [%d, %d]",
				*f.CreditCount, minCredits, maxCredits))
		}
	}

	switch {
	case len(violations) > 0:
		return model.CheckResult{Name: name, Outcome: model.CheckFail, Detail: strings.Join(violations, "; ")}
	case !checked:
		return model.CheckResult{Name: name, Outcome: model.CheckSkip, Detail: "no numeric facts"}
	default:
		return model.CheckResult{Name: name, Outcome: model.CheckPass}
	}
}

func presentFraction(fields ...bool) float64 {
	n := 0
	for _, f := range fields {
		if f {
			n++
		}
	}
	return float64(n) / float64(len(fields))
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func isAggregator(host string) bool {
	for _, d := range aggregatorDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// domainMatchesSchool checks the host against the school name's
// significant words and against its initialism (e.g. "mit").
func domainMatchesSchool(host, school string) bool {
	host = strings.ToLower(host)
	var initials strings.Builder
	for _, word := range strings.Fields(strings.ToLower(school)) {
		word = strings.Trim(word, ".,()&")
		if word == "" {
			continue
		}
		if !connectiveWords[word] {
			initials.WriteByte(word[0])
		}
		if !schoolNameStopwords[word] && len(word) > 3 && strings.Contains(host, word) {
			return true
		}
	}
	if abbr := initials.String(); len(abbr) >= 2 {
		for _, label := range strings.Split(host, ".") {
			if label == abbr {
				return true
			}
		}
	}
	return false
}
