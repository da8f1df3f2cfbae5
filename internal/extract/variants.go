package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tuition-cli/internal/model"
)

// programVariants maps common program phrasings to alternate names
// schools use for the same offering. Keys are lowercase.
var programVariants = map[string][]string{
	"part-time mba": {"Professional MBA", "Weekend MBA", "Evening MBA", "Flex MBA"},
	"full-time mba": {"Two-Year MBA", "Day MBA", "Full Time MBA Program"},
	"executive mba": {"EMBA", "Executive MBA Program"},
	"online mba":    {"Online MBA Program", "MBA Online", "Distance MBA"},

	"ms in business analytics": {"MS Business Analytics", "Master of Science in Business Analytics", "MSBA"},
	"ms in computer science":   {"MS Computer Science", "Master of Science in Computer Science", "MSCS"},
	"ms in data science":       {"MS Data Science", "Master of Science in Data Science"},
	"ms in finance":            {"Master of Science in Finance", "Master of Finance", "MSF"},
	"master of accounting":     {"Master of Accountancy", "MAcc", "MS in Accounting"},
}

// VariantsFor returns alternate phrasings for a program name, or nil when
// none are known. Lookup is case-insensitive.
func VariantsFor(program string) []string {
	return programVariants[strings.ToLower(strings.TrimSpace(program))]
}

// ExtractWithVariants runs the extraction and, when the program comes back
// not found under its original name, retries under known alternate
// phrasings. The variant budget is independent of the per-call backoff
// budget. Every phrasing attempted is appended to req.TriedNames, and the
// returned count is the number of full extraction runs issued.
func (x *Extractor) ExtractWithVariants(ctx context.Context, req *model.ExtractionRequest) (*Result, int, error) {
	var total model.TokenUsage

	req.TriedNames = append(req.TriedNames, req.Program)
	res, err := x.Extract(ctx, req.School, req.Program)
	attempts := 1
	total.Add(res.Usage)
	res.Usage = total
	if err != nil || res.Facts.Status != model.StatusNotFound {
		return res, attempts, err
	}

	variants := VariantsFor(req.Program)
	budget := x.maxVariants
	if len(variants) < budget {
		budget = len(variants)
	}

	for i := 0; i < budget; i++ {
		if ctx.Err() != nil {
			break
		}
		name := variants[i]
		zap.L().Info("extract: program not found, trying name variant",
			zap.String("school", req.School),
			zap.String("program", req.Program),
			zap.String("variant", name),
		)

		req.TriedNames = append(req.TriedNames, name)
		vres, verr := x.Extract(ctx, req.School, name)
		attempts++
		total.Add(vres.Usage)
		vres.Usage = total
		if verr != nil {
			return vres, attempts, verr
		}
		res = vres
		if vres.Facts.Status != model.StatusNotFound {
			vres.VariantUsed = name
			return vres, attempts, nil
		}
	}

	return res, attempts, nil
}
