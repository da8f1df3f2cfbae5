// Package extract runs the two-phase tuition extraction against the
// grounded model: a financial phase always, and a curriculum phase when
// per-credit math is still incomplete.
package extract

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/resilience"
	"github.com/sells-group/tuition-cli/pkg/gemini"
)

// Result bundles the facts with the raw grounded response they came from
// and the tokens spent producing them.
type Result struct {
	Facts    *model.ExtractedFacts
	Response *gemini.GenerateResponse
	Usage    model.TokenUsage

	// VariantUsed is the alternate program phrasing that succeeded, if
	// the original name came back not found.
	VariantUsed string
}

// Config tunes the extractor. Zero values fall back to defaults.
type Config struct {
	Retry       resilience.RetryConfig
	MaxVariants int
	MaxTokens   int
}

// Extractor issues grounded extraction calls and parses their output.
type Extractor struct {
	client      gemini.Client
	retry       resilience.RetryConfig
	maxVariants int
	maxTokens   int
}

// New creates an extractor over the given client.
func New(client gemini.Client, cfg Config) *Extractor {
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = retryable
	}
	if cfg.MaxVariants == 0 {
		cfg.MaxVariants = 3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return &Extractor{
		client:      client,
		retry:       cfg.Retry,
		maxVariants: cfg.MaxVariants,
		maxTokens:   cfg.MaxTokens,
	}
}

// retryable classifies provider errors for the backoff loop: API status
// codes by their failure class, everything else by the transient check.
func retryable(err error) bool {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTPStatus(apiErr.StatusCode) != resilience.FailurePermanent
	}
	return resilience.IsTransient(err)
}

type phaseResult struct {
	facts *model.ExtractedFacts
	resp  *gemini.GenerateResponse
}

// Extract runs the financial phase and, when per-credit data is still
// incomplete, the curriculum phase. A curriculum failure degrades to the
// financial facts alone; a financial failure fails the extraction, with
// the last raw output preserved for review.
func (x *Extractor) Extract(ctx context.Context, school, program string) (*Result, error) {
	result := &Result{}
	var lastRaw string

	pr, err := x.runPhase(ctx, x.retry, "financial extraction",
		financialSystemText, fmt.Sprintf(financialPrompt, school, program),
		parseFinancial, &result.Usage, &lastRaw)
	if err != nil {
		result.Facts = &model.ExtractedFacts{Status: model.StatusFailed, RawText: lastRaw}
		return result, err
	}
	result.Facts = pr.facts
	result.Response = pr.resp

	if pr.facts.Status == model.StatusNotFound {
		return result, nil
	}

	// Grounding came back with no sources. One fresh attempt, outside the
	// variant budget, before settling for an uncited answer.
	if len(pr.resp.Chunks) == 0 {
		zap.L().Info("extract: response carried no grounding sources, reissuing once",
			zap.String("school", school),
			zap.String("program", program),
		)
		single := x.retry
		single.MaxRetries = 0
		if regrounded, rerr := x.runPhase(ctx, single, "financial extraction (regrounding)",
			financialSystemText, fmt.Sprintf(financialPrompt, school, program),
			parseFinancial, &result.Usage, &lastRaw); rerr == nil && len(regrounded.resp.Chunks) > 0 {
			result.Facts = regrounded.facts
			result.Response = regrounded.resp
		}
	}

	if result.Facts.NeedsCurriculum() {
		cur, cerr := x.runPhase(ctx, x.retry, "curriculum extraction",
			curriculumSystemText, fmt.Sprintf(curriculumPrompt, school, program),
			parseCurriculum, &result.Usage, &lastRaw)
		if cerr != nil {
			zap.L().Warn("extract: curriculum phase failed, keeping financial facts",
				zap.String("school", school),
				zap.String("program", program),
				zap.Error(cerr),
			)
		} else {
			mergeCurriculum(result.Facts, cur.facts)
		}
	}

	computeDerivedTotal(result.Facts)
	return result, nil
}

func (x *Extractor) runPhase(
	ctx context.Context,
	cfg resilience.RetryConfig,
	label, system, prompt string,
	parse func(string) (*model.ExtractedFacts, error),
	usage *model.TokenUsage,
	lastRaw *string,
) (*phaseResult, error) {
	return resilience.Execute(ctx, cfg, label, func(ctx context.Context) (*phaseResult, error) {
		resp, err := x.client.Generate(ctx, gemini.GenerateRequest{
			Prompt:    prompt,
			System:    system,
			Grounding: true,
			MaxTokens: x.maxTokens,
		})
		if err != nil {
			return nil, err
		}
		usage.Add(model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CandidateTokens,
		})
		*lastRaw = resp.Text

		facts, perr := parse(resp.Text)
		if perr != nil {
			// Malformed output is worth a fresh call.
			return nil, resilience.NewTransientError(perr, resilience.FailureInternal)
		}
		return &phaseResult{facts: facts, resp: resp}, nil
	})
}

// mergeCurriculum fills gaps in the financial facts; financial values
// always win on conflict.
func mergeCurriculum(dst, cur *model.ExtractedFacts) {
	if dst.CreditCount == nil {
		dst.CreditCount = cur.CreditCount
	}
	if dst.ProgramLength == nil {
		dst.ProgramLength = cur.ProgramLength
	}
	if dst.OfficialName == nil {
		dst.OfficialName = cur.OfficialName
	}
	if dst.IsSTEM == nil {
		dst.IsSTEM = cur.IsSTEM
	}
}

// computeDerivedTotal multiplies per-credit cost by credit count. The
// derived figure backfills the tuition amount only when the school never
// stated a total.
func computeDerivedTotal(f *model.ExtractedFacts) {
	if f.PerUnitCost == nil || f.CreditCount == nil {
		return
	}
	perUnit, ok := model.ParseDollars(*f.PerUnitCost)
	if !ok {
		return
	}
	total := model.FormatDollars(perUnit * *f.CreditCount)
	f.CalculatedTotal = &total

	if f.TuitionAmount == nil {
		f.TuitionAmount = &total
		if f.TuitionPeriod == nil {
			period := "total program"
			f.TuitionPeriod = &period
		}
	}
}
