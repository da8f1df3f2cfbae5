// Package pipeline wires extraction, citation building, verification, and
// persistence into the end-to-end flow for one request, and fans a batch
// of requests across a bounded worker pool.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tuition-cli/internal/citation"
	"github.com/sells-group/tuition-cli/internal/extract"
	"github.com/sells-group/tuition-cli/internal/model"
	"github.com/sells-group/tuition-cli/internal/store"
	"github.com/sells-group/tuition-cli/internal/verify"
)

// Config tunes per-run behavior.
type Config struct {
	// RetryOnRecommendation allows one re-extraction under the same name
	// when the verifier recommends it. Never loops more than once.
	RetryOnRecommendation bool
}

// Pipeline runs the extraction flow for tuition requests.
type Pipeline struct {
	extractor *extract.Extractor
	citations citation.Extractor
	verifier  *verify.Verifier
	store     store.Store
	cfg       Config
}

// New assembles a pipeline from its collaborators.
func New(extractor *extract.Extractor, citations citation.Extractor, verifier *verify.Verifier, st store.Store, cfg Config) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		citations: citations,
		verifier:  verifier,
		store:     st,
		cfg:       cfg,
	}
}

// Run executes one extraction end to end and persists the outcome. Every
// outcome is persisted, including NotFound and Failed, so an operator can
// see why no data exists. The record is returned alongside any terminal
// extraction error.
func (p *Pipeline) Run(ctx context.Context, req model.ExtractionRequest) (*model.ExtractionRecord, error) {
	start := time.Now()
	zap.L().Info("pipeline: run started",
		zap.String("project", req.Project),
		zap.String("school", req.School),
		zap.String("program", req.Program),
	)

	record := &model.ExtractionRecord{
		Project: req.Project,
		School:  req.School,
		Program: req.Program,
	}

	res, attempts, extractErr := p.extractor.ExtractWithVariants(ctx, &req)
	record.Attempts = attempts
	record.NamesTried = req.TriedNames
	record.Facts = *res.Facts
	record.VariantUsed = res.VariantUsed
	record.Usage = res.Usage
	record.AuditNote = auditNote(req.TriedNames, res.VariantUsed, res.Facts.Status)

	// Citations are kept whatever the outcome, so a reviewer can judge a
	// NotFound or Failed result against what the model actually saw.
	record.Citations = p.citations.Extract(res.Response, res.Facts)

	if extractErr == nil && res.Facts.Status == model.StatusSuccess {
		verdict, verifyUsage := p.verifier.Verify(ctx, res.Facts, record.Citations, req.School, req.Program)
		record.Verdict = verdict
		record.Usage.Add(verifyUsage)

		if verdict.Status == model.VerificationRetryRecommended && p.cfg.RetryOnRecommendation {
			p.retryOnce(ctx, &req, record, res.VariantUsed)
		}
	}

	// An uncited record still carries a readable narrative: synthesize
	// one from the facts so the audit trail is never empty.
	if len(record.Citations) == 0 {
		summary := citation.FallbackSummary(&record.Facts)
		if record.AuditNote == "" {
			record.AuditNote = summary
		} else {
			record.AuditNote += "; " + summary
		}
	}

	record.DurationMS = time.Since(start).Milliseconds()

	if err := p.store.SaveRecord(ctx, record); err != nil {
		zap.L().Error("pipeline: persist failed",
			zap.String("school", req.School),
			zap.String("program", req.Program),
			zap.Error(err),
		)
		if extractErr != nil {
			return record, extractErr
		}
		return record, eris.Wrap(err, "pipeline: persist record")
	}

	zap.L().Info("pipeline: run finished",
		zap.String("school", req.School),
		zap.String("program", req.Program),
		zap.String("status", string(record.Facts.Status)),
		zap.Int("attempts", record.Attempts),
		zap.Int64("duration_ms", record.DurationMS),
	)
	return record, extractErr
}

// retryOnce re-extracts under the name that produced the facts and, when
// the fresh result is usable, replaces facts, citations, and verdict.
func (p *Pipeline) retryOnce(ctx context.Context, req *model.ExtractionRequest, record *model.ExtractionRecord, variantUsed string) {
	name := req.Program
	if variantUsed != "" {
		name = variantUsed
	}
	zap.L().Info("pipeline: verifier recommended retry, re-extracting once",
		zap.String("school", req.School),
		zap.String("program", name),
	)

	res, err := p.extractor.Extract(ctx, req.School, name)
	record.Attempts++
	record.Usage.Add(res.Usage)
	if err != nil || res.Facts.Status != model.StatusSuccess {
		zap.L().Warn("pipeline: recommended retry did not improve the result",
			zap.String("school", req.School),
			zap.String("program", name),
			zap.Error(err),
		)
		return
	}

	citations := p.citations.Extract(res.Response, res.Facts)
	verdict, verifyUsage := p.verifier.Verify(ctx, res.Facts, citations, req.School, req.Program)
	record.Usage.Add(verifyUsage)

	record.Facts = *res.Facts
	record.Citations = citations
	record.Verdict = verdict
}

// auditNote summarizes the name-variant trail for the record.
func auditNote(tried []string, variantUsed string, status model.ExtractionStatus) string {
	if len(tried) <= 1 {
		return ""
	}
	note := "names tried: " + strings.Join(tried, ", ")
	switch {
	case variantUsed != "":
		note += "; found under " + variantUsed
	case status == model.StatusNotFound:
		note += "; none found"
	}
	return note
}
