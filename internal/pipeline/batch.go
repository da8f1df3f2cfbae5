package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/tuition-cli/internal/model"
)

// BatchConfig tunes batch dispatch. The defaults are conservative: one
// item in flight, one dispatch per second, to respect provider limits.
type BatchConfig struct {
	MaxConcurrency int
	ItemsPerSecond float64
}

// BatchItem is the outcome of one batch entry. Err is set when the item
// failed terminally; the record is still present when one was persisted.
type BatchItem struct {
	Request model.ExtractionRequest
	Record  *model.ExtractionRecord
	Err     error
}

// RunBatch processes the requests with a bounded worker pool and a rate
// limiter pacing dispatch. A failed item is recorded and the batch
// continues. Cancelling the context stops dispatching new items; results
// for completed items remain usable.
func (p *Pipeline) RunBatch(ctx context.Context, reqs []model.ExtractionRequest, cfg BatchConfig) []BatchItem {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	limit := rate.Inf
	if cfg.ItemsPerSecond > 0 {
		limit = rate.Limit(cfg.ItemsPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	zap.L().Info("pipeline: batch started",
		zap.Int("items", len(reqs)),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Float64("items_per_second", cfg.ItemsPerSecond),
	)

	results := make([]BatchItem, len(reqs))

	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				results[i] = BatchItem{Request: req, Err: err}
				return nil
			}
			rec, err := p.Run(ctx, req)
			results[i] = BatchItem{Request: req, Record: rec, Err: err}
			if err != nil {
				zap.L().Warn("pipeline: batch item failed, continuing",
					zap.String("school", req.School),
					zap.String("program", req.Program),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	zap.L().Info("pipeline: batch finished",
		zap.Int("items", len(reqs)),
		zap.Int("failed", failed),
	)
	return results
}
