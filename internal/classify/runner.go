package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/cashflow/internal/clock"
	"github.com/cleared-dev/cashflow/internal/id"
	"github.com/cleared-dev/cashflow/internal/model"
	"github.com/cleared-dev/cashflow/internal/observability"
	"github.com/cleared-dev/cashflow/internal/store"
)

// ErrCommitFailed is returned when a batch could not be persisted. None of
// the batch's updates were stored.
var ErrCommitFailed = errors.New("classification commit failed")

// Store is the persistence the Runner needs.
type Store interface {
	Records(ctx context.Context, f store.Filter) ([]model.TransactionRecord, error)
	ApplyResults(ctx context.Context, results []model.ClassificationResult) error
}

// Options control one classification run.
type Options struct {
	Force bool // reclassify records that already have a category
	Limit int  // 0 means no limit
}

// Bands are the confidence thresholds used to bucket run statistics.
type Bands struct {
	High   decimal.Decimal
	Medium decimal.Decimal
}

// DefaultBands returns high >= 0.85, medium >= 0.70.
func DefaultBands() Bands {
	return Bands{High: decimal.RequireFromString("0.85"), Medium: decimal.RequireFromString("0.70")}
}

func (b Bands) bucket(c decimal.Decimal) string {
	switch {
	case c.GreaterThanOrEqual(b.High):
		return "high"
	case c.GreaterThanOrEqual(b.Medium):
		return "medium"
	default:
		return "low"
	}
}

// ConfidenceCounts buckets successful classifications by confidence.
type ConfidenceCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// RecordError is one record that could not be classified.
type RecordError struct {
	RecordID string `json:"record_id"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

// RunStats summarises a classification run.
type RunStats struct {
	RunID          string                 `json:"run_id"`
	StartedAt      time.Time              `json:"started_at"`
	Force          bool                   `json:"force"`
	TotalProcessed int                    `json:"total_processed"`
	Successful     int                    `json:"successful_classifications"`
	Failed         int                    `json:"failed_classifications"`
	NeedsReview    int                    `json:"needs_review"`
	Applied        int                    `json:"applied"`
	ByCategory     map[model.Category]int `json:"by_category"`
	ByAccount      map[string]int         `json:"by_account"`
	ByConfidence   ConfidenceCounts       `json:"by_confidence"`
	Errors         []RecordError          `json:"errors"`
	Elapsed        time.Duration          `json:"elapsed_ns"`
	SuccessRate    decimal.Decimal        `json:"success_rate"`
}

// RunnerConfig holds optional Runner collaborators. Zero values get
// defaults: a no-op logger, no metrics, the real clock, DefaultBands.
type RunnerConfig struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Clock   clock.Clock
	Bands   *Bands
}

// Runner classifies stored records in batches.
type Runner struct {
	classifier *Classifier
	store      Store
	logger     *zap.Logger
	metrics    *observability.Metrics
	clock      clock.Clock
	bands      Bands
}

// NewRunner creates a Runner.
func NewRunner(c *Classifier, s Store, cfg RunnerConfig) *Runner {
	r := &Runner{
		classifier: c,
		store:      s,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		clock:      cfg.Clock,
		bands:      DefaultBands(),
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.clock == nil {
		r.clock = clock.Real{}
	}
	if cfg.Bands != nil {
		r.bands = *cfg.Bands
	}
	return r
}

// Run classifies every unclassified record (every record with Force) and
// stores all results in one commit.
//
// A record that fails classification is reported in RunStats.Errors and left
// untouched; the rest of the batch continues. If the commit fails, nothing
// is stored, Applied is zero and the error wraps ErrCommitFailed.
func (r *Runner) Run(ctx context.Context, opts Options) (RunStats, error) {
	start := r.clock.Now()
	stats := RunStats{
		RunID:       id.NewRunID(start),
		StartedAt:   start,
		Force:       opts.Force,
		ByCategory:  map[model.Category]int{},
		ByAccount:   map[string]int{},
		SuccessRate: decimal.Zero,
	}
	log := r.logger.With(zap.String("run_id", stats.RunID))

	recs, err := r.store.Records(ctx, store.Filter{Unclassified: !opts.Force, Limit: opts.Limit})
	if err != nil {
		return stats, fmt.Errorf("loading records: %w", err)
	}
	log.Info("classification run started", zap.Int("records", len(recs)), zap.Bool("force", opts.Force))

	results := make([]model.ClassificationResult, 0, len(recs))
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.TotalProcessed++

		res, err := r.classifier.Classify(rec)
		if err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, RecordError{RecordID: rec.ID, Message: err.Error(), Err: err})
			r.metrics.IncrClassified(observability.OutcomeError)
			log.Warn("record not classified", zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		results = append(results, res)

		if res.NeedsReview {
			stats.NeedsReview++
		}
		if !res.Classified() {
			r.metrics.IncrClassified(observability.OutcomeReview)
			continue
		}
		stats.Successful++
		stats.ByCategory[res.Class.Category]++
		stats.ByAccount[rec.AccountName]++
		switch r.bands.bucket(res.Confidence) {
		case "high":
			stats.ByConfidence.High++
		case "medium":
			stats.ByConfidence.Medium++
		default:
			stats.ByConfidence.Low++
		}
		r.metrics.IncrClassified(observability.OutcomeClassified)
	}

	if len(results) > 0 {
		if err := r.store.ApplyResults(ctx, results); err != nil {
			stats.Elapsed = r.clock.Now().Sub(start)
			log.Error("classification commit failed, batch rolled back", zap.Error(err))
			return stats, fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
		stats.Applied = len(results)
	}

	if stats.TotalProcessed > 0 {
		stats.SuccessRate = decimal.NewFromInt(int64(stats.Successful)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(stats.TotalProcessed))).
			Round(1)
	}
	stats.Elapsed = r.clock.Now().Sub(start)
	r.metrics.ObserveRun(stats.Elapsed)

	log.Info("classification run finished",
		zap.Int("processed", stats.TotalProcessed),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed),
		zap.Int("needs_review", stats.NeedsReview),
		zap.String("success_rate", stats.SuccessRate.String()),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}
