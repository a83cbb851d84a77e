// Package ledger wires the store to the classification, aggregation and
// projection engines. It is the single entry point used by the CLI and the
// HTTP API.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/cashflow/internal/accounts"
	"github.com/cleared-dev/cashflow/internal/cashflow"
	"github.com/cleared-dev/cashflow/internal/classify"
	"github.com/cleared-dev/cashflow/internal/clock"
	"github.com/cleared-dev/cashflow/internal/config"
	"github.com/cleared-dev/cashflow/internal/cycle"
	"github.com/cleared-dev/cashflow/internal/gitops"
	"github.com/cleared-dev/cashflow/internal/importer"
	"github.com/cleared-dev/cashflow/internal/journal"
	"github.com/cleared-dev/cashflow/internal/model"
	"github.com/cleared-dev/cashflow/internal/observability"
	"github.com/cleared-dev/cashflow/internal/projection"
	"github.com/cleared-dev/cashflow/internal/reconcile"
	"github.com/cleared-dev/cashflow/internal/runlog"
	"github.com/cleared-dev/cashflow/internal/store"
)

// Options holds optional collaborators. Zero values get defaults.
type Options struct {
	Root    string // workspace root; empty disables the run log
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Clock   clock.Clock
}

// Service answers every ledger question from the store.
type Service struct {
	store      *store.Store
	accounts   *accounts.Service
	classifier *classify.Classifier
	runner     *classify.Runner
	calc       *cashflow.Calculator
	projector  *projection.Projector
	root       string
	logger     *zap.Logger
	clock      clock.Clock

	// mu serialises classification runs.
	mu sync.Mutex
}

// New builds a Service from configuration.
func New(st *store.Store, cfg *config.Config, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	accts, err := accounts.FromConfig(cfg.Accounts)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	dir := accounts.NewService(accts)

	cal := cycle.Default()
	if cfg.CreditCard.CutDay > 0 {
		cal.CutDay = cfg.CreditCard.CutDay
	}
	if cfg.CreditCard.GraceDays > 0 {
		cal.GraceDays = cfg.CreditCard.GraceDays
	}

	classifier, err := classify.New(classify.RulesFromConfig(cfg.Rules), dir, cal)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}

	bands := classify.DefaultBands()
	if cfg.Thresholds.High > 0 {
		bands.High = decimal.NewFromFloat(cfg.Thresholds.High)
	}
	if cfg.Thresholds.Medium > 0 {
		bands.Medium = decimal.NewFromFloat(cfg.Thresholds.Medium)
	}

	proj := projection.New(opts.Clock)
	if cfg.Projection.DiscountFactor != "" {
		f, err := decimal.NewFromString(cfg.Projection.DiscountFactor)
		if err != nil {
			return nil, fmt.Errorf("parsing projection discount factor: %w", err)
		}
		proj.DiscountFactor = f
	}
	if cfg.Projection.HorizonDays > 0 {
		proj.Horizon = cfg.Projection.HorizonDays
	}

	return &Service{
		store:      st,
		accounts:   dir,
		classifier: classifier,
		runner: classify.NewRunner(classifier, st, classify.RunnerConfig{
			Logger:  opts.Logger,
			Metrics: opts.Metrics,
			Clock:   opts.Clock,
			Bands:   &bands,
		}),
		calc:      cashflow.New(dir, cal, opts.Clock),
		projector: proj,
		root:      opts.Root,
		logger:    opts.Logger,
		clock:     opts.Clock,
	}, nil
}

// Accounts returns the configured account directory.
func (s *Service) Accounts() *accounts.Service { return s.accounts }

// Window resolves an optional date range, defaulting to the current year.
func (s *Service) Window(start, end time.Time) (cashflow.Window, error) {
	return s.calc.Window(start, end)
}

// ImportBatch stores a parsed statement and returns how many new records
// were added.
func (s *Service) ImportBatch(ctx context.Context, b importer.Batch) (int, error) {
	n, err := s.store.InsertRecords(ctx, b.Records)
	if err != nil {
		return 0, fmt.Errorf("storing batch %s: %w", b.ID, err)
	}
	s.logger.Info("batch imported",
		zap.String("batch_id", b.ID),
		zap.String("account", b.Account.Name),
		zap.Int("inserted", n),
		zap.Int("duplicates", len(b.Records)-n),
	)
	return n, nil
}

// ImportObligations stores receivables and payables.
func (s *Service) ImportObligations(ctx context.Context, obs []model.Obligation) (int, error) {
	n, err := s.store.InsertObligations(ctx, obs)
	if err != nil {
		return 0, fmt.Errorf("storing obligations: %w", err)
	}
	return n, nil
}

// Classify runs one classification batch. Only one run executes at a time.
// Successful and rolled-back runs are both appended to the run log, tagged
// with the workspace HEAD when the root is a git repository.
func (s *Service) Classify(ctx context.Context, opts classify.Options) (classify.RunStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.runner.Run(ctx, opts)
	if err != nil && !errors.Is(err, classify.ErrCommitFailed) {
		return stats, err
	}
	if s.root != "" && stats.TotalProcessed > 0 {
		entry := runlog.FromStats(stats)
		if gitops.IsRepo(s.root) {
			entry.CommitHash, _ = gitops.HeadHash(s.root)
		}
		if logErr := runlog.Append(s.root, []runlog.Entry{entry}); logErr != nil {
			s.logger.Warn("run log not written", zap.String("run_id", stats.RunID), zap.Error(logErr))
		}
	}
	return stats, err
}

// Validate checks every stored record's classification invariants.
func (s *Service) Validate(ctx context.Context) ([]classify.ValidationError, error) {
	recs, err := s.store.Records(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	return classify.ValidateRecords(recs, s.accounts), nil
}

// MarkReceipt records that a required receipt was collected.
func (s *Service) MarkReceipt(ctx context.Context, recordID string) error {
	return s.store.MarkReceiptReceived(ctx, recordID)
}

// Obligations returns stored obligations matching f.
func (s *Service) Obligations(ctx context.Context, f store.ObligationFilter) ([]model.Obligation, error) {
	return s.store.Obligations(ctx, f)
}

// SetObligationStatus settles or cancels an obligation.
func (s *Service) SetObligationStatus(ctx context.Context, obligationID string, status model.ObligationStatus) error {
	return s.store.SetObligationStatus(ctx, obligationID, status)
}

// ExportJournal writes the classified ledger as monthly double-entry
// journals under the workspace root.
func (s *Service) ExportJournal(ctx context.Context) ([]journal.MonthFile, error) {
	if s.root == "" {
		return nil, errors.New("journal export needs a workspace root")
	}
	recs, err := s.store.Records(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	files, err := journal.Export(s.root, recs)
	if err != nil {
		return nil, fmt.Errorf("exporting journal: %w", err)
	}
	for _, f := range files {
		if !f.ClearingBalance.IsZero() {
			s.logger.Warn("transfer clearing account does not balance",
				zap.String("month", f.Month), zap.String("balance", f.ClearingBalance.String()))
		}
	}
	return files, nil
}

// Records returns stored records matching f.
func (s *Service) Records(ctx context.Context, f store.Filter) ([]model.TransactionRecord, error) {
	return s.store.Records(ctx, f)
}

// ReviewQueue returns records flagged for manual review, oldest first.
func (s *Service) ReviewQueue(ctx context.Context) ([]model.TransactionRecord, error) {
	recs, err := s.store.Records(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	var out []model.TransactionRecord
	for _, r := range recs {
		if r.NeedsReview {
			out = append(out, r)
		}
	}
	return out, nil
}

// recordsUpTo loads every record dated on or before end.
func (s *Service) recordsUpTo(ctx context.Context, end time.Time) ([]model.TransactionRecord, error) {
	return s.store.Records(ctx, store.Filter{End: end})
}

// Dashboard summarises the window.
func (s *Service) Dashboard(ctx context.Context, w cashflow.Window) (cashflow.Dashboard, error) {
	recs, err := s.recordsUpTo(ctx, w.End)
	if err != nil {
		return cashflow.Dashboard{}, err
	}
	return s.calc.Dashboard(recs, w), nil
}

// Account summarises one account over the window.
func (s *Service) Account(ctx context.Context, name string, w cashflow.Window) (cashflow.AccountSummary, error) {
	if _, ok := s.accounts.Get(name); !ok {
		return cashflow.AccountSummary{}, fmt.Errorf("%w: %q", cashflow.ErrUnknownAccount, name)
	}
	recs, err := s.store.Records(ctx, store.Filter{Start: w.Start, End: w.End})
	if err != nil {
		return cashflow.AccountSummary{}, err
	}
	return s.calc.Account(name, recs, w)
}

// Tax summarises deductible spending over the window.
func (s *Service) Tax(ctx context.Context, w cashflow.Window) (cashflow.TaxSummary, error) {
	recs, err := s.store.Records(ctx, store.Filter{Start: w.Start, End: w.End})
	if err != nil {
		return cashflow.TaxSummary{}, err
	}
	return s.calc.Tax(recs, w), nil
}

// CreditCard summarises card activity as of asOf (zero means today).
func (s *Service) CreditCard(ctx context.Context, asOf time.Time) (cashflow.CreditCardSummary, error) {
	asOf = s.asOf(asOf)
	recs, err := s.recordsUpTo(ctx, asOf)
	if err != nil {
		return cashflow.CreditCardSummary{}, err
	}
	return s.calc.CreditCard(recs, asOf), nil
}

// Reconciliation reports internal-transfer health and the token pairs
// found, as of asOf (zero means today).
func (s *Service) Reconciliation(ctx context.Context, asOf time.Time) (reconcile.Status, []reconcile.Pair, error) {
	asOf = s.asOf(asOf)
	recs, err := s.recordsUpTo(ctx, asOf)
	if err != nil {
		return reconcile.Status{}, nil, err
	}
	return reconcile.StatusOf(recs, asOf), reconcile.Pairs(reconcile.Transfers(recs, asOf)), nil
}

// ClassificationStatus reports how much of the ledger is classified.
func (s *Service) ClassificationStatus(ctx context.Context) (cashflow.ClassificationStatus, error) {
	recs, err := s.store.Records(ctx, store.Filter{})
	if err != nil {
		return cashflow.ClassificationStatus{}, err
	}
	return cashflow.ClassificationStatusOf(recs), nil
}

// Forecast projects pending obligations over horizon days (0 means the
// configured horizon).
func (s *Service) Forecast(ctx context.Context, horizon int) ([]projection.Point, error) {
	obs, err := s.store.Obligations(ctx, store.ObligationFilter{Status: model.StatusPending})
	if err != nil {
		return nil, err
	}
	return s.projector.Forecast(obs, horizon), nil
}

// Risk scores liquidity risk as of asOf (zero means today).
func (s *Service) Risk(ctx context.Context, asOf time.Time) (projection.RiskAnalysis, error) {
	obs, err := s.store.Obligations(ctx, store.ObligationFilter{Status: model.StatusPending})
	if err != nil {
		return projection.RiskAnalysis{}, err
	}
	return s.projector.Risk(obs, s.asOf(asOf)), nil
}

// Insights ranks the top n customers and vendors.
func (s *Service) Insights(ctx context.Context, n int) (projection.Insights, error) {
	obs, err := s.store.Obligations(ctx, store.ObligationFilter{})
	if err != nil {
		return projection.Insights{}, err
	}
	return s.projector.Insights(obs, n), nil
}

// Report bundles every read view of a window.
type Report struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Dashboard   cashflow.Dashboard      `json:"dashboard"`
	Tax         cashflow.TaxSummary     `json:"tax"`
	Forecast    []projection.Point      `json:"forecast"`
	Risk        projection.RiskAnalysis `json:"risk"`
	Insights    projection.Insights     `json:"insights"`
}

// Report loads records and obligations concurrently and computes every view.
func (s *Service) Report(ctx context.Context, w cashflow.Window) (Report, error) {
	var (
		recs    []model.TransactionRecord
		pending []model.Obligation
		all     []model.Obligation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recs, err = s.recordsUpTo(gctx, w.End)
		return err
	})
	g.Go(func() error {
		var err error
		all, err = s.store.Obligations(gctx, store.ObligationFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("loading report data: %w", err)
	}
	for _, o := range all {
		if o.IsPending() {
			pending = append(pending, o)
		}
	}

	return Report{
		GeneratedAt: s.clock.Now().UTC(),
		Dashboard:   s.calc.Dashboard(recs, w),
		Tax:         s.calc.Tax(recs, w),
		Forecast:    s.projector.Forecast(pending, 0),
		Risk:        s.projector.Risk(pending, time.Time{}),
		Insights:    s.projector.Insights(all, 0),
	}, nil
}

func (s *Service) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return clock.Today(s.clock)
	}
	return clock.Date(t)
}
