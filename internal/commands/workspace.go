package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/cashflow/internal/cashflow"
	"github.com/cleared-dev/cashflow/internal/config"
	"github.com/cleared-dev/cashflow/internal/gitops"
	"github.com/cleared-dev/cashflow/internal/ledger"
	"github.com/cleared-dev/cashflow/internal/observability"
	"github.com/cleared-dev/cashflow/internal/store"
)

// workspace is an opened cashflow directory.
type workspace struct {
	root    string
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   *store.Store
	ledger  *ledger.Service
}

// open loads cashflow.yaml and .env from the workspace root, then opens the
// database and builds the ledger.
func (a *app) open(ctx context.Context) (*workspace, error) {
	root, err := filepath.Abs(a.dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("not a cashflow workspace (run 'cashflow init'): %w", err)
	}
	if err := cfg.ApplyEnv(filepath.Join(root, ".env")); err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "cashflow.db"
	}
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(root, dbPath)
	}
	st, err := store.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	svc, err := ledger.New(st, cfg, ledger.Options{
		Root:    root,
		Logger:  logger,
		Metrics: metrics,
		Clock:   a.clock,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &workspace{root: root, cfg: cfg, logger: logger, metrics: metrics, store: st, ledger: svc}, nil
}

func (w *workspace) Close() {
	w.store.Close()
	_ = w.logger.Sync()
}

// commit records paths in git when auto-commit is on and the workspace is a
// repository. Failures are logged, never returned.
func (w *workspace) commit(out io.Writer, message string, paths ...string) {
	if !w.cfg.Git.AutoCommit || !gitops.IsRepo(w.root) {
		return
	}
	c := gitops.Committer{Dir: w.root, Name: w.cfg.Git.AuthorName, Email: w.cfg.Git.AuthorEmail}
	hash, err := c.Commit(message, paths...)
	if err != nil {
		if !errors.Is(err, gitops.ErrNothingToCommit) {
			w.logger.Warn("git commit failed", zap.String("message", message), zap.Error(err))
		}
		return
	}
	fmt.Fprintf(out, "Committed %s\n", hash)
}

// run opens the workspace for the duration of fn.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, ws *workspace) error) error {
	ctx := cmd.Context()
	ws, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// windowFlags binds --start and --end.
type windowFlags struct {
	start string
	end   string
}

func (f *windowFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "window start, YYYY-MM-DD (default January 1 of this year)")
	cmd.Flags().StringVar(&f.end, "end", "", "window end, YYYY-MM-DD (default today)")
}

func (f *windowFlags) window(svc *ledger.Service) (cashflow.Window, error) {
	start, err := parseFlagDate("start", f.start)
	if err != nil {
		return cashflow.Window{}, err
	}
	end, err := parseFlagDate("end", f.end)
	if err != nil {
		return cashflow.Window{}, err
	}
	return svc.Window(start, end)
}

func parseFlagDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(cashflow.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}
