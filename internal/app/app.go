package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/deusflow/autopost/internal/config"
	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/metrics"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/deusflow/autopost/internal/ratelimit"
	"github.com/deusflow/autopost/internal/retry"
	"github.com/deusflow/autopost/internal/storage"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	post      bool
	dry       bool
	state     string
	publisher string
}

// NewRootCmd builds the autopost command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "autopost",
		Short:         "Fetch, clean, dedup and post short Turkish news and market updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init()
			logger.WithRun(cmd.Name())
			metrics.Global.SetLastRun()
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&g.post, "post", false, "really post (without it every command is a dry run)")
	pf.BoolVar(&g.dry, "dry", false, "force a dry run even with --post")
	pf.StringVar(&g.state, "state", "", "state file path (overrides STATE_PATH)")
	pf.StringVar(&g.publisher, "publisher", "", "x, telegram or nostr (overrides PUBLISHER)")

	root.AddCommand(
		newRSSCmd(g),
		newBundleCmd(g),
		newFXCmd(g),
		newQueueCmd(g),
		newVerifyCmd(g),
		newRepostCmd(g),
		newRewriteCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warn("Received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("autopost failed", "error", err)
		return 1
	}
	return 0
}

// runtime is what a command needs after configuration.
type runtime struct {
	cfg     *config.Config
	http    *http.Client
	retry   retry.RetryConfig
	posting bool
	pub     publish.Publisher
	store   storage.Store
	budgets []*ratelimit.Budget
	started time.Time
}

// newRuntime loads configuration and selects the publisher. Posting needs
// --post and neither --dry nor DRY_MODE.
func newRuntime(g *globalFlags) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.publisher != "" {
		cfg.Publisher = strings.ToLower(g.publisher)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if g.state != "" {
		cfg.StatePath = g.state
	}

	posting := g.post && !g.dry && !cfg.DryMode
	if err := cfg.ValidateFor(posting); err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		posting: posting,
		started: time.Now(),
		retry: retry.RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Backoff:     true,
			ShouldRetry: transient,
		},
	}
	rt.pub, err = newPublisher(cfg, posting)
	if err != nil {
		return nil, err
	}
	if !posting {
		logger.Info("Dry run: nothing will be posted, state will not be saved", "publisher", cfg.Publisher)
	}
	return rt, nil
}

// transient reports whether a failed remote call is worth retrying.
func transient(err error) bool {
	return !errors.Is(err, publish.ErrRateLimited) &&
		!errors.Is(err, publish.ErrDuplicate) &&
		!errors.Is(err, context.Canceled)
}

// openStore opens the dedup state: Postgres when DATABASE_URL is set,
// otherwise the JSON file (the command's default unless overridden).
func (rt *runtime) openStore(ctx context.Context, defaultPath string) error {
	if rt.cfg.DatabaseURL != "" {
		ps, err := storage.NewPostgresStore(ctx, rt.cfg.DatabaseURL, rt.cfg.StateCap)
		if err != nil {
			return err
		}
		rt.store = ps
		return nil
	}
	path := rt.cfg.StateFile(defaultPath)
	rt.store = storage.OpenFileStore(path, rt.cfg.StateCap)
	logger.Debug("State loaded", "path", path)
	return nil
}

// finish saves state (real runs only), closes the store and logs the run
// metrics. A rate limit ends the run successfully.
func (rt *runtime) finish(runErr error) error {
	if errors.Is(runErr, publish.ErrRateLimited) {
		metrics.Global.SetRateLimited()
		logger.Warn("Rate limit from posting API, stopping without waiting", "error", runErr)
		runErr = nil
	}
	if runErr != nil {
		metrics.Global.SetError(runErr.Error())
	}

	if rt.store != nil {
		if rt.posting {
			if err := rt.store.Save(); err != nil {
				logger.Error("Failed to save state", "error", err)
				if runErr == nil {
					runErr = fmt.Errorf("save state: %w", err)
				}
			}
		}
		if err := rt.store.Close(); err != nil {
			logger.Warn("Failed to close state store", "error", err)
		}
	}

	metrics.Global.RecordProcessingTime(time.Since(rt.started))
	logger.Info("Run finished", rt.statsArgs()...)
	return runErr
}

// track registers a budget whose usage is reported when the run finishes.
func (rt *runtime) track(b *ratelimit.Budget) *ratelimit.Budget {
	rt.budgets = append(rt.budgets, b)
	return b
}

// statsArgs collects the run metrics, budget usage and store size as slog
// key/value pairs.
func (rt *runtime) statsArgs() []any {
	args := metrics.Global.LogArgs()
	for _, b := range rt.budgets {
		stats := b.GetStats()
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			args = append(args, k, stats[k])
		}
	}
	if s, ok := rt.store.(interface{ GetStats() map[string]int }); ok {
		stats := s.GetStats()
		args = append(args, "state_seen", stats["seen"], "state_accounts", stats["accounts"], "state_topics", stats["topics"])
	}
	return args
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
