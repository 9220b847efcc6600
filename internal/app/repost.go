package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/metrics"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/deusflow/autopost/internal/ratelimit"
	"github.com/deusflow/autopost/internal/rss"
	"github.com/deusflow/autopost/internal/storage"
	"github.com/deusflow/autopost/internal/textnorm"
	"github.com/deusflow/autopost/internal/twitter"
	"github.com/spf13/cobra"
)

// timeline reads other accounts' recent posts.
type timeline interface {
	UserByUsername(ctx context.Context, username string) (*twitter.User, error)
	UserTweets(ctx context.Context, userID, sinceID string, maxResults int) ([]twitter.Tweet, error)
}

type repostOptions struct {
	only        []string
	limit       int
	maxResults  int
	credit      bool
	creditReply bool
	verbatim    bool
	cooldown    time.Duration
	maxLen      int
}

// reposter copies new Turkish posts of the source accounts.
type reposter struct {
	source timeline
	store  storage.Store
	pub    publish.Publisher
	pace   *ratelimit.Budget
	opts   repostOptions
	sleep  func(ctx context.Context, d time.Duration) error
}

// selectAccounts applies --only; names compare case-insensitively.
func selectAccounts(all, only []string) []string {
	if len(only) == 0 {
		return all
	}
	want := make(map[string]bool, len(only))
	for _, o := range only {
		if o = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(o), "@")); o != "" {
			want[o] = true
		}
	}
	var out []string
	for _, a := range all {
		if want[strings.ToLower(a)] {
			out = append(out, a)
		}
	}
	return out
}

// repostText prepares one source post for publishing.
func repostText(text, account string, opts repostOptions) string {
	body := textnorm.CleanPostText(text)
	if !opts.verbatim {
		body = textnorm.Paraphrase(body)
	}
	if opts.credit && !opts.creditReply {
		return textnorm.Credit(body, " — Kaynak: @"+account, opts.maxLen)
	}
	return textnorm.Clamp(body, opts.maxLen)
}

// Run walks the accounts in order. A rate limit stops the run and is
// returned to the caller.
func (r *reposter) Run(ctx context.Context, accounts []string) (int, error) {
	posted := 0
	for i, account := range accounts {
		if ctx.Err() != nil {
			return posted, ctx.Err()
		}
		if i > 0 && r.opts.cooldown > 0 {
			logger.Info("Cooldown before next source", "wait", r.opts.cooldown)
			if err := r.sleep(ctx, r.opts.cooldown); err != nil {
				return posted, err
			}
		}

		n, err := r.account(ctx, account)
		posted += n
		if errors.Is(err, publish.ErrRateLimited) || errors.Is(err, context.Canceled) {
			return posted, err
		}
		if err != nil {
			logger.Error("Source failed", "account", account, "error", err)
		}
	}
	return posted, nil
}

func (r *reposter) account(ctx context.Context, account string) (int, error) {
	user, err := r.source.UserByUsername(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("lookup @%s: %w", account, err)
	}
	tweets, err := r.source.UserTweets(ctx, user.ID, r.store.SinceID(account), r.opts.maxResults)
	if err != nil {
		return 0, fmt.Errorf("timeline @%s: %w", account, err)
	}
	if len(tweets) == 0 {
		logger.Info("No new posts", "account", account)
		return 0, nil
	}

	posted := 0
	for _, tw := range tweets {
		if posted >= r.opts.limit {
			break
		}
		if !textnorm.IsTurkish(tw.Text, tw.Lang) {
			metrics.Global.IncrementFiltered()
			continue
		}
		text := repostText(tw.Text, account, r.opts)
		if text == "" {
			continue
		}
		if err := r.pace.Use(ctx); err != nil {
			return posted, err
		}

		id, err := r.pub.Publish(ctx, publish.Post{Text: text})
		switch {
		case errors.Is(err, publish.ErrRateLimited):
			return posted, err
		case errors.Is(err, publish.ErrDuplicate):
			logger.Warn("Posting API reports duplicate", "account", account, "source_id", tw.ID)
			continue
		case err != nil:
			metrics.Global.IncrementPostFailures()
			logger.Error("Failed to repost", "account", account, "source_id", tw.ID, "error", err)
			continue
		}
		metrics.Global.IncrementPostsSent()
		posted++
		logger.Info("Reposted", "account", account, "source_id", tw.ID, "post_id", id)

		if r.opts.creditReply && id != "" {
			if _, err := r.pub.Publish(ctx, publish.Post{Text: "— Kaynak: @" + account, ReplyTo: id}); err != nil {
				if errors.Is(err, publish.ErrRateLimited) {
					return posted, err
				}
				logger.Warn("Credit reply failed", "post_id", id, "error", err)
			}
		}
	}

	// the newest id is remembered even when some posts were skipped
	if err := r.store.SetSinceID(account, tweets[len(tweets)-1].ID); err != nil {
		logger.Warn("Failed to store since_id", "account", account, "error", err)
	}
	return posted, nil
}

func newRepostCmd(g *globalFlags) *cobra.Command {
	var (
		only     string
		cooldown int
		opts     repostOptions
	)
	cmd := &cobra.Command{
		Use:   "repost",
		Short: "Repost new Turkish posts from the accounts in the sources file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(g)
			if err != nil {
				return err
			}
			cfg := rt.cfg
			if cfg.XAPIKey == "" || cfg.XAPISecret == "" || cfg.XAccessToken == "" || cfg.XAccessSecret == "" {
				return errors.New("repost reads timelines from X: API_KEY, API_SECRET, ACCESS_TOKEN and ACCESS_TOKEN_SECRET are required")
			}

			accounts, err := rss.LoadSourceList(cfg.SourcesPath)
			if err != nil {
				return fmt.Errorf("failed to load sources: %w", err)
			}
			if only != "" {
				opts.only = strings.Split(only, ",")
			}
			accounts = selectAccounts(accounts, opts.only)
			if len(accounts) == 0 {
				logger.Info("No source accounts selected", "file", cfg.SourcesPath, "only", only)
				return nil
			}
			if err := rt.openStore(ctx, "state.json"); err != nil {
				return err
			}

			opts.cooldown = time.Duration(cooldown) * time.Second
			opts.maxLen = cfg.MaxPostLen
			r := &reposter{
				source: newXClient(cfg, &http.Client{Timeout: 30 * time.Second}),
				store:  rt.store,
				pub:    rt.pub,
				pace:   rt.track(ratelimit.NewBudget("reposts", 0, time.Second)),
				opts:   opts,
				sleep:  sleepCtx,
			}
			posted, err := r.Run(ctx, accounts)
			logger.Info("Repost finished", "accounts", len(accounts), "posted", posted)
			return rt.finish(err)
		},
	}
	f := cmd.Flags()
	f.StringVar(&only, "only", "", "comma separated accounts to process")
	f.IntVar(&opts.limit, "limit", 1, "posts per source")
	f.IntVar(&opts.maxResults, "max-results", 5, "timeline items fetched per source (5-100)")
	f.BoolVar(&opts.credit, "credit", false, "append a source credit")
	f.BoolVar(&opts.creditReply, "credit-reply", false, "credit the source in a reply instead")
	f.BoolVar(&opts.verbatim, "verbatim", false, "skip paraphrasing")
	f.IntVar(&cooldown, "cooldown", 0, "seconds to wait between sources")
	return cmd
}
