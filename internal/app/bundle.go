package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/metrics"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/deusflow/autopost/internal/rss"
	"github.com/deusflow/autopost/internal/scraper"
	"github.com/deusflow/autopost/internal/textnorm"
	"github.com/spf13/cobra"
)

// minBundleRoom keeps some text even when the URL is very long.
const minBundleRoom = 60

// composeBundle builds "<summary> — Kaynak: <host> <url>" within maxLen.
func composeBundle(page *scraper.Page, pageURL string, maxLen int) (string, error) {
	full := textnorm.SmartJoin(page.Bullets)
	if full == "" {
		full = page.Description
	}
	if full == "" {
		full = page.Title
	}
	if full == "" {
		return "", errors.New("no summary, description or title on page")
	}

	tail := fmt.Sprintf(" — Kaynak: %s %s", rss.Domain(pageURL), pageURL)
	room := maxLen - textnorm.RuneLen(tail) - 1
	if room < minBundleRoom {
		room = minBundleRoom
	}
	return textnorm.NaturalTruncate(full, room) + tail, nil
}

func newBundleCmd(g *globalFlags) *cobra.Command {
	var pageURL string
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Post the summary block of a news page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pageURL = strings.TrimSpace(pageURL)
			if pageURL == "" {
				return errors.New("--url is required")
			}
			rt, err := newRuntime(g)
			if err != nil {
				return err
			}
			if err := rt.openStore(ctx, "state.json"); err != nil {
				return err
			}
			if rt.store.Seen(pageURL) {
				metrics.Global.IncrementDuplicatesFiltered()
				logger.Info("Page already posted", "url", pageURL)
				return rt.finish(nil)
			}

			page, err := scraper.New(rt.http, rt.cfg.UserAgent, rt.retry).Page(ctx, pageURL)
			if err != nil {
				return rt.finish(fmt.Errorf("failed to scrape %s: %w", pageURL, err))
			}
			text, err := composeBundle(page, pageURL, rt.cfg.MaxPostLen)
			if err != nil {
				return rt.finish(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)

			id, err := rt.pub.Publish(ctx, publish.Post{Text: text})
			if errors.Is(err, publish.ErrDuplicate) {
				logger.Warn("Posting API reports duplicate, marking seen", "url", pageURL)
				markSeen(rt.store, pageURL)
				return rt.finish(nil)
			}
			if err != nil {
				metrics.Global.IncrementPostFailures()
				return rt.finish(err)
			}
			metrics.Global.IncrementPostsSent()
			markSeen(rt.store, pageURL)
			logger.Info("Posted", "publisher", rt.pub.Name(), "post_id", id)
			return rt.finish(nil)
		},
	}
	cmd.Flags().StringVar(&pageURL, "url", "", "news page to summarize")
	return cmd
}
