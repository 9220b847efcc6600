package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/deusflow/autopost/internal/ai"
	"github.com/deusflow/autopost/internal/filter"
	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/metrics"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/deusflow/autopost/internal/ratelimit"
	"github.com/deusflow/autopost/internal/rss"
	"github.com/deusflow/autopost/internal/scraper"
	"github.com/deusflow/autopost/internal/storage"
	"github.com/deusflow/autopost/internal/textnorm"
	"github.com/spf13/cobra"
)

// shortLinkLen is what X counts for any URL after t.co wrapping.
const shortLinkLen = 23

// minBodyLen is the shortest body worth keeping a source credit for.
const minBodyLen = 40

type feedSource interface {
	FetchAll(ctx context.Context, feeds []string, perFeed int) []rss.Item
}

type pageSource interface {
	Page(ctx context.Context, pageURL string) (*scraper.Page, error)
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

// newsPipeline turns feed items into posts.
type newsPipeline struct {
	feeds    feedSource
	pages    pageSource // optional, used for og:image
	scorer   *filter.Scorer
	brake    *filter.Brake
	rewriter ai.Rewriter // optional
	store    storage.Store
	pub      publish.Publisher
	posts    *ratelimit.Budget

	minScore    float64
	maxLen      int
	credit      bool
	styleHint   string
	fetchImages bool
}

type scoredItem struct {
	item  rss.Item
	score float64
}

// Run fetches every feed and posts the best new items until the post
// budget is spent. A rate limit error is returned as is.
func (p *newsPipeline) Run(ctx context.Context, feeds []string, perFeed int) (int, error) {
	items := p.feeds.FetchAll(ctx, feeds, perFeed)
	logger.Info("Fetched feed items", "feeds", len(feeds), "items", len(items))

	candidates := p.rank(items)
	posted := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			return posted, ctx.Err()
		}
		if !p.posts.Allow() {
			logger.Info("Post budget spent", "posted", posted)
			break
		}

		// feeds can carry the same item, and an earlier post may have taken it
		if p.store.Seen(c.item.ID) {
			metrics.Global.IncrementDuplicatesFiltered()
			continue
		}
		if prev, dup := p.brake.Blocked(textnorm.CleanTitle(c.item.Title)); dup {
			metrics.Global.IncrementDuplicatesFiltered()
			logger.Debug("Recent topic, skipping", "title", c.item.Title, "similar_to", prev)
			continue
		}

		post := publish.Post{
			Text:  p.compose(ctx, c.item),
			Image: p.image(ctx, c.item),
		}
		id, err := p.pub.Publish(ctx, post)
		switch {
		case errors.Is(err, publish.ErrRateLimited):
			return posted, err
		case errors.Is(err, publish.ErrDuplicate):
			logger.Warn("Posting API reports duplicate, marking seen", "id", c.item.ID)
			markSeen(p.store, c.item.ID)
			continue
		case err != nil:
			metrics.Global.IncrementPostFailures()
			logger.Error("Failed to post item", "id", c.item.ID, "error", err)
			continue
		}

		markSeen(p.store, c.item.ID)
		if err := p.store.AddTopic(textnorm.CleanTitle(c.item.Title)); err != nil {
			logger.Warn("Failed to remember topic", "error", err)
		}
		if err := p.posts.Use(ctx); err != nil {
			return posted, err
		}
		metrics.Global.IncrementPostsSent()
		posted++
		logger.Info("Posted", "publisher", p.pub.Name(), "post_id", id, "score", c.score, "host", c.item.Host,
			"budget_left", p.posts.Remaining())
	}
	return posted, nil
}

// markSeen records id; a failure only costs a possible repeat next run.
func markSeen(s storage.Store, id string) {
	if err := s.MarkSeen(id); err != nil {
		logger.Warn("Failed to mark item seen", "id", id, "error", err)
	}
}

// rank drops seen, blocked and low scoring items and sorts the rest by
// score, newest first on ties.
func (p *newsPipeline) rank(items []rss.Item) []scoredItem {
	var out []scoredItem
	for _, it := range items {
		if p.store.Seen(it.ID) {
			metrics.Global.IncrementDuplicatesFiltered()
			continue
		}
		score, blocked := p.scorer.Score(it)
		if blocked || score < p.minScore {
			metrics.Global.IncrementFiltered()
			logger.Debug("Filtered", "title", it.Title, "score", score, "blocked", blocked)
			continue
		}
		out = append(out, scoredItem{item: it, score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].item.Published.After(out[j].item.Published)
	})
	return out
}

// compose rewrites the item and appends the credit and link.
func (p *newsPipeline) compose(ctx context.Context, it rss.Item) string {
	room := p.maxLen
	if it.Link != "" {
		room -= shortLinkLen + 1
	}
	tail := ""
	if p.credit && it.Host != "" {
		tail = " — Kaynak: " + it.Host
		if room-textnorm.RuneLen(tail) < minBodyLen {
			tail = ""
		} else {
			room -= textnorm.RuneLen(tail)
		}
	}
	if room < 1 {
		room = 1
	}
	limit := room
	if limit > textnorm.DefaultLimit {
		limit = textnorm.DefaultLimit
	}

	summary := textnorm.CleanHTMLText(it.Summary)
	if res := textnorm.ProcessItem(summary); len(res.Summaries) > 0 {
		summary = res.Summaries[0].Text
	}

	var extra []string
	if p.rewriter != nil {
		out, err := p.rewriter.Rewrite(ctx, ai.Request{
			Title:     textnorm.CleanTitle(it.Title),
			Summary:   summary,
			Limit:     limit,
			StyleHint: p.styleHint,
		})
		if err != nil {
			logger.Debug("AI rewrite unavailable, using rules", "error", err)
		} else {
			extra = append(extra, out)
		}
	}

	body := textnorm.Rewrite(it.Title, summary, textnorm.RewriteOptions{Limit: limit, Extra: extra})
	body = textnorm.NaturalTruncate(body, room) + tail
	if it.Link == "" {
		return body
	}
	return body + "\n" + it.Link
}

// image resolves the item's picture: the feed image, else the page's
// og:image. Download failures leave only the URL.
func (p *newsPipeline) image(ctx context.Context, it rss.Item) *publish.Image {
	imgURL := it.ImageURL
	if imgURL == "" && p.pages != nil && it.Link != "" {
		page, err := p.pages.Page(ctx, it.Link)
		if err != nil {
			logger.Debug("Page scrape failed", "url", it.Link, "error", err)
			return nil
		}
		imgURL = page.ImageURL
	}
	if imgURL == "" {
		return nil
	}

	img := &publish.Image{URL: imgURL, Name: path.Base(imgURL)}
	if !p.fetchImages || p.pages == nil {
		return img
	}
	data, ct, err := p.pages.Download(ctx, imgURL)
	if err != nil {
		logger.Warn("Image download failed", "url", imgURL, "error", err)
		return img
	}
	img.Data, img.ContentType = data, ct
	return img
}

func newRSSCmd(g *globalFlags) *cobra.Command {
	var (
		perFeed  int
		maxPosts int
		credit   bool
		minScore float64
	)
	cmd := &cobra.Command{
		Use:   "rss",
		Short: "Post the most relevant new headlines from the RSS sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(g)
			if err != nil {
				return err
			}
			feeds, err := rss.LoadSourceList(rt.cfg.RSSSourcesPath)
			if err != nil {
				return fmt.Errorf("failed to load rss sources: %w", err)
			}
			if len(feeds) == 0 {
				return fmt.Errorf("no feeds in %s", rt.cfg.RSSSourcesPath)
			}
			if err := rt.openStore(ctx, "rss_state.json"); err != nil {
				return err
			}

			rewriter, release, err := rt.newRewriter(ctx)
			if err != nil {
				return rt.finish(err)
			}
			defer release()

			if !cmd.Flags().Changed("min-score") {
				minScore = rt.cfg.Filters.MinScore
			}
			pages := scraper.New(rt.http, rt.cfg.UserAgent, rt.retry)
			p := &newsPipeline{
				feeds:       rss.NewFetcher(rt.http, rt.cfg.UserAgent, rt.cfg.RequestTimeout),
				pages:       pages,
				scorer:      filter.NewScorer(rt.cfg.Filters),
				brake:       filter.NewBrake(rt.store, time.Duration(rt.cfg.Filters.DupWindowMin)*time.Minute),
				rewriter:    rewriter,
				store:       rt.store,
				pub:         rt.pub,
				posts:       rt.track(ratelimit.NewBudget("posts", maxPosts, 0)),
				minScore:    minScore,
				maxLen:      rt.cfg.MaxPostLen,
				credit:      credit,
				styleHint:   rt.cfg.Filters.StyleHint,
				fetchImages: rt.posting,
			}
			posted, err := p.Run(ctx, feeds, perFeed)
			if posted == 0 && err == nil {
				logger.Info("Nothing new to post")
			}
			return rt.finish(err)
		},
	}
	cmd.Flags().IntVar(&perFeed, "per-feed", 3, "items read from each feed")
	cmd.Flags().IntVar(&maxPosts, "max-posts", 1, "posts per run")
	cmd.Flags().BoolVar(&credit, "credit", false, "append the source host")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum relevance score (default from filter config)")
	return cmd
}
