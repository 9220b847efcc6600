package rss

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/metrics"
	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"
)

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// Item is one feed entry reduced to what the pipeline needs.
type Item struct {
	ID        string
	Title     string
	Summary   string
	Link      string
	Host      string
	Feed      string
	ImageURL  string
	Published time.Time
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg.Feeds, nil
}

// LoadSourceList reads a newline separated list of feeds or account names.
// Blank lines and "#" comments are skipped and a leading "@" is dropped.
// YAML files use the FeedsConfig layout.
func LoadSourceList(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadFeeds(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.TrimPrefix(line, "@"))
	}
	return out, sc.Err()
}

// Fetcher downloads feeds sequentially.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewFetcher(client *http.Client, userAgent string, timeout time.Duration) *Fetcher {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent
	return &Fetcher{parser: parser, timeout: timeout}
}

// Fetch returns at most limit items of one feed, in feed order.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string, limit int) ([]Item, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", feedURL, err)
	}

	entries := feed.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, toItem(feedURL, e))
	}
	return items, nil
}

// FetchAll downloads every feed, logging and skipping the ones that fail.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []string, perFeed int) []Item {
	var all []Item
	successCount := 0

	for _, u := range feeds {
		if ctx.Err() != nil {
			break
		}
		items, err := f.Fetch(ctx, u, perFeed)
		if err != nil {
			logger.Warn("error parsing feed", "feed", u, "error", err)
			continue
		}
		all = append(all, items...)
		successCount++
		logger.Debug("feed loaded", "feed", u, "items", len(items))
	}

	metrics.Global.AddFetched(len(all))
	logger.Info("processed feeds", "ok", successCount, "total", len(feeds), "items", len(all))
	return all
}

func toItem(feedURL string, e *gofeed.Item) Item {
	it := Item{
		Title:   strings.TrimSpace(e.Title),
		Summary: e.Description,
		Link:    strings.TrimSpace(e.Link),
		Feed:    feedURL,
	}
	if it.Summary == "" {
		it.Summary = e.Content
	}
	if e.PublishedParsed != nil {
		it.Published = *e.PublishedParsed
	} else if e.UpdatedParsed != nil {
		it.Published = *e.UpdatedParsed
	}

	switch {
	case it.Link != "":
		it.ID = it.Link
	case e.GUID != "":
		it.ID = e.GUID
	default:
		h := sha1.Sum([]byte(it.Title))
		it.ID = hex.EncodeToString(h[:])
	}

	host := it.Link
	if host == "" {
		host = feedURL
	}
	it.Host = Domain(host)
	it.ImageURL = imageOf(e)
	return it
}

func imageOf(e *gofeed.Item) string {
	if e.Image != nil && e.Image.URL != "" {
		return e.Image.URL
	}
	for _, enc := range e.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if media, ok := e.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	return ""
}

// Domain returns the lowercased host of rawURL without a "www." prefix.
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
