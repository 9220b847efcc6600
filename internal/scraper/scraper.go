package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/deusflow/autopost/internal/cache"
	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/retry"
	"github.com/deusflow/autopost/internal/textnorm"
	"golang.org/x/net/html"
)

// MaxImageBytes caps downloaded images; the posting APIs reject larger files.
const MaxImageBytes = 5 << 20

var (
	summaryAnchorRe = regexp.MustCompile(`(?i)(Bundle\s*AI|özet|özetliyor)`)
	bulletSplitRe   = regexp.MustCompile(`[•\x{2022}]\s*`)
)

// Page is what the pipelines use from an article page.
type Page struct {
	URL         string
	Title       string
	Bullets     []string // summary block items, if the page has one
	Description string
	ImageURL    string
}

// Client fetches HTML pages, memoizing them for the duration of a run.
type Client struct {
	http      *http.Client
	userAgent string
	retry     retry.RetryConfig
	pages     *cache.Cache[*goquery.Document]
}

func New(httpClient *http.Client, userAgent string, rc retry.RetryConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 12 * time.Second}
	}
	return &Client{
		http:      httpClient,
		userAgent: userAgent,
		retry:     rc,
		pages:     cache.New[*goquery.Document](30 * time.Minute),
	}
}

// Fetch downloads and parses pageURL.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	return c.pages.GetOrLoad(pageURL, func() (*goquery.Document, error) {
		var doc *goquery.Document
		err := retry.WithRetry(ctx, c.retry, func() error {
			var err error
			doc, err = c.fetchOnce(ctx, pageURL)
			return err
		})
		return doc, err
	})
}

func (c *Client) fetchOnce(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error %d for %s", resp.StatusCode, rawURL)
	}
	return resp, nil
}

// Page fetches pageURL and extracts the fields used for posting.
func (c *Client) Page(ctx context.Context, pageURL string) (*Page, error) {
	doc, err := c.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return &Page{
		URL:         pageURL,
		Title:       ExtractTitle(doc),
		Bullets:     ExtractSummaryBlock(doc),
		Description: FallbackDescription(doc),
		ImageURL:    OGImage(doc, pageURL),
	}, nil
}

// Download fetches an image. Non-image responses and oversized files are rejected.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	resp, err := c.get(ctx, imageURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, "", fmt.Errorf("not an image: %s", ct)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("error reading image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("image larger than %d bytes", MaxImageBytes)
	}
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return data, ct, nil
}

// ExtractTitle returns the first non-empty h1, h2, og:title or <title>.
func ExtractTitle(doc *goquery.Document) string {
	for _, sel := range []string{"h1", "h2"} {
		if t := clean(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	if t := metaContent(doc, "og:title"); t != "" {
		return t
	}
	return clean(doc.Find("title").First().Text())
}

// ExtractSummaryBlock finds an "özet" / "Bundle AI" block and returns its items.
func ExtractSummaryBlock(doc *goquery.Document) []string {
	all := doc.Find("*")
	var anchors []int
	all.Each(func(i int, s *goquery.Selection) {
		if summaryAnchorRe.MatchString(ownText(s)) {
			anchors = append(anchors, i)
		}
	})

	for _, idx := range anchors {
		if texts := collectFollowing(all, idx); len(texts) > 0 {
			return texts
		}
	}

	var out []string
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !summaryClass(s.AttrOr("class", "")) {
			return true
		}
		out = texts(s.Find("li"))
		if len(out) == 0 {
			out = texts(s.Find("p"))
		}
		return len(out) == 0
	})
	return out
}

// collectFollowing gathers list items and paragraphs from the ten elements
// after the anchor, stopping at the next heading.
func collectFollowing(all *goquery.Selection, idx int) []string {
	var out []string
	end := idx + 1 + 10
	if end > all.Length() {
		end = all.Length()
	}
	for i := idx + 1; i < end; i++ {
		s := all.Eq(i)
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3":
			return dedup(out)
		case "ul", "ol":
			s.Find("li").Each(func(_ int, li *goquery.Selection) {
				if t := clean(li.Text()); textnorm.RuneLen(t) >= 3 {
					out = append(out, t)
				}
			})
		case "p", "div":
			t := clean(s.Text())
			if textnorm.RuneLen(t) < 3 {
				break
			}
			var parts []string
			for _, p := range bulletSplitRe.Split(t, -1) {
				if p = clean(p); p != "" {
					parts = append(parts, p)
				}
			}
			if len(parts) > 0 {
				out = append(out, parts...)
			} else {
				out = append(out, t)
			}
		}
		if len(out) >= 6 {
			break
		}
	}
	return dedup(out)
}

func summaryClass(class string) bool {
	for _, c := range strings.Fields(strings.ToLower(class)) {
		if strings.Contains(c, "summary") {
			return true
		}
		for _, part := range strings.FieldsFunc(c, func(r rune) bool { return r == '-' || r == '_' }) {
			if part == "ai" {
				return true
			}
		}
	}
	return false
}

// FallbackDescription returns the page description or its first long paragraph.
func FallbackDescription(doc *goquery.Document) string {
	for _, key := range []string{"og:description", "twitter:description", "description"} {
		if d := metaContent(doc, key); d != "" {
			return d
		}
	}
	var desc string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := clean(s.Text()); textnorm.RuneLen(t) > 120 {
			desc = t
			return false
		}
		return true
	})
	return desc
}

// OGImage returns the page's Open Graph image as an absolute URL.
func OGImage(doc *goquery.Document, pageURL string) string {
	var img string
	for _, key := range []string{"og:image", "og:image:url", "og:image:secure_url", "twitter:image", "twitter:image:src"} {
		if img = metaContent(doc, key); img != "" {
			break
		}
	}
	if img == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return img
	}
	ref, err := url.Parse(img)
	if err != nil {
		logger.Debug("bad og:image", "url", img, "error", err)
		return ""
	}
	return base.ResolveReference(ref).String()
}

func metaContent(doc *goquery.Document, key string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, key, key)
	var out string
	doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = clean(s.AttrOr("content", ""))
		return out == ""
	})
	return out
}

// ownText is the text of s's direct text children.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

func texts(s *goquery.Selection) []string {
	var out []string
	s.Each(func(_ int, e *goquery.Selection) {
		if t := clean(e.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, t := range in {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func clean(s string) string {
	return textnorm.CleanFragment(s)
}
