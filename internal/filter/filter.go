package filter

import (
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/deusflow/autopost/internal/config"
	"github.com/deusflow/autopost/internal/rss"
	"github.com/deusflow/autopost/internal/storage"
	"github.com/deusflow/autopost/internal/textnorm"
)

// SimilarityThreshold is the bigram Jaccard score above which two headlines
// are treated as the same topic.
const SimilarityThreshold = 0.6

// Scorer rates feed items for relevance.
type Scorer struct {
	cfg config.FilterConfig
}

func NewScorer(cfg config.FilterConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the relevance of item and whether a block keyword matched.
// Keyword points are multiplied by the weight of the item's host.
func (s *Scorer) Score(item rss.Item) (float64, bool) {
	text := item.Title + " " + item.Summary
	for _, kw := range s.cfg.Block {
		if textnorm.ContainsPhrase(text, kw) {
			return 0, true
		}
	}

	score := 0.0
	for _, kw := range s.cfg.Boost {
		if textnorm.ContainsPhrase(text, kw) {
			score += s.cfg.BoostWeight
		}
	}
	for _, kw := range s.cfg.Allow {
		if textnorm.ContainsPhrase(text, kw) {
			score += s.cfg.AllowWeight
		}
	}

	weight := s.HostWeight(item.Host)
	if weight > 1.0 {
		score += s.cfg.SourceBonus
	}
	return score * weight, false
}

// Keep reports whether item passes the block list and the minimum score.
func (s *Scorer) Keep(item rss.Item) bool {
	score, blocked := s.Score(item)
	return !blocked && score >= s.cfg.MinScore
}

// HostWeight looks host up in the source weights, also matching parent
// domains ("www.ntv.com.tr" uses "ntv.com.tr"). Unknown hosts weigh 1.0.
func (s *Scorer) HostWeight(host string) float64 {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for host != "" {
		if w, ok := s.cfg.SourceWeights[host]; ok {
			return w
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return 1.0
}

// TopicSource is the part of the state store the brake reads.
type TopicSource interface {
	RecentTopics(window time.Duration) []storage.Topic
}

// Brake holds back headlines on a topic that was posted recently.
type Brake struct {
	topics TopicSource
	window time.Duration
	metric *metrics.Jaccard
}

func NewBrake(topics TopicSource, window time.Duration) *Brake {
	m := metrics.NewJaccard()
	m.CaseSensitive = false
	m.NgramSize = 2
	return &Brake{topics: topics, window: window, metric: m}
}

// Similar returns the bigram Jaccard similarity of two headlines after
// accent folding.
func (b *Brake) Similar(a, c string) float64 {
	return strutil.Similarity(textnorm.Fold(a), textnorm.Fold(c), b.metric)
}

// Blocked returns the recent topic title matches, if any.
func (b *Brake) Blocked(title string) (string, bool) {
	if b.window <= 0 {
		return "", false
	}
	for _, t := range b.topics.RecentTopics(b.window) {
		if b.Similar(title, t.Title) >= SimilarityThreshold {
			return t.Title, true
		}
	}
	return "", false
}
