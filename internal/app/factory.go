package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deusflow/autopost/internal/ai"
	"github.com/deusflow/autopost/internal/config"
	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/nostr"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/deusflow/autopost/internal/ratelimit"
	"github.com/deusflow/autopost/internal/telegram"
	"github.com/deusflow/autopost/internal/twitter"
)

// newPublisher returns the configured publisher, or a logging stand-in for
// dry runs.
func newPublisher(cfg *config.Config, posting bool) (publish.Publisher, error) {
	if !posting {
		return &publish.Dry{Target: cfg.Publisher}, nil
	}
	return realPublisher(cfg)
}

func realPublisher(cfg *config.Config) (publish.Publisher, error) {
	base := &http.Client{Timeout: 30 * time.Second}
	switch cfg.Publisher {
	case "x", "twitter":
		return &twitter.Publisher{Client: newXClient(cfg, base)}, nil
	case "telegram":
		c := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, base)
		return &telegram.Publisher{Client: c}, nil
	case "nostr":
		c, err := nostr.New(cfg.NostrPrivateKey, cfg.NostrRelayURL)
		if err != nil {
			return nil, err
		}
		return &nostr.Publisher{Client: c}, nil
	}
	return nil, fmt.Errorf("unknown publisher %q", cfg.Publisher)
}

func newXClient(cfg *config.Config, base *http.Client) *twitter.Client {
	return twitter.New(twitter.Credentials{
		APIKey:       cfg.XAPIKey,
		APISecret:    cfg.XAPISecret,
		AccessToken:  cfg.XAccessToken,
		AccessSecret: cfg.XAccessSecret,
	}, base)
}

// newRewriter returns the optional AI candidate source, nil for "rules".
// The returned func releases provider resources.
func (rt *runtime) newRewriter(ctx context.Context) (ai.Rewriter, func(), error) {
	cfg := rt.cfg
	if cfg.RewriteProvider != "gemini" && cfg.RewriteProvider != "openai" {
		return nil, func() {}, nil
	}
	budget := rt.track(ratelimit.NewBudget("ai", cfg.MaxAIRequests, 0))
	switch cfg.RewriteProvider {
	case "gemini":
		g, err := ai.NewGemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("AI rewrite candidates enabled", "provider", "gemini", "max_requests", cfg.MaxAIRequests)
		return &ai.Guarded{Rewriter: g, Budget: budget}, g.Close, nil
	case "openai":
		logger.Info("AI rewrite candidates enabled", "provider", "openai", "max_requests", cfg.MaxAIRequests)
		return &ai.Guarded{Rewriter: ai.NewOpenAI(cfg.OpenAIAPIKey, ""), Budget: budget}, func() {}, nil
	}
	return nil, func() {}, nil
}
