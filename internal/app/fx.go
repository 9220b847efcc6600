package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/metrics"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/deusflow/autopost/internal/rates"
	"github.com/spf13/cobra"
)

// rateChain lists the providers in preference order. GoldAPI joins only
// when a key is configured.
func (rt *runtime) rateChain() rates.Chain {
	ua := rt.cfg.UserAgent
	chain := rates.Chain{
		rates.NewFrankfurter(rt.http, ua, rt.retry),
		rates.NewStooq(rt.http, ua, rt.retry),
	}
	if rt.cfg.GoldAPIKey != "" {
		chain = append(chain, rates.NewGoldAPI(rt.http, ua, rt.cfg.GoldAPIKey, rt.retry))
	}
	return chain
}

func newFXCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fx",
		Short: "Post the end of day exchange rate and gold summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(g)
			if err != nil {
				return err
			}

			snap, err := rt.rateChain().Rates(ctx)
			if err != nil {
				return rt.finish(fmt.Errorf("failed to fetch rates: %w", err))
			}
			if !snap.Complete() {
				logger.Warn("Some rates are unavailable", "usdtry", snap.USDTRY != nil, "eurtry", snap.EURTRY != nil,
					"gbptry", snap.GBPTRY != nil, "gau", snap.GAU != nil)
			}
			text := rates.BuildText(snap)
			fmt.Fprintln(cmd.OutOrStdout(), text)

			post := publish.Post{Text: text}
			if img, err := publish.ImageFromFile(rt.cfg.FXImagePath); err == nil {
				post.Image = img
			} else if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("FX image unreadable, posting text only", "path", rt.cfg.FXImagePath, "error", err)
			}

			id, err := rt.pub.Publish(ctx, post)
			if err != nil {
				metrics.Global.IncrementPostFailures()
				return rt.finish(err)
			}
			metrics.Global.IncrementPostsSent()
			logger.Info("Posted", "publisher", rt.pub.Name(), "post_id", id)
			return rt.finish(nil)
		},
	}
}
