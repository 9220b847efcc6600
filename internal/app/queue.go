package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/metrics"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/deusflow/autopost/internal/storage"
	"github.com/deusflow/autopost/internal/textnorm"
	"github.com/spf13/cobra"
)

// checkLength rejects text the posting API would refuse.
func checkLength(text string, limit int) error {
	if text == "" {
		return errors.New("empty text")
	}
	if n := textnorm.RuneLen(text); n > limit {
		return fmt.Errorf("text is %d characters, limit is %d", n, limit)
	}
	return nil
}

// postNext publishes the first queued line. The queue is rewritten only
// after a real post succeeds.
func postNext(ctx context.Context, q storage.Queue, pub publish.Publisher, limit int, commit bool) (string, error) {
	line, rest, err := q.Next()
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(line)
	if err := checkLength(text, limit); err != nil {
		return "", fmt.Errorf("queued line: %w", err)
	}

	id, err := pub.Publish(ctx, publish.Post{Text: text})
	if err != nil {
		return "", err
	}
	if commit {
		if err := q.Commit(rest, line); err != nil {
			return id, err
		}
		logger.Info("Queue advanced", "remaining", len(rest))
	}
	return id, nil
}

func newQueueCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Post prepared texts",
	}

	var file string
	next := &cobra.Command{
		Use:   "next",
		Short: "Post the first line of the queue file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(g)
			if err != nil {
				return err
			}
			if file == "" {
				file = rt.cfg.QueuePath
			}
			id, err := postNext(cmd.Context(), storage.NewQueue(file), rt.pub, rt.cfg.MaxPostLen, rt.posting)
			if errors.Is(err, storage.ErrQueueEmpty) {
				logger.Info("Queue is empty, nothing to post", "file", file)
				return rt.finish(nil)
			}
			if err != nil {
				metrics.Global.IncrementPostFailures()
				return rt.finish(err)
			}
			metrics.Global.IncrementPostsSent()
			logger.Info("Posted", "publisher", rt.pub.Name(), "post_id", id)
			return rt.finish(nil)
		},
	}
	next.Flags().StringVar(&file, "file", "", "queue file (default QUEUE_PATH)")

	var text string
	single := &cobra.Command{
		Use:   "text",
		Short: "Post the given text",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(g)
			if err != nil {
				return err
			}
			text = strings.TrimSpace(text)
			if err := checkLength(text, rt.cfg.MaxPostLen); err != nil {
				return err
			}
			id, err := rt.pub.Publish(cmd.Context(), publish.Post{Text: text})
			if err != nil {
				metrics.Global.IncrementPostFailures()
				return rt.finish(err)
			}
			metrics.Global.IncrementPostsSent()
			logger.Info("Posted", "publisher", rt.pub.Name(), "post_id", id)
			return rt.finish(nil)
		},
	}
	single.Flags().StringVar(&text, "text", "", "text to post")

	cmd.AddCommand(next, single)
	return cmd
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Authenticate with the publisher and print the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(g)
			if err != nil {
				return err
			}
			if err := rt.cfg.ValidateFor(true); err != nil {
				return err
			}
			pub, err := realPublisher(rt.cfg)
			if err != nil {
				return err
			}
			handle, err := pub.Verify(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s authentication failed: %w", pub.Name(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as %s on %s\n", handle, pub.Name())
			return nil
		},
	}
}
