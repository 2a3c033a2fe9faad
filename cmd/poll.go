package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll [feed-id...]",
	Short: "Run one poll cycle and exit",
	Long: `Poll the given feeds, or every eligible feed when none is given, once and
in sequence. Useful from cron when the long-running server is not wanted.`,
	Run: pollOnce,
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

func pollOnce(_ *cobra.Command, args []string) {
	defer StopApp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feedIDs := args
	if len(feedIDs) == 0 {
		feeds, err := engageEngine.ListFeeds(ctx, true)
		if err != nil {
			logrus.Fatalf("failed to list eligible feeds: %v", err)
		}
		for _, f := range feeds {
			feedIDs = append(feedIDs, f.ID)
		}
	}
	if len(feedIDs) == 0 {
		fmt.Println("No eligible feeds.")
		return
	}

	started := time.Now()
	var cycles, failed, newPosts, triggered, actionFailures int
	for _, id := range feedIDs {
		if ctx.Err() != nil {
			break
		}
		result, err := engageEngine.RunCycle(ctx, id)
		cycles++
		if err != nil {
			if errors.Is(err, domain.ErrFeedBusy) {
				fmt.Printf("%-36s  busy, polled by another instance\n", id)
				continue
			}
			failed++
			fmt.Printf("%-36s  error: %v\n", id, err)
			continue
		}
		newPosts += result.NewPosts
		triggered += result.ActionsTriggered
		actionFailures += result.ActionsFailed
		fmt.Printf("%-36s  %-13s  %d found, %d new, %d dispatched, %d failed\n",
			id, result.Status, result.PostsFound, result.NewPosts, result.ActionsTriggered, result.ActionsFailed)
	}

	fmt.Printf("\n%s cycles (%s with errors), %s new posts, %s actions dispatched, %s failed, took %s\n",
		humanize.Comma(int64(cycles)),
		humanize.Comma(int64(failed)),
		humanize.Comma(int64(newPosts)),
		humanize.Comma(int64(triggered)),
		humanize.Comma(int64(actionFailures)),
		time.Since(started).Round(time.Millisecond),
	)
}
