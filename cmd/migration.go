package cmd

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and optionally establish pending baselines",
	Long: `The schema is migrated on every start; this command only does that and
exits. With --activate-pending it also fetches every feed still waiting for its
baseline and records the current entries as already seen, so the first poll
does not dispatch actions for old posts.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().Bool("activate-pending", false, "establish baselines for feeds that have none")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	defer StopApp()

	// The schema was migrated while building the engine.
	logrus.Info("[MIGRATION] Schema is up to date")

	activate, _ := cmd.Flags().GetBool("activate-pending")
	if !activate {
		return nil
	}
	return ActivatePendingFeeds(cmd.Context())
}

// ActivatePendingFeeds establishes a baseline for every enabled feed still
// in pending state. Failures are logged and counted, not fatal.
func ActivatePendingFeeds(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logrus.Info("[MIGRATION] Checking for feeds without baseline...")

	feeds, err := engageEngine.ListFeeds(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list feeds: %w", err)
	}

	activated, failed := 0, 0
	for _, feed := range feeds {
		if !feed.Enabled || feed.Status != domain.FeedStatusPending {
			continue
		}
		baseline, err := engageEngine.Accounts().ActivateFeed(ctx, feed.AccountID)
		if err != nil {
			failed++
			logrus.Errorf("[MIGRATION] Failed to activate feed %s: %v", feed.ID, err)
			continue
		}
		activated++
		logrus.Infof("[MIGRATION] Feed %s activated with %d known entries", feed.ID, len(baseline.PostIDs))
	}

	if activated > 0 || failed > 0 {
		logrus.Infof("[MIGRATION] Activated %d feeds, %d failed.", activated, failed)
	} else {
		logrus.Info("[MIGRATION] No pending feeds.")
	}
	return nil
}
