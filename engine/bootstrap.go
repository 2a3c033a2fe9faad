package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/AzielCF/az-engage/core/config"
	"github.com/AzielCF/az-engage/engine/application"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/engine/providers"
	"github.com/AzielCF/az-engage/engine/repository"
	"github.com/AzielCF/az-engage/infrastructure/valkey"
	"github.com/AzielCF/az-engage/integrations/jap"
	"github.com/AzielCF/az-engage/integrations/rssapp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Build migrates the schema and assembles the engine with its production
// adapters. vk may be nil, in which case feed leases stay in process.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, vk *valkey.Client) (*Engine, error) {
	if err := repository.AutoMigrate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to migrate engine schema: %w", err)
	}

	if cfg.OrderService.APIKey == "" {
		logrus.Warn("[ENGINE] JAP_API_KEY is empty, every order will fail until it is set")
	}
	orders := jap.NewClient(jap.Config{
		URL:           cfg.OrderService.URL,
		APIKey:        cfg.OrderService.APIKey,
		ServicesCache: cfg.OrderService.ServicesCache,
	})

	deps := Dependencies{
		Accounts:   repository.NewAccountGormRepository(db),
		Feeds:      repository.NewFeedGormRepository(db),
		Ledger:     repository.NewLedgerGormRepository(db),
		Actions:    repository.NewActionGormRepository(db),
		Executions: repository.NewExecutionGormRepository(db),
		Fetcher:    rssapp.NewFetcher("az-engage/" + cfg.App.Version),
		Orders:     orders,
		Catalog:    orders,
		Generator:  providers.NewCommentGenerator(cfg.AI),
		Lease:      newLease(cfg, vk),
	}
	if cfg.Feeds.Enabled() {
		deps.Provisioner = rssapp.NewClient(rssapp.Config{
			URL:       cfg.Feeds.URL,
			APIKey:    cfg.Feeds.APIKey,
			APISecret: cfg.Feeds.APISecret,
		})
		logrus.Info("[ENGINE] Hosted feeds provisioned through RSS.app")
	}
	return New(cfg.Engine, deps), nil
}

func newLease(cfg *config.Config, vk *valkey.Client) domain.FeedLease {
	if vk == nil {
		return application.NewMemoryLease()
	}
	owner := cfg.App.ServerID
	if owner == "" {
		owner, _ = os.Hostname()
	}
	logrus.Infof("[ENGINE] Feed leases shared through Valkey (owner %s)", owner)
	return repository.NewValkeyFeedLease(vk, owner)
}
