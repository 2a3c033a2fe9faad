package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	coreconfig "github.com/AzielCF/az-engage/core/config"
	coreDB "github.com/AzielCF/az-engage/core/database"
	"github.com/AzielCF/az-engage/engine"
	"github.com/AzielCF/az-engage/infrastructure/valkey"
	"github.com/AzielCF/az-engage/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	engageEngine *engine.Engine
	appDB        *gorm.DB
	vkClient     *valkey.Client
	serverID     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-engage",
	Short: "Watch social feeds and dispatch engagement orders",
	Long: `az-engage polls the RSS feeds of monitored social accounts and, for every
new post, places the configured engagement orders (likes, comments, follows,
views) with a growth-service provider.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initApp)
}

func initFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.String("base-path", "", `base path for subpath deployment --base-path <string> | example: --base-path="/engage"`)
	flags.String("db-driver", "", `database driver, sqlite or postgres --db-driver <string> | example: --db-driver=postgres`)
	flags.String("db-name", "", `sqlite file or postgres database name --db-name <string> | example: --db-name="storages/engage.db"`)
	flags.Duration("poll-interval", 0, "time between poll ticks --poll-interval <duration> | example: --poll-interval=2m")
	flags.Int("workers", 0, "number of feeds polled concurrently --workers <number> | example: --workers=8")
	flags.Bool("engine-enabled", true, "run the poll timer --engine-enabled <true/false> | example: --engine-enabled=false")

	_ = viper.BindPFlag("app_port", flags.Lookup("port"))
	_ = viper.BindPFlag("app_debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("app_base_path", flags.Lookup("base-path"))
	_ = viper.BindPFlag("db_driver", flags.Lookup("db-driver"))
	_ = viper.BindPFlag("db_name", flags.Lookup("db-name"))
	_ = viper.BindPFlag("engine_poll_interval", flags.Lookup("poll-interval"))
	_ = viper.BindPFlag("engine_workers", flags.Lookup("workers"))
	_ = viper.BindPFlag("engine_enabled", flags.Lookup("engine-enabled"))
}

// applyFlagOverrides lets explicit flags win over the environment.
func applyFlagOverrides(cfg *coreconfig.Config) {
	flags := rootCmd.PersistentFlags()
	if flags.Changed("port") {
		cfg.App.Port = viper.GetString("app_port")
	}
	if flags.Changed("debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}
	if flags.Changed("base-path") {
		cfg.App.BasePath = viper.GetString("app_base_path")
	}
	if flags.Changed("db-driver") {
		cfg.Database.Driver = viper.GetString("db_driver")
	}
	if flags.Changed("db-name") {
		cfg.Database.Name = viper.GetString("db_name")
	}
	if flags.Changed("poll-interval") {
		cfg.Engine.PollInterval = viper.GetDuration("engine_poll_interval")
	}
	if flags.Changed("workers") {
		cfg.Engine.Workers = viper.GetInt("engine_workers")
	}
	if flags.Changed("engine-enabled") {
		cfg.Engine.Enabled = viper.GetBool("engine_enabled")
	}
}

func initApp() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	applyFlagOverrides(cfg)

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	//preparing folder if not exist
	if err := utils.CreateFolder(cfg.Paths.Storages); err != nil {
		logrus.Errorln(err)
	}

	serverID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)
	cfg.App.ServerID = serverID

	appDB, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("failed to open database: %v", err)
	}

	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			// Leases fall back to this process only; fine for a single instance.
			logrus.WithError(err).Warn("[VALKEY] Unavailable, continuing without distributed leases")
			vkClient = nil
		} else {
			logrus.Infof("[VALKEY] Connected to %s", cfg.Database.ValkeyAddress)
		}
	}

	engageEngine, err = engine.Build(context.Background(), cfg, appDB, vkClient)
	if err != nil {
		logrus.Fatalf("failed to build engine: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"driver":    cfg.Database.Driver,
		"interval":  cfg.Engine.PollInterval,
		"workers":   cfg.Engine.Workers,
		"ai":        strings.ToLower(cfg.AI.Provider),
		"server_id": serverID,
	}).Info("[APP] Initialized")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of the engine and its connections.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if engageEngine != nil {
		engageEngine.Stop()
	}
	if vkClient != nil {
		vkClient.Close()
	}
	if appDB != nil {
		if sqlDB, err := appDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
