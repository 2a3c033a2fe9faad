package database

import (
	"fmt"
	"time"

	"github.com/AzielCF/az-engage/core/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GlobalDB holds the singleton database connection
var GlobalDB *gorm.DB

// NewDatabase initializes a database connection based on the provided configuration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg.Database, cfg.App.Debug)
	if err == nil {
		GlobalDB = db
	}
	return db, err
}

// Open connects to Postgres or SQLite. For SQLite, Name is the file path and
// the pool is limited to a single connection so writes never see SQLITE_BUSY.
func Open(dbCfg config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbCfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			dbCfg.Host,
			dbCfg.User,
			dbCfg.Password,
			dbCfg.Name,
			dbCfg.Port,
		)
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbCfg.Name)
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbCfg.Driver)
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database (%s): %w", dbCfg.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	if dbCfg.Driver == "sqlite" || dbCfg.Driver == "" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	logrus.Infof("[DATABASE] Connected using %s driver", driverName(dbCfg.Driver))
	return db, nil
}

// OpenSQLite is a shortcut for tools and tests that only need a local file.
func OpenSQLite(path string) (*gorm.DB, error) {
	return Open(config.DatabaseConfig{Driver: "sqlite", Name: path}, false)
}

func driverName(driver string) string {
	if driver == "" {
		return "sqlite"
	}
	return driver
}
