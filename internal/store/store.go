package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds rule store configuration
type Config struct {
	Path       string            // Database file path
	Log        *logrus.Logger
	SQLiteOpts map[string]string // SQLite connection options
}

// DefaultConfig returns default store configuration for the given db path
func DefaultConfig(path string) *Config {
	return &Config{
		Path: path,
		Log:  logrus.StandardLogger(),
		SQLiteOpts: map[string]string{
			"_busy_timeout": "5000",
			"_journal_mode": "WAL",
			"_foreign_keys": "1",
			"_synchronous":  "NORMAL",
		},
	}
}

// Store bundles the rule store's database handle and repositories
type Store struct {
	db *gorm.DB

	Rules    RuleRepository
	Entities EntityRepository
}

// Open opens (creating if needed) the sqlite-backed rule store and runs
// auto-migration for all models.
func Open(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("store config cannot be nil")
	}
	if config.Log == nil {
		config.Log = logrus.StandardLogger()
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	dsn := config.Path
	sep := "?"
	for k, v := range config.SQLiteOpts {
		dsn += fmt.Sprintf("%s%s=%s", sep, k, v)
		sep = "&"
	}

	config.Log.WithField("database", config.Path).Info("Opening rule store")

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open rule store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// SQLite doesn't support multiple writers
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.AutoMigrate(&Organization{}, &Team{}, &RuleRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate rule store: %w", err)
	}

	return &Store{
		db:       db,
		Rules:    NewRuleRepository(db),
		Entities: NewEntityRepository(db),
	}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
