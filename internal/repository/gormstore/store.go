// Package gormstore persists ledgers and learners through GORM, on PostgreSQL when a
// database URL is configured and on SQLite otherwise.
package gormstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds database configuration.
type Config struct {
	// DatabaseURL selects PostgreSQL when it starts with postgres:// or postgresql://.
	DatabaseURL string
	// Path is the SQLite file used when DatabaseURL is empty.
	Path     string
	MaxConns int
	LogLevel gormlogger.LogLevel
}

// Store represents the GORM database connection.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB

	ledgers  *ledgerRepository
	learners *learnerRepository
}

// gormWriter routes GORM's own log lines through the application logger.
type gormWriter struct{ log *logger.Logger }

func (w gormWriter) Printf(format string, args ...any) { w.log.Debug(format, args...) }

// Open connects, runs migrations and returns a ready store.
func Open(cfg Config) (*Store, error) {
	log := logger.Default().WithPrefix("gormstore")

	if cfg.LogLevel == 0 {
		cfg.LogLevel = gormlogger.Warn
	}
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(gormWriter{log}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		db      *gorm.DB
		err     error
		isLocal bool
	)
	switch {
	case isPostgresURL(cfg.DatabaseURL):
		log.Info("opening postgres database")
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	case cfg.DatabaseURL != "":
		return nil, fmt.Errorf("unsupported database url scheme: %q", cfg.DatabaseURL)
	default:
		isLocal = true
		log.Info("opening sqlite database: %s", cfg.Path)
		rawDB, openErr := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_foreign_keys=on")
		if openErr != nil {
			return nil, fmt.Errorf("open database: %w", openErr)
		}
		db, err = gorm.Open(sqlite.Dialector{Conn: rawDB}, gormCfg)
		if err != nil {
			_ = rawDB.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	maxConns := cfg.MaxConns
	if isLocal {
		maxConns = 1 // single writer
	} else if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Info("database ready")
	return &Store{
		DB:       db,
		sqlDB:    sqlDB,
		ledgers:  &ledgerRepository{db: db},
		learners: &learnerRepository{db: db},
	}, nil
}

func isPostgresURL(u string) bool {
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

func (s *Store) Ledgers() repository.LedgerRepository   { return s.ledgers }
func (s *Store) Learners() repository.LearnerRepository { return s.learners }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}
