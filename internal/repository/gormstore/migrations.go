package gormstore

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "0001_init",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&LearnerRecord{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&LedgerRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("ledgers", "learners")
			},
		},
	}
}

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}

// RollbackLast undoes the most recent migration.
func (s *Store) RollbackLast() error {
	return gormigrate.New(s.DB, gormigrate.DefaultOptions, migrations()).RollbackLast()
}
