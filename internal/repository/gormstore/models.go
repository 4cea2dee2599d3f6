package gormstore

import "time"

// LedgerRecord stores one namespace's ledger in its persisted JSON layout.
type LedgerRecord struct {
	Namespace string    `gorm:"primaryKey;size:255"`
	Data      string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"index"`
}

func (LedgerRecord) TableName() string { return "ledgers" }

type LearnerRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"not null"`
	License   string    `gorm:"not null;default:''"`
	Email     string    `gorm:"not null;default:''"`
	CreatedAt time.Time `gorm:"index"`
}

func (LearnerRecord) TableName() string { return "learners" }
