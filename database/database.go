package database

import (
	"context"
	"database/sql"
	"fmt"

	"stocks-simulator/models"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the users, transactions and quote_snapshots tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.QuoteSnapshot{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// WithinTx runs fn inside a database transaction. An error from fn, or a
// panic, rolls the transaction back; otherwise it is committed.
func WithinTx(ctx context.Context, db *gorm.DB, opts *sql.TxOptions, fn func(tx *gorm.DB) error) error {
	var tx *gorm.DB
	if opts != nil {
		tx = db.WithContext(ctx).Begin(opts)
	} else {
		tx = db.WithContext(ctx).Begin()
	}
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SnapshotOptions returns options for a read-only transaction that sees a
// single snapshot. sqlite transactions already do, so nil is returned there.
func SnapshotOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
