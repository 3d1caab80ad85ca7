package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// TxFn runs against transaction-bound repositories. Returning a non-nil error
// rolls the whole transaction back.
type TxFn func(carts CartRepository, products ProductRepository) error

// TxManager scopes a unit of work to a single database transaction: rollback
// on any error or panic, commit only on full success.
type TxManager interface {
	WithinTx(ctx context.Context, fn TxFn) error
}

type txManager struct {
	db *sql.DB
}

// NewTxManager creates a TxManager over the given database handle
func NewTxManager(db *sql.DB) TxManager {
	return &txManager{db: db}
}

func (m *txManager) WithinTx(ctx context.Context, fn TxFn) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(NewCartRepository(tx), NewProductRepository(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
