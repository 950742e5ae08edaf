package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxRunner executes a function against transaction-scoped stores. Ingestion
// uses it so the event insert, rule evaluation, and alert inserts commit as
// one atomic unit; any error rolls everything back.
type TxRunner interface {
	InTransaction(ctx context.Context, fn func(Stores) error) error
}

type gormTxRunner struct {
	db      *gorm.DB
	isMySQL bool
}

// NewTxRunner creates a TxRunner over the given database handle.
func NewTxRunner(db *gorm.DB, isMySQL bool) TxRunner {
	return &gormTxRunner{db: db, isMySQL: isMySQL}
}

func (r *gormTxRunner) InTransaction(ctx context.Context, fn func(Stores) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStores(tx, r.isMySQL))
	})
}
