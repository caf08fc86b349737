package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors surfaced by allocation repositories.
var (
	// ErrRoomFull is returned when a conditional occupant append finds no free bed.
	ErrRoomFull = errors.New("room is at capacity")
	// ErrNotOccupant is returned when removing a student that is not in the room.
	ErrNotOccupant = errors.New("student is not an occupant of the room")
	// ErrNotPending is returned when deciding a request that already left pending.
	ErrNotPending = errors.New("request is no longer pending")
	// ErrTokenRevoked is returned when a refresh token was already revoked.
	ErrTokenRevoked = errors.New("refresh token already revoked")
)

type txKey struct{}

// dbtx is satisfied by both *sqlx.DB and *sqlx.Tx.
type dbtx interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// conn returns the transaction bound to ctx, or the pool.
func conn(ctx context.Context, db *sqlx.DB) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// TxManager runs units of work inside a single database transaction.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx executes fn with a transaction attached to its context. Repositories
// invoked with that context join the transaction. Nested calls reuse the outer
// transaction. Any error returned by fn rolls everything back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
