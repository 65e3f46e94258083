package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const savepointName = "row_write"

// Tx is a traced transaction that rebinds placeholders like DB.
type Tx struct {
	tx *sql.Tx
	db *DB
}

// WithTx runs fn inside one transaction. The transaction commits if fn
// returns nil and rolls back otherwise.
func (db *DB) WithTx(ctx context.Context, name string, fn func(tx *Tx) error) (err error) {
	ctx, span := dbTracer.Start(ctx, "db.Tx", trace.WithAttributes(
		attribute.String("db.system", db.dialect.system()),
		attribute.String("db.tx.name", name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sqlTx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s: %w", name, err)
	}

	tx := &Tx{tx: sqlTx, db: db}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("Warning: rollback of %s failed: %v", name, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	return nil
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = tx.db.rebind(query)
	ctx, span := tx.db.startSpan(ctx, "db.Query", query)
	defer span.End()

	rows, err := tx.tx.QueryContext(ctx, query, args...)
	recordError(span, err)
	return rows, err
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *tracedRow {
	query = tx.db.rebind(query)
	ctx, span := tx.db.startSpan(ctx, "db.QueryRow", query)

	return &tracedRow{
		row:  tx.tx.QueryRowContext(ctx, query, args...),
		span: span,
	}
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = tx.db.rebind(query)
	ctx, span := tx.db.startSpan(ctx, "db.Exec", query)
	defer span.End()

	result, err := tx.tx.ExecContext(ctx, query, args...)
	recordError(span, err)
	return result, err
}

// Row runs fn behind a savepoint so that a failing row is undone without
// aborting the surrounding transaction. It returns fn's error as rowErr.
// err is set only when the transaction itself can no longer be used:
// the context is done, or the savepoint could not be created or rolled back.
func (tx *Tx) Row(ctx context.Context, fn func() error) (rowErr, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := tx.tx.ExecContext(ctx, "SAVEPOINT "+savepointName); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}

	if rowErr = fn(); rowErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if _, err := tx.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); err != nil {
			return nil, fmt.Errorf("failed to roll back savepoint after %v: %w", rowErr, err)
		}
	}

	if _, err := tx.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		return nil, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return rowErr, nil
}
