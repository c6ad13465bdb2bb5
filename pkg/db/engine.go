package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JayJamieson/csv-sql/pkg/dialect"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/gommon/log"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Execer runs statements either directly on an engine or inside a transaction.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (*Result, error)
}

// Engine is the backing relational engine: exec, query and transactions.
type Engine interface {
	Execer

	// Transaction runs fn inside one transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Execer) error) error

	Dialect() dialect.Dialect
	Close() error
}

type sqlEngine struct {
	conn    *sql.DB
	dialect dialect.Dialect
}

// Open connects to the engine named by dbURL:
//
//	postgres://...  or postgresql://...   PostgreSQL through pgx
//	duckdb:<path>                         DuckDB, in memory when path is empty
//	libsql://..., http(s)://..., ws(s)://...  remote libSQL
//	file:<path>, sqlite:<path>, :memory:  local SQLite
func Open(dbURL string) (Engine, error) {
	d, err := dialect.ForURL(dbURL)
	if err != nil {
		return nil, err
	}

	dsn := dbURL
	switch d.(type) {
	case dialect.DuckDB:
		dsn = strings.TrimPrefix(dbURL, "duckdb:")
	case dialect.SQLite:
		dsn = strings.TrimPrefix(dbURL, "sqlite:")
	}

	conn, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d.DriverName() == "sqlite" {
		// one connection keeps an in-memory database alive and serializes writers
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Name(), err)
	}

	return &sqlEngine{conn: conn, dialect: d}, nil
}

func (e *sqlEngine) Dialect() dialect.Dialect {
	return e.dialect
}

func (e *sqlEngine) Close() error {
	return e.conn.Close()
}

func (e *sqlEngine) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.conn.ExecContext(ctx, query, args...)
	return err
}

func (e *sqlEngine) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	startTime := time.Now()

	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, startTime)
}

func (e *sqlEngine) Transaction(ctx context.Context, fn func(tx Execer) error) (err error) {
	tx, err := e.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Errorf("Error rolling back transaction: %v", rbErr)
			}
		}
	}()

	if err = fn(txExecer{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txExecer struct {
	tx *sql.Tx
}

func (t txExecer) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t txExecer) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	startTime := time.Now()

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, startTime)
}

func collect(rows *sql.Rows, startTime time.Time) (*Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := newResult(columns)

	for rows.Next() {
		values := make([]any, len(columns))

		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		result.append(values)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result.QueryMS = float64(time.Since(startTime).Microseconds()) / 1000.0
	return result, nil
}
