package db

import (
	"context"
	"fmt"
	"io"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
	"github.com/JayJamieson/csv-sql/pkg/ident"
	"github.com/JayJamieson/csv-sql/pkg/models"
	"github.com/JayJamieson/csv-sql/pkg/schema"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

type ImportParams struct {
	// TableName is the name as given by the user; it is sanitized before use.
	TableName    string
	Headers      []string
	Rows         []csvfile.Row
	PreviewLimit int
}

type ImportResult struct {
	ID       string
	Metadata models.TableMetadata
	Preview  *Result
	Query    string
	Tables   []string
}

func (db *DB) schemaOptions() schema.Options {
	opts := schema.DefaultOptions()
	opts.PrimaryKeyName = db.opts.PrimaryKeyName
	opts.Infer = db.opts.Infer
	opts.Dialect = db.engine.Dialect()
	return opts
}

func (db *DB) loadOptions(id string) LoadOptions {
	return LoadOptions{
		BatchSize: db.opts.BatchSize,
		MaxParams: db.opts.MaxParams,
		Logger:    db.logger,
		ImportID:  id,
	}
}

func (db *DB) createTable(ctx context.Context, id, tableName string, headers []string, rows []csvfile.Row) (*models.TableMetadata, error) {
	sanitized := ident.Sanitize(tableName)

	table, err := schema.GenerateCreateTable(sanitized, headers, rows, db.schemaOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to generate table %s: %w", sanitized, err)
	}

	db.logger.Debugj(log.JSON{
		"import_id": id,
		"table":     sanitized,
		"ddl":       table.CreateSQL,
		"key":       table.PrimaryKeyColumn().SanitizedName,
	})

	if err := Load(ctx, db.engine, table, rows, db.loadOptions(id)); err != nil {
		return nil, err
	}

	return &models.TableMetadata{
		TableName:          tableName,
		SanitizedTableName: sanitized,
		Columns:            table.Columns,
		RowCount:           len(rows),
	}, nil
}

// CreateTableFromCSV generates and loads a table without reading it back.
func (db *DB) CreateTableFromCSV(ctx context.Context, tableName string, headers []string, rows []csvfile.Row) (*models.TableMetadata, error) {
	return db.createTable(ctx, uuid.New().String(), tableName, headers, rows)
}

// ImportCSV creates the table, loads every row, then returns the refreshed
// table list and a bounded preview of the new table.
func (db *DB) ImportCSV(ctx context.Context, params ImportParams) (*ImportResult, error) {
	id := uuid.New().String()

	db.logger.Infoj(log.JSON{
		"import_id": id,
		"table":     params.TableName,
		"columns":   len(params.Headers),
		"rows":      len(params.Rows),
	})

	metadata, err := db.createTable(ctx, id, params.TableName, params.Headers, params.Rows)
	if err != nil {
		db.logger.Errorj(log.JSON{"import_id": id, "table": params.TableName, "error": err.Error()})
		return nil, err
	}

	tables, err := db.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	preview, err := db.FetchPreview(ctx, metadata.SanitizedTableName, params.PreviewLimit)
	if err != nil {
		return nil, err
	}

	db.logger.Infoj(log.JSON{
		"import_id": id,
		"table":     metadata.SanitizedTableName,
		"rows":      metadata.RowCount,
		"status":    "imported",
	})

	return &ImportResult{
		ID:       id,
		Metadata: *metadata,
		Preview:  preview.Result,
		Query:    preview.Query,
		Tables:   tables,
	}, nil
}

// ImportCSVFromReader parses an uploaded file (csv, tsv, xlsx, optionally
// compressed) and imports it into a table named after the file.
func (db *DB) ImportCSVFromReader(ctx context.Context, filename string, reader io.Reader) (*ImportResult, error) {
	raw, err := csvfile.Open(ctx, filename, reader, db.opts.Parse)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	return db.ImportCSV(ctx, ImportParams{
		TableName: ident.TrimFileName(filename),
		Headers:   raw.Headers,
		Rows:      raw.Rows,
	})
}
