package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
	"github.com/JayJamieson/csv-sql/pkg/ident"
	"github.com/JayJamieson/csv-sql/pkg/infer"
	"github.com/JayJamieson/csv-sql/pkg/models"
	"github.com/JayJamieson/csv-sql/pkg/schema"
	"github.com/labstack/gommon/log"
)

const (
	DefaultBatchSize = 500
	DefaultMaxParams = 32000
)

type LoadOptions struct {
	// BatchSize caps rows per INSERT; MaxParams caps bound parameters per INSERT.
	BatchSize int
	MaxParams int

	Logger   *log.Logger
	ImportID string
}

// RowsPerBatch returns the largest batch size not above baseBatch for which
// batch*columnCount stays within maxParams, and never less than one row.
func RowsPerBatch(columnCount, baseBatch, maxParams int) int {
	if baseBatch <= 0 {
		baseBatch = DefaultBatchSize
	}
	if maxParams <= 0 {
		maxParams = DefaultMaxParams
	}
	if columnCount <= 0 {
		return baseBatch
	}
	return max(1, min(baseBatch, maxParams/columnCount))
}

// Load drops and recreates table, then inserts rows in batches. Everything
// runs in one transaction: on any failure nothing of the table remains.
func Load(ctx context.Context, engine Engine, table *schema.Table, rows []csvfile.Row, opts LoadOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = log.New("db")
	}

	columns := insertColumns(table, table.Dialect.GeneratesKeys())
	perBatch := RowsPerBatch(len(columns), opts.BatchSize, opts.MaxParams)
	batches := (len(rows) + perBatch - 1) / perBatch

	err := engine.Transaction(ctx, func(tx Execer) error {
		if err := tx.Exec(ctx, table.DropSQL); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
		if err := tx.Exec(ctx, table.CreateSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		for batch, start := 1, 0; start < len(rows); batch, start = batch+1, start+perBatch {
			end := min(start+perBatch, len(rows))

			query, args, err := insertStatement(table, columns, rows[start:end], start)
			if err != nil {
				return err
			}
			if err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert batch %d of %d: %w", batch, batches, err)
			}

			logger.Debugj(log.JSON{
				"import_id": opts.ImportID,
				"table":     table.Name,
				"batch":     batch,
				"batches":   batches,
				"rows":      end - start,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load table %s: %w", table.Name, err)
	}

	return nil
}

// insertColumns lists the columns that receive values; a synthetic key is
// left to the engine when it can generate one.
func insertColumns(table *schema.Table, engineKeys bool) []models.ColumnMetadata {
	columns := make([]models.ColumnMetadata, 0, len(table.Columns))
	for _, col := range table.Columns {
		if col.Index < 0 && engineKeys {
			continue
		}
		columns = append(columns, col)
	}
	return columns
}

func insertStatement(table *schema.Table, columns []models.ColumnMetadata, rows []csvfile.Row, offset int) (string, []any, error) {
	d := table.Dialect

	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = ident.Quote(col.SanitizedName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", ident.Quote(table.Name), strings.Join(names, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for i, col := range columns {
			if i > 0 {
				b.WriteString(", ")
			}

			var val any
			switch {
			case col.Index < 0:
				val = int64(offset + r + 1)
			case col.Index >= len(row):
				// absent trailing cells are NULL, as in csvfile.RawCSV.Column
			default:
				var err error
				val, err = convert(col, row[col.Index])
				if err != nil {
					return "", nil, fmt.Errorf("row %d: %w", offset+r+1, err)
				}
			}

			args = append(args, val)
			b.WriteString(d.Placeholder(len(args)))
		}
		b.WriteByte(')')
	}

	return b.String(), args, nil
}

// convert turns a cell into the bind value for its column type.
func convert(col models.ColumnMetadata, v csvfile.Value) (any, error) {
	if v.Kind == csvfile.Null {
		return nil, nil
	}

	switch {
	case col.PGType == infer.TypeBoolean:
		if v.Kind == csvfile.Bool {
			return v.Bool, nil
		}
		if !infer.IsBoolLiteral(v.Raw) {
			return nil, invalidValue(col, v)
		}
		return infer.ParseBool(v.Raw), nil
	case infer.IsIntegerType(col.PGType):
		n, ok := infer.ParseInteger(v.Raw)
		if !ok {
			return nil, invalidValue(col, v)
		}
		return n, nil
	case col.PGType == infer.TypeNumeric:
		return strings.TrimSpace(v.Raw), nil
	case col.PGType == infer.TypeDate:
		if t, ok := infer.ParseDate(v.Raw); ok {
			return t.Format("2006-01-02"), nil
		}
		return nil, invalidValue(col, v)
	case col.PGType == infer.TypeTime:
		if t, ok := infer.ParseTime(v.Raw); ok {
			return t.Format("15:04:05"), nil
		}
		return nil, invalidValue(col, v)
	case col.PGType == infer.TypeTimestamp:
		if t, ok := infer.ParseTimestamp(v.Raw); ok {
			return t.Format("2006-01-02 15:04:05.999999999"), nil
		}
		if t, ok := infer.ParseDate(v.Raw); ok {
			return t.Format("2006-01-02 15:04:05"), nil
		}
		return nil, invalidValue(col, v)
	}

	return v.Raw, nil
}

// invalidValue reports a cell that does not fit the type inferred for its
// column, typically one beyond the inference sample.
func invalidValue(col models.ColumnMetadata, v csvfile.Value) error {
	return fmt.Errorf("invalid %s value %q in column %s", col.PGType, v.Raw, col.SanitizedName)
}
