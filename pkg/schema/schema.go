// Package schema turns parsed CSV data into a CREATE TABLE statement and the
// column metadata the loader needs.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
	"github.com/JayJamieson/csv-sql/pkg/dialect"
	"github.com/JayJamieson/csv-sql/pkg/ident"
	"github.com/JayJamieson/csv-sql/pkg/infer"
	"github.com/JayJamieson/csv-sql/pkg/models"
)

// ErrEmptyDataset is returned when there are no headers or no rows to infer from.
var ErrEmptyDataset = errors.New("cannot generate a table from an empty dataset")

type Options struct {
	PrimaryKeyName     string
	IncludeIfNotExists bool
	Infer              infer.Options
	Dialect            dialect.Dialect
}

func DefaultOptions() Options {
	return Options{
		PrimaryKeyName:     infer.DefaultPrimaryKeyName,
		IncludeIfNotExists: true,
		Dialect:            dialect.Postgres{},
	}
}

// Table is a generated table definition. Columns are in declaration order,
// primary key first.
type Table struct {
	Name       string
	CreateSQL  string
	DropSQL    string
	Columns    []models.ColumnMetadata
	PrimaryKey infer.PrimaryKey
	Dialect    dialect.Dialect
}

// PrimaryKeyColumn returns the metadata of the key column.
func (t *Table) PrimaryKeyColumn() models.ColumnMetadata {
	return t.Columns[0]
}

// GenerateCreateTable infers a type for every header, picks a primary key and
// renders the DDL for tableName, which must already be sanitized.
func GenerateCreateTable(tableName string, headers []string, rows []csvfile.Row, opts Options) (*Table, error) {
	if len(headers) == 0 || len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	if opts.Dialect == nil {
		opts.Dialect = dialect.Postgres{}
	}
	if opts.PrimaryKeyName == "" {
		opts.PrimaryKeyName = infer.DefaultPrimaryKeyName
	}

	raw := csvfile.RawCSV{Headers: headers, Rows: rows}
	defs := make([]infer.ColumnDefinition, len(headers))
	for i, h := range headers {
		defs[i] = infer.InferColumn(h, raw.Column(i), opts.Infer)
	}

	pk := infer.SelectPrimaryKey(defs, rows, opts.PrimaryKeyName)
	columns := declarationOrder(defs, pk)

	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = ident.Sanitize(col.OriginalName)
	}
	for i, name := range ident.Unique(names) {
		columns[i].SanitizedName = name
	}

	table := &Table{
		Name:       tableName,
		Columns:    columns,
		PrimaryKey: pk,
		Dialect:    opts.Dialect,
		DropSQL:    opts.Dialect.DropTable(tableName),
	}
	table.CreateSQL = createStatement(table, opts.IncludeIfNotExists)

	return table, nil
}

func declarationOrder(defs []infer.ColumnDefinition, pk infer.PrimaryKey) []models.ColumnMetadata {
	columns := make([]models.ColumnMetadata, 0, len(defs)+1)

	if pk.Synthetic {
		columns = append(columns, models.ColumnMetadata{
			OriginalName:  pk.Name,
			PGType:        infer.TypeSerial,
			PrimaryKey:    true,
			AutoIncrement: true,
			Index:         -1,
		})
	} else {
		def := defs[pk.Index]
		columns = append(columns, models.ColumnMetadata{
			OriginalName:  def.Name,
			PGType:        def.PGType,
			Nullable:      def.Nullable,
			PrimaryKey:    true,
			AutoIncrement: def.IsAutoIncrement,
			Index:         pk.Index,
		})
	}

	for i, def := range defs {
		if !pk.Synthetic && i == pk.Index {
			continue
		}
		columns = append(columns, models.ColumnMetadata{
			OriginalName:  def.Name,
			PGType:        def.PGType,
			Nullable:      def.Nullable,
			AutoIncrement: def.IsAutoIncrement,
			Index:         i,
		})
	}

	return columns
}

func createStatement(t *Table, ifNotExists bool) string {
	var b strings.Builder

	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	fmt.Fprintf(&b, "%s (\n", ident.Quote(t.Name))

	for i, col := range t.Columns {
		colType := t.Dialect.ColumnType(col.PGType)
		if col.PrimaryKey && col.Index < 0 {
			colType = t.Dialect.SyntheticKeyType()
		}
		fmt.Fprintf(&b, "  %s %s", ident.Quote(col.SanitizedName), colType)

		switch {
		case col.PrimaryKey:
			b.WriteString(" PRIMARY KEY")
		case !col.Nullable:
			b.WriteString(" NOT NULL")
		}

		if i < len(t.Columns)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}

	b.WriteString(")")
	return b.String()
}
