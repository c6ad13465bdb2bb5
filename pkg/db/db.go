package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
	"github.com/JayJamieson/csv-sql/pkg/ident"
	"github.com/JayJamieson/csv-sql/pkg/infer"
	"github.com/JayJamieson/csv-sql/pkg/models"
	"github.com/labstack/gommon/log"
)

const DefaultPreviewLimit = 100

// ErrTableNotFound is returned by GetSchema for a table that does not exist.
var ErrTableNotFound = errors.New("table not found")

type Options struct {
	Parse          csvfile.Options
	Infer          infer.Options
	PrimaryKeyName string
	BatchSize      int
	MaxParams      int
	PreviewLimit   int
	LogLevel       log.Lvl
}

// DB is the import pipeline and table service bound to one engine. It is
// created once per process and shared by every request.
type DB struct {
	engine Engine
	opts   Options
	logger *log.Logger
}

func New(dbURL string, opts Options) (*DB, error) {
	engine, err := Open(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return NewWithEngine(engine, opts), nil
}

func NewWithEngine(engine Engine, opts Options) *DB {
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = DefaultPreviewLimit
	}
	if opts.PrimaryKeyName == "" {
		opts.PrimaryKeyName = infer.DefaultPrimaryKeyName
	}

	logger := log.New("db")
	if opts.LogLevel != 0 {
		logger.SetLevel(opts.LogLevel)
	}

	return &DB{
		engine: engine,
		opts:   opts,
		logger: logger,
	}
}

func (db *DB) Close() error {
	return db.engine.Close()
}

// Logger returns the pipeline logger so callers can redirect its output.
func (db *DB) Logger() *log.Logger {
	return db.logger
}

func (db *DB) Engine() Engine {
	return db.engine
}

// ListTables returns the user tables of the default schema, sorted by name.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	result, err := db.engine.Query(ctx, db.engine.Dialect().ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]string, 0, len(result.Values))
	for _, row := range result.Values {
		tables = append(tables, fmt.Sprint(row[0]))
	}
	slices.Sort(tables)

	return tables, nil
}

// RunQuery executes sql as given. Errors from the engine are returned unwrapped.
func (db *DB) RunQuery(ctx context.Context, sql string) (*Result, error) {
	return db.engine.Query(ctx, sql)
}

type DropResult struct {
	SanitizedTableName string
	Dropped            bool
	Tables             []string
}

// DropTable drops the sanitized table if it exists and returns the refreshed table list.
func (db *DB) DropTable(ctx context.Context, name string) (*DropResult, error) {
	sanitized := ident.Sanitize(name)

	before, err := db.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	if err := db.engine.Exec(ctx, db.engine.Dialect().DropTable(sanitized)); err != nil {
		return nil, fmt.Errorf("failed to drop table %s: %w", sanitized, err)
	}

	tables, err := db.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	return &DropResult{
		SanitizedTableName: sanitized,
		Dropped:            slices.Contains(before, sanitized),
		Tables:             tables,
	}, nil
}

type Preview struct {
	*Result
	SanitizedTableName string
	Query              string
}

// FetchPreview reads at most limit rows of a table and returns the query used.
func (db *DB) FetchPreview(ctx context.Context, name string, limit int) (*Preview, error) {
	if limit <= 0 {
		limit = db.opts.PreviewLimit
	}

	sanitized := ident.Sanitize(name)
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", ident.Quote(sanitized), limit)

	result, err := db.engine.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}

	return &Preview{Result: result, SanitizedTableName: sanitized, Query: query}, nil
}

type BrowseOptions struct {
	Limit    int
	Offset   int
	Sort     string
	SortDesc bool
	RowID    bool
}

// Browse pages through a table with optional sorting and a row number column.
func (db *DB) Browse(ctx context.Context, name string, opts BrowseOptions) (*Preview, error) {
	sanitized := ident.Sanitize(name)

	query := "SELECT "
	if opts.RowID {
		query += "row_number() OVER () AS rowid, "
	}
	query += "* FROM " + ident.Quote(sanitized)

	if opts.Sort != "" {
		direction := ""
		if opts.SortDesc {
			direction = " DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s%s", ident.Quote(opts.Sort), direction)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = db.opts.PreviewLimit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	result, err := db.engine.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}

	return &Preview{Result: result, SanitizedTableName: sanitized, Query: query}, nil
}

var typeLength = regexp.MustCompile(`\((\d+)\)`)

// GetSchema returns the columns of a table ordered by ordinal position.
func (db *DB) GetSchema(ctx context.Context, name string) ([]models.ColumnInfo, error) {
	sanitized := ident.Sanitize(name)

	query, args := db.engine.Dialect().SchemaQuery(sanitized)
	result, err := db.engine.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get table info: %w", err)
	}

	if len(result.Values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, sanitized)
	}

	columns := make([]models.ColumnInfo, 0, len(result.Values))
	for _, row := range result.Values {
		col := models.ColumnInfo{
			Name:       fmt.Sprint(row[0]),
			DataType:   fmt.Sprint(row[1]),
			Nullable:   strings.EqualFold(fmt.Sprint(row[3]), "YES"),
			PrimaryKey: asInt(row[5]) > 0,
		}

		if row[2] != nil {
			n := asInt(row[2])
			col.MaxLength = &n
		} else if m := typeLength.FindStringSubmatch(col.DataType); m != nil {
			n, _ := strconv.ParseInt(m[1], 10, 64)
			col.MaxLength = &n
		}

		if row[4] != nil {
			def := fmt.Sprint(row[4])
			col.Default = &def
		}

		columns = append(columns, col)
	}

	return columns, nil
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
