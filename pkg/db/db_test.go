package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
	"github.com/JayJamieson/csv-sql/pkg/infer"
	"github.com/JayJamieson/csv-sql/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, opts Options) *DB {
	t.Helper()

	engine, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	db := NewWithEngine(engine, opts)
	db.Logger().SetOutput(io.Discard)
	return db
}

func peopleRows(n int) []csvfile.Row {
	rows := make([]csvfile.Row, n)
	for i := range rows {
		rows[i] = csvfile.Values(fmt.Sprintf("person %d", i+1), fmt.Sprint(20+i%50))
	}
	return rows
}

func count(t *testing.T, db *DB, table string) int64 {
	t.Helper()

	result, err := db.RunQuery(context.Background(), fmt.Sprintf(`SELECT COUNT(*) AS n FROM "%s"`, table))
	require.NoError(t, err)
	return asInt(result.Values[0][0])
}

func TestImportCSV(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	ctx := context.Background()

	res, err := db.ImportCSV(ctx, ImportParams{
		TableName: "My Data",
		Headers:   []string{"Name", "Age"},
		Rows: []csvfile.Row{
			csvfile.Values("Alice", "30"),
			csvfile.Values("Bob", "40"),
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "My Data", res.Metadata.TableName)
	assert.Equal(t, "my_data", res.Metadata.SanitizedTableName)
	assert.Equal(t, 2, res.Metadata.RowCount)
	require.Len(t, res.Metadata.Columns, 2)
	assert.Equal(t, "Name", res.Metadata.Columns[0].OriginalName)
	assert.Equal(t, "varchar(15)", res.Metadata.Columns[0].PGType)
	assert.Equal(t, "smallint", res.Metadata.Columns[1].PGType)

	assert.Equal(t, []string{"my_data"}, res.Tables)
	assert.Equal(t, `SELECT * FROM "my_data" LIMIT 100`, res.Query)
	assert.Equal(t, []string{"name", "age"}, res.Preview.Columns())
	assert.Equal(t, []map[string]any{
		{"name": "Alice", "age": int64(30)},
		{"name": "Bob", "age": int64(40)},
	}, res.Preview.Rows())
}

func TestImportCSVPreservesText(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})

	values := []string{`O'Brien "the third"`, "  padded  ", "line\nbreak", "ünïcödé", "x); DROP TABLE t; --"}
	rows := make([]csvfile.Row, len(values))
	for i, v := range values {
		rows[i] = csvfile.Values(v)
	}

	res, err := db.ImportCSV(context.Background(), ImportParams{TableName: "notes", Headers: []string{"note"}, Rows: rows})
	require.NoError(t, err)

	got := make([]string, len(res.Preview.Values))
	for i, row := range res.Preview.Values {
		got[i] = fmt.Sprint(row[0])
	}
	assert.ElementsMatch(t, values, got)
}

func TestImportCSVPreviewLimit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})

	res, err := db.ImportCSV(context.Background(), ImportParams{
		TableName: "people",
		Headers:   []string{"name", "age"},
		Rows:      peopleRows(250),
	})
	require.NoError(t, err)

	assert.Len(t, res.Preview.Values, 100)
	assert.Equal(t, int64(250), count(t, db, "people"))

	res, err = db.ImportCSV(context.Background(), ImportParams{
		TableName:    "people",
		Headers:      []string{"name", "age"},
		Rows:         peopleRows(250),
		PreviewLimit: 5,
	})
	require.NoError(t, err)
	assert.Len(t, res.Preview.Values, 5)
}

func TestImportCSVIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	ctx := context.Background()

	params := ImportParams{TableName: "people", Headers: []string{"name", "age"}, Rows: peopleRows(3)}

	first, err := db.ImportCSV(ctx, params)
	require.NoError(t, err)
	second, err := db.ImportCSV(ctx, params)
	require.NoError(t, err)

	assert.Equal(t, first.Metadata.RowCount, second.Metadata.RowCount)
	assert.Equal(t, []string{"people"}, second.Tables)
	assert.Equal(t, int64(3), count(t, db, "people"))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestImportCSVSequentialKey(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})

	rows := []csvfile.Row{
		csvfile.Values("1", "a"),
		csvfile.Values("2", "b"),
		csvfile.Values("3", "c"),
		csvfile.Values("4", "d"),
		csvfile.Values("5", "e"),
	}
	res, err := db.ImportCSV(context.Background(), ImportParams{TableName: "items", Headers: []string{"id", "label"}, Rows: rows})
	require.NoError(t, err)

	require.Len(t, res.Metadata.Columns, 2)
	assert.Equal(t, "smallserial", res.Metadata.Columns[0].PGType)
	assert.True(t, res.Metadata.Columns[0].PrimaryKey)
	assert.Equal(t, "label", res.Metadata.Columns[1].SanitizedName)

	columns, err := db.GetSchema(context.Background(), "items")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "id", columns[0].Name)
	assert.True(t, columns[0].PrimaryKey)
	assert.False(t, columns[1].PrimaryKey)
	assert.False(t, columns[1].Nullable)
}

func TestImportCSVTypedValues(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})

	rows := []csvfile.Row{
		csvfile.Values("yes", "1.5", "", "big"),
		csvfile.Values("no", "2", "7", "bigger"),
	}
	res, err := db.ImportCSV(context.Background(), ImportParams{
		TableName: "typed",
		Headers:   []string{"active", "price", "qty", "label"},
		Rows:      rows,
	})
	require.NoError(t, err)

	byLabel := map[string]map[string]any{}
	for _, row := range res.Preview.Rows() {
		byLabel[fmt.Sprint(row["label"])] = row
	}

	assert.Equal(t, int64(1), asInt(byLabel["big"]["active"]))
	assert.Equal(t, int64(0), asInt(byLabel["bigger"]["active"]))
	assert.Equal(t, 1.5, byLabel["big"]["price"])
	assert.Nil(t, byLabel["big"]["qty"])
	assert.Equal(t, int64(7), byLabel["bigger"]["qty"])
}

func TestImportCSVEmptyDataset(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})

	_, err := db.ImportCSV(context.Background(), ImportParams{TableName: "t", Headers: []string{"a"}})
	assert.ErrorIs(t, err, schema.ErrEmptyDataset)

	tables, err := db.ListTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestImportCSVFromReader(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})

	res, err := db.ImportCSVFromReader(context.Background(), "uploads/My Data.csv", strings.NewReader("Name,Age\nAlice,30\nBob,40\n"))
	require.NoError(t, err)
	assert.Equal(t, "My Data", res.Metadata.TableName)
	assert.Equal(t, "my_data", res.Metadata.SanitizedTableName)
	assert.Len(t, res.Preview.Values, 2)

	_, err = db.ImportCSVFromReader(context.Background(), "bad.csv", strings.NewReader("a,b\n1\n"))
	assert.ErrorIs(t, err, csvfile.ErrRowLengthMismatch)

	db = newTestDB(t, Options{Parse: csvfile.Options{MaxRows: 1}})
	_, err = db.ImportCSVFromReader(context.Background(), "big.csv", strings.NewReader("a\n1\n2\n"))
	assert.ErrorIs(t, err, csvfile.ErrTooManyRows)
}

var errInjected = errors.New("injected failure")

// faultEngine fails the n-th INSERT issued inside a transaction.
type faultEngine struct {
	Engine
	failOn  int
	inserts int
}

func (f *faultEngine) Transaction(ctx context.Context, fn func(tx Execer) error) error {
	return f.Engine.Transaction(ctx, func(tx Execer) error {
		return fn(&faultExecer{Execer: tx, engine: f})
	})
}

type faultExecer struct {
	Execer
	engine *faultEngine
}

func (e *faultExecer) Exec(ctx context.Context, query string, args ...any) error {
	if strings.HasPrefix(query, "INSERT") {
		e.engine.inserts++
		if e.engine.inserts == e.engine.failOn {
			return errInjected
		}
	}
	return e.Execer.Exec(ctx, query, args...)
}

func TestImportCSVRollsBack(t *testing.T) {
	t.Parallel()

	engine, err := Open(":memory:")
	require.NoError(t, err)
	defer engine.Close()

	fault := &faultEngine{Engine: engine, failOn: 3}
	db := NewWithEngine(fault, Options{BatchSize: 2})
	db.Logger().SetOutput(io.Discard)
	ctx := context.Background()

	_, err = db.ImportCSV(ctx, ImportParams{TableName: "people", Headers: []string{"name", "age"}, Rows: peopleRows(10)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.Contains(t, err.Error(), "failed to load table people")
	assert.Contains(t, err.Error(), "batch 3 of 5")

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.NotContains(t, tables, "people")

	dropped, err := db.DropTable(ctx, "people")
	require.NoError(t, err)
	assert.False(t, dropped.Dropped)
}

func TestImportCSVRollbackKeepsPreviousTable(t *testing.T) {
	t.Parallel()

	engine, err := Open(":memory:")
	require.NoError(t, err)
	defer engine.Close()

	fault := &faultEngine{Engine: engine}
	db := NewWithEngine(fault, Options{BatchSize: 2})
	db.Logger().SetOutput(io.Discard)
	ctx := context.Background()

	params := ImportParams{TableName: "people", Headers: []string{"name", "age"}, Rows: peopleRows(3)}
	_, err = db.ImportCSV(ctx, params)
	require.NoError(t, err)

	fault.inserts, fault.failOn = 0, 2
	params.Rows = peopleRows(6)
	_, err = db.ImportCSV(ctx, params)
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, int64(3), count(t, db, "people"))
}

func TestLoadZeroRows(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	ctx := context.Background()

	opts := schema.DefaultOptions()
	opts.Dialect = db.Engine().Dialect()
	table, err := schema.GenerateCreateTable("empty", []string{"a", "b"}, []csvfile.Row{csvfile.Values("x", "1")}, opts)
	require.NoError(t, err)

	require.NoError(t, Load(ctx, db.Engine(), table, nil, LoadOptions{Logger: db.Logger()}))

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty"}, tables)
	assert.Equal(t, int64(0), count(t, db, "empty"))
}

func TestLoadRejectsInvalidInteger(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{Infer: infer.Options{SampleSize: 1}})

	_, err := db.ImportCSV(context.Background(), ImportParams{
		TableName: "nums",
		Headers:   []string{"n"},
		Rows:      []csvfile.Row{csvfile.Values("5"), csvfile.Values("oops")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid smallint value "oops"`)

	tables, err := db.ListTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestDropTable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		_, err := db.ImportCSV(ctx, ImportParams{TableName: name, Headers: []string{"x"}, Rows: []csvfile.Row{csvfile.Values("1")}})
		require.NoError(t, err)
	}

	res, err := db.DropTable(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "a", res.SanitizedTableName)
	assert.True(t, res.Dropped)
	assert.Equal(t, []string{"b"}, res.Tables)

	res, err = db.DropTable(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Dropped)
	assert.Equal(t, []string{"b"}, res.Tables)
}

func TestFetchPreview(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	ctx := context.Background()

	_, err := db.ImportCSV(ctx, ImportParams{TableName: "people", Headers: []string{"name", "age"}, Rows: peopleRows(20)})
	require.NoError(t, err)

	preview, err := db.FetchPreview(ctx, "People", 7)
	require.NoError(t, err)
	assert.Equal(t, "people", preview.SanitizedTableName)
	assert.Equal(t, `SELECT * FROM "people" LIMIT 7`, preview.Query)
	assert.Len(t, preview.Values, 7)

	_, err = db.FetchPreview(ctx, "missing", 0)
	assert.Error(t, err)
}

func TestBrowse(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	ctx := context.Background()

	rows := []csvfile.Row{
		csvfile.Values("Alice", "30"),
		csvfile.Values("Bob", "40"),
		csvfile.Values("Carol", "35"),
	}
	_, err := db.ImportCSV(ctx, ImportParams{TableName: "people", Headers: []string{"name", "age"}, Rows: rows})
	require.NoError(t, err)

	res, err := db.Browse(ctx, "people", BrowseOptions{Sort: "age", SortDesc: true, Limit: 2, RowID: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"rowid", "name", "age"}, res.Columns())
	require.Len(t, res.Values, 2)
	assert.Equal(t, "Bob", res.Values[0][1])
	assert.Equal(t, "Carol", res.Values[1][1])

	res, err = db.Browse(ctx, "people", BrowseOptions{Sort: "name", Offset: 2})
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	assert.Equal(t, "Carol", res.Values[0][0])
	assert.Equal(t, `SELECT * FROM "people" ORDER BY "name" LIMIT 100 OFFSET 2`, res.Query)
}

func TestGetSchema(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	ctx := context.Background()

	rows := []csvfile.Row{
		csvfile.Values("Alice", "30", ""),
		csvfile.Values("Bob", "40", "x"),
	}
	_, err := db.ImportCSV(ctx, ImportParams{TableName: "people", Headers: []string{"name", "age", "note"}, Rows: rows})
	require.NoError(t, err)

	columns, err := db.GetSchema(ctx, "people")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	assert.Equal(t, "name", columns[0].Name)
	assert.Equal(t, "varchar(15)", columns[0].DataType)
	require.NotNil(t, columns[0].MaxLength)
	assert.Equal(t, int64(15), *columns[0].MaxLength)
	assert.True(t, columns[0].PrimaryKey)

	assert.Equal(t, "age", columns[1].Name)
	assert.Equal(t, "INTEGER", columns[1].DataType)
	assert.Nil(t, columns[1].MaxLength)
	assert.False(t, columns[1].Nullable)

	assert.Equal(t, "note", columns[2].Name)
	assert.True(t, columns[2].Nullable)
	assert.Nil(t, columns[2].Default)

	_, err = db.GetSchema(ctx, "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestRunQuery(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})

	res, err := db.RunQuery(context.Background(), "SELECT 1 AS one, 'two' AS two")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, res.Columns())
	assert.Equal(t, [][]any{{int64(1), "two"}}, res.Values)

	_, err = db.RunQuery(context.Background(), "SELEC nonsense")
	assert.Error(t, err)
}

func TestListTablesOnlyUserTables(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	ctx := context.Background()

	_, err := db.ImportCSV(ctx, ImportParams{TableName: "zeta", Headers: []string{"x"}, Rows: []csvfile.Row{csvfile.Values("1")}})
	require.NoError(t, err)
	_, err = db.ImportCSV(ctx, ImportParams{TableName: "alpha", Headers: []string{"x"}, Rows: []csvfile.Row{csvfile.Values("1")}})
	require.NoError(t, err)

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, tables)
}

func TestCreateTableFromCSV(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{PrimaryKeyName: "row_key"})
	ctx := context.Background()

	metadata, err := db.CreateTableFromCSV(ctx, "Scores 2024", []string{"score", "score"}, []csvfile.Row{
		csvfile.Values("1.5", "yes"),
		csvfile.Values("1.5", "no"),
	})
	require.NoError(t, err)

	assert.Equal(t, "scores_2024", metadata.SanitizedTableName)
	assert.Equal(t, 2, metadata.RowCount)

	names := make([]string, len(metadata.Columns))
	for i, col := range metadata.Columns {
		names[i] = col.SanitizedName
	}
	assert.Equal(t, []string{"row_key", "score", "score_1"}, names)
	assert.True(t, metadata.Columns[0].AutoIncrement)
	assert.Equal(t, int64(2), count(t, db, "scores_2024"))
}

func TestImportCSVShortRows(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})

	res, err := db.ImportCSV(context.Background(), ImportParams{
		TableName: "short",
		Headers:   []string{"name", "age"},
		Rows: []csvfile.Row{
			csvfile.Values("a", "30"),
			csvfile.Values("b"),
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Metadata.Columns[1].Nullable)
	assert.Equal(t, []map[string]any{
		{"name": "a", "age": int64(30)},
		{"name": "b", "age": nil},
	}, res.Preview.Rows())
}

func TestTransactionRollsBackOnPanic(t *testing.T) {
	t.Parallel()

	db := newTestDB(t, Options{})
	engine := db.Engine()

	assert.PanicsWithValue(t, "boom", func() {
		engine.Transaction(context.Background(), func(tx Execer) error {
			if err := tx.Exec(context.Background(), `CREATE TABLE "half" (x INTEGER)`); err != nil {
				return err
			}
			panic("boom")
		})
	})

	// the connection must be released for the next caller
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.NotContains(t, tables, "half")
}

func TestImportCSVRejectsValuesBeyondSample(t *testing.T) {
	t.Parallel()

	tests := []struct {
		column string
		values []string
		errMsg string
	}{
		{column: "flag", values: []string{"yes", "no", "maybe"}, errMsg: `invalid boolean value "maybe" in column flag`},
		{column: "day", values: []string{"2023-01-01", "2023-01-02", "soon"}, errMsg: `invalid date value "soon" in column day`},
		{column: "at", values: []string{"10:30", "11:00", "noon"}, errMsg: `invalid time value "noon" in column at`},
	}

	for _, tt := range tests {
		db := newTestDB(t, Options{Infer: infer.Options{SampleSize: 2}})

		rows := make([]csvfile.Row, len(tt.values))
		for i, v := range tt.values {
			rows[i] = csvfile.Values(v)
		}

		_, err := db.ImportCSV(context.Background(), ImportParams{TableName: "sampled", Headers: []string{tt.column}, Rows: rows})
		require.Error(t, err, tt.column)
		assert.ErrorContains(t, err, tt.errMsg)

		tables, err := db.ListTables(context.Background())
		require.NoError(t, err)
		assert.NotContains(t, tables, "sampled")
	}
}
