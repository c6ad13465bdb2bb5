package db

import (
	"fmt"

	"github.com/JayJamieson/csv-sql/pkg/models"
)

type transformFunc func(columns []string, values []any) any

var transformFuncs = map[string]transformFunc{
	"array":   func(columns []string, values []any) any { return transformArray(columns, values) },
	"objects": transformObject,
}

// Result is the outcome of a query: column descriptors in result order and
// one value slice per row. []byte values are stored as strings.
type Result struct {
	Fields  []models.Field
	Values  [][]any
	QueryMS float64
}

func newResult(columns []string) *Result {
	fields := make([]models.Field, len(columns))
	for i, col := range columns {
		fields[i] = models.Field{Name: col}
	}
	return &Result{Fields: fields, Values: [][]any{}}
}

func (r *Result) append(values []any) {
	r.Values = append(r.Values, transformArray(r.Fields, values))
}

// Columns returns the result's column names.
func (r *Result) Columns() []string {
	columns := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		columns[i] = f.Name
	}
	return columns
}

// Rows returns every row keyed by column name. Duplicate column names keep
// the right-most value.
func (r *Result) Rows() []map[string]any {
	columns := r.Columns()
	rows := make([]map[string]any, len(r.Values))
	for i, values := range r.Values {
		rows[i] = transformObject(columns, values).(map[string]any)
	}
	return rows
}

// Shape renders every row as "objects" (maps keyed by column) or "array".
func (r *Result) Shape(shape string) ([]any, error) {
	if shape == "" {
		shape = "objects"
	}
	transform, ok := transformFuncs[shape]
	if !ok {
		return nil, fmt.Errorf("unknown shape %q (must be objects or array)", shape)
	}

	columns := r.Columns()
	rows := make([]any, len(r.Values))
	for i, values := range r.Values {
		rows[i] = transform(columns, values)
	}
	return rows, nil
}

func transformArray[T any](columns []T, values []any) []any {
	arrRow := make([]any, len(columns))

	for i := range columns {
		val := values[i]
		if b, ok := val.([]byte); ok {
			val = string(b)
		}
		arrRow[i] = val
	}
	return arrRow
}

func transformObject(columns []string, values []any) any {
	objRow := make(map[string]any, len(columns))

	for i, col := range columns {
		val := values[i]
		if b, ok := val.([]byte); ok {
			val = string(b)
		}
		objRow[col] = val
	}
	return objRow
}
