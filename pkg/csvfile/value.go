package csvfile

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind tags a parsed cell.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	Text
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	default:
		return "text"
	}
}

// Value is one cell. Raw always holds the cell exactly as read.
type Value struct {
	Kind Kind
	Raw  string
	Num  float64
	Bool bool
}

// Row holds one value per header, in header order.
type Row []Value

// RawCSV is the parsed file: headers as given plus the data rows.
type RawCSV struct {
	Headers []string
	Rows    []Row
}

// Column returns every value of column i.
func (c *RawCSV) Column(i int) []Value {
	values := make([]Value, len(c.Rows))
	for r, row := range c.Rows {
		if i < len(row) {
			values[r] = row[i]
		}
	}
	return values
}

var plainNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// NewText returns a Null value for the empty string and a Text value otherwise.
func NewText(raw string) Value {
	if raw == "" {
		return Value{Kind: Null}
	}
	return Value{Kind: Text, Raw: raw}
}

// NewDynamic is NewText with light typing: true/false become Bool and plain
// decimal numbers become Number.
func NewDynamic(raw string) Value {
	v := NewText(raw)
	if v.Kind == Null {
		return v
	}

	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "true":
		return Value{Kind: Bool, Raw: raw, Bool: true}
	case "false":
		return Value{Kind: Bool, Raw: raw, Bool: false}
	}

	if plainNumber.MatchString(trimmed) {
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return Value{Kind: Number, Raw: raw, Num: n}
		}
	}

	return v
}

// Values builds a Row from plain strings using NewText.
func Values(cells ...string) Row {
	row := make(Row, len(cells))
	for i, c := range cells {
		row[i] = NewText(c)
	}
	return row
}
