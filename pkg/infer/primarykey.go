package infer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
)

// DefaultPrimaryKeyName names the synthetic serial key added when no column qualifies.
const DefaultPrimaryKeyName = "csv_id"

var keyNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^id$`),
	regexp.MustCompile(`(?i)^pk$`),
	regexp.MustCompile(`(?i)^key$`),
	regexp.MustCompile(`(?i)^uuid$`),
	regexp.MustCompile(`(?i)^guid$`),
	regexp.MustCompile(`(?i)_(id|key|uuid|guid)$`),
}

// PrimaryKey is the outcome of SelectPrimaryKey. Index points into the
// column list, or is -1 for a synthetic key.
type PrimaryKey struct {
	Name      string
	Index     int
	Synthetic bool
}

// SelectPrimaryKey prefers conventionally named key columns, then any column,
// that is non-nullable, of an integer, serial or text type and unique over
// every row. Without a candidate it returns a synthetic key named fallbackName.
func SelectPrimaryKey(columns []ColumnDefinition, rows []csvfile.Row, fallbackName string) PrimaryKey {
	if fallbackName == "" {
		fallbackName = DefaultPrimaryKeyName
	}

	for i, col := range columns {
		if looksLikeKey(col.Name) && suitable(col, i, rows) {
			return PrimaryKey{Name: col.Name, Index: i}
		}
	}

	for i, col := range columns {
		if suitable(col, i, rows) {
			return PrimaryKey{Name: col.Name, Index: i}
		}
	}

	return PrimaryKey{Name: fallbackName, Index: -1, Synthetic: true}
}

func looksLikeKey(name string) bool {
	for _, p := range keyNamePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func suitable(col ColumnDefinition, index int, rows []csvfile.Row) bool {
	if col.Nullable || len(rows) == 0 {
		return false
	}

	integer := IsIntegerType(col.PGType)
	if !integer && !IsTextType(col.PGType) {
		return false
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if index >= len(row) || row[index].Kind == csvfile.Null {
			return false
		}

		key := row[index].Raw
		if integer {
			n, ok := ParseInteger(key)
			if !ok {
				return false
			}
			key = strconv.FormatInt(n, 10)
		} else if strings.TrimSpace(key) == "" {
			return false
		}

		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}

	return true
}
