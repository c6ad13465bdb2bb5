package ident

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already safe", input: "orders", expected: "orders"},
		{name: "spaces", input: "My Data", expected: "my_data"},
		{name: "dashes", input: "Orders-Summary", expected: "orders_summary"},
		{name: "leading digit", input: "2024 sales", expected: "_2024_sales"},
		{name: "empty", input: "", expected: "_"},
		{name: "reserved", input: "select", expected: "select_col"},
		{name: "reserved any case", input: "Order", expected: "order_col"},
		{name: "reserved after rewrite", input: "KEY", expected: "key_col"},
		{name: "quote", input: `a"b`, expected: "a_b"},
		{name: "unicode", input: "café", expected: "caf_"},
		{name: "injection", input: `x"; DROP TABLE t; --`, expected: "x___drop_table_t____"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitizeIsAlwaysSafe(t *testing.T) {
	t.Parallel()

	safe := regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	alphabet := []rune("aZ09_ -.\"'`;()*/\\é漢\t\n")
	rng := rand.New(rand.NewSource(42))

	inputs := []string{"", "0", "null", "NULL", "1st", "user", "___"}
	for range 2000 {
		n := rng.Intn(12)
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = alphabet[rng.Intn(len(alphabet))]
		}
		inputs = append(inputs, string(runes))
	}

	for _, in := range inputs {
		out := Sanitize(in)
		assert.Regexp(t, safe, out, "input %q", in)
		assert.False(t, IsReserved(out), "input %q produced keyword %q", in, out)
		assert.Equal(t, out, Sanitize(in), "sanitize must be deterministic")
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"orders"`, Quote("orders"))
	assert.Equal(t, `"a""b"`, Quote(`a"b`))
}

func TestUnique(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "no duplicates",
			input:    []string{"a", "b"},
			expected: []string{"a", "b"},
		},
		{
			name:     "repeated",
			input:    []string{"a", "a", "a"},
			expected: []string{"a", "a_1", "a_2"},
		},
		{
			name:     "suffix collision",
			input:    []string{"a", "a", "a_1"},
			expected: []string{"a", "a_1", "a_1_1"},
		},
		{
			name:     "existing suffix first",
			input:    []string{"a_1", "a", "a"},
			expected: []string{"a_1", "a", "a_2"},
		},
		{
			name:     "empty",
			input:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Unique(tt.input))
		})
	}
}

func TestTableNameFromFile(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"My Data.csv":         "my_data",
		"My Data.CSV":         "my_data",
		"reports/q1-2024.csv": "q1_2024",
		`C:\tmp\people.tsv`:   "people",
		"archive.csv.gz":      "archive",
		"sheet.xlsx":          "sheet",
		"noext":               "noext",
		"2024.csv":            "_2024",
		"table.csv":           "table_col",
		"data.backup.csv.zst": "data_backup",
	}

	for input, expected := range tests {
		assert.Equal(t, expected, TableNameFromFile(input), "input %q", input)
	}
}

func TestTrimFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "My Data", TrimFileName("uploads/My Data.csv"))
	assert.Equal(t, "orders", TrimFileName("orders.CSV.GZ"))
	assert.Equal(t, "notes.txt", TrimFileName("notes.txt"))
}
