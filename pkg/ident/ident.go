package ident

import (
	"fmt"
	"path/filepath"
	"strings"
)

// reservedWords are rewritten with a suffix so a sanitized name is never a bare keyword.
var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "insert": true, "update": true,
	"delete": true, "create": true, "drop": true, "alter": true, "table": true,
	"index": true, "view": true, "user": true, "group": true, "order": true,
	"by": true, "limit": true, "offset": true, "join": true, "inner": true,
	"outer": true, "left": true, "right": true, "on": true, "as": true,
	"and": true, "or": true, "not": true, "null": true, "true": true,
	"false": true, "default": true, "primary": true, "foreign": true, "key": true,
	"references": true, "constraint": true, "unique": true, "check": true, "cascade": true,
	"restrict": true, "grant": true, "revoke": true, "commit": true, "rollback": true,
}

const reservedSuffix = "_col"

// dataExtensions and compressionExtensions are stripped from file names before sanitizing.
var (
	dataExtensions        = []string{".csv", ".tsv", ".xlsx"}
	compressionExtensions = []string{".gz", ".bz2", ".xz", ".zst"}
)

// IsReserved reports whether name is a reserved keyword, ignoring case.
func IsReserved(name string) bool {
	return reservedWords[strings.ToLower(name)]
}

// Sanitize rewrites an arbitrary name into a lowercase identifier made of
// [a-z0-9_] that does not start with a digit and is not a reserved keyword.
func Sanitize(identifier string) string {
	var b strings.Builder
	b.Grow(len(identifier) + 1)

	for _, r := range identifier {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}

	sanitized := b.String()
	if sanitized == "" || (sanitized[0] >= '0' && sanitized[0] <= '9') {
		sanitized = "_" + sanitized
	}

	if IsReserved(sanitized) {
		sanitized += reservedSuffix
	}

	return sanitized
}

// Quote wraps name in double quotes, doubling any embedded quote.
// All identifiers interpolated into generated SQL go through Quote.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Unique de-duplicates names deterministically: the first occurrence keeps
// its name and later ones get _1, _2, ... skipping names already taken.
func Unique(names []string) []string {
	out := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	next := make(map[string]int, len(names))

	for i, name := range names {
		if !taken[name] {
			taken[name] = true
			out[i] = name
			continue
		}

		n := next[name]
		candidate := name
		for taken[candidate] {
			n++
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		next[name] = n
		taken[candidate] = true
		out[i] = candidate
	}

	return out
}

// TrimFileName strips the directory, a compression suffix and a data file
// extension: "data/My Data.csv.gz" becomes "My Data".
func TrimFileName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))

	lower := strings.ToLower(base)
	for _, ext := range compressionExtensions {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			lower = lower[:len(lower)-len(ext)]
			break
		}
	}
	for _, ext := range dataExtensions {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}

	return base
}

// TableNameFromFile derives a table name from an uploaded file name:
// "data/My Data.csv.gz" becomes "my_data".
func TableNameFromFile(filename string) string {
	return Sanitize(TrimFileName(filename))
}
