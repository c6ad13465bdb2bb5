package infer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
)

// valueClass is the classification of a single non-null value.
type valueClass struct {
	boolean   bool
	number    bool
	decimal   bool
	integer   int64
	timestamp bool
	date      bool
	time      bool
	uuid      bool
}

func (c valueClass) plainString() bool {
	return !c.boolean && !c.number && !c.timestamp && !c.date && !c.time && !c.uuid
}

var booleanLiterals = map[string]bool{
	"true": true, "yes": true, "1": true, "t": true, "y": true,
	"false": false, "no": false, "0": false, "f": false, "n": false,
}

var (
	numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	uuidPattern   = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
)

// Temporal patterns are checked by regexp first, then confirmed with time.Parse.
var (
	timestampLayouts = []struct {
		pattern *regexp.Regexp
		layouts []string
	}{
		{
			regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})$`),
			[]string{time.RFC3339Nano, "2006-01-02T15:04Z07:00", "2006-01-02T15:04:05.999999999Z0700", "2006-01-02T15:04Z0700"},
		},
		{
			regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2}(\.\d+)?)?$`),
			[]string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04"},
		},
		{
			regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
			[]string{"2006-01-02 15:04:05.999999999"},
		},
	}

	dateLayouts = []struct {
		pattern *regexp.Regexp
		layouts []string
	}{
		{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), []string{"2006-01-02"}},
		{regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}$`), []string{"2006/1/2"}},
		{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`), []string{"1/2/2006"}},
	}

	timeLayouts = []struct {
		pattern *regexp.Regexp
		layouts []string
	}{
		{regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`), []string{"15:04:05", "15:04"}},
		{regexp.MustCompile(`^(?i)\d{1,2}:\d{2}(:\d{2})? ?(AM|PM)$`), []string{"3:04:05 PM", "3:04 PM", "3:04:05PM", "3:04PM"}},
	}
)

func parseWith(value string, candidates []struct {
	pattern *regexp.Regexp
	layouts []string
}) (time.Time, bool) {
	for _, c := range candidates {
		if !c.pattern.MatchString(value) {
			continue
		}
		for _, layout := range c.layouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ParseTimestamp parses ISO 8601 timestamps and "YYYY-MM-DD HH:MM:SS[.fff]".
func ParseTimestamp(value string) (time.Time, bool) {
	return parseWith(strings.TrimSpace(value), timestampLayouts)
}

// ParseDate parses YYYY-MM-DD, YYYY/MM/DD and MM/DD/YYYY dates.
func ParseDate(value string) (time.Time, bool) {
	return parseWith(strings.TrimSpace(value), dateLayouts)
}

// ParseTime parses HH:MM[:SS] with an optional AM/PM marker.
func ParseTime(value string) (time.Time, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	return parseWith(v, timeLayouts)
}

// ParseBool reports the truth value of a boolean literal. Unknown values are false.
func ParseBool(value string) bool {
	return booleanLiterals[strings.ToLower(strings.TrimSpace(value))]
}

// IsBoolLiteral reports whether value is one of the accepted boolean spellings.
func IsBoolLiteral(value string) bool {
	_, ok := booleanLiterals[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// ParseInteger parses an integral number, including forms such as "+5" and "1e3".
func ParseInteger(value string) (int64, bool) {
	v := strings.TrimSpace(value)
	if !numberPattern.MatchString(v) {
		return 0, false
	}
	if n, err := strconv.ParseInt(strings.TrimPrefix(v, "+"), 10, 64); err == nil {
		return n, true
	}
	if strings.Contains(v, ".") {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func classify(v csvfile.Value) valueClass {
	switch v.Kind {
	case csvfile.Bool:
		return valueClass{boolean: true}
	case csvfile.Number:
		c := classifyNumber(strings.TrimSpace(v.Raw))
		c.boolean = IsBoolLiteral(v.Raw)
		return c
	}

	raw := strings.TrimSpace(v.Raw)

	var c valueClass
	if IsBoolLiteral(raw) {
		c.boolean = true
	}
	if numberPattern.MatchString(raw) {
		n := classifyNumber(raw)
		c.number, c.decimal, c.integer = n.number, n.decimal, n.integer
		return c
	}
	if c.boolean {
		return c
	}

	if _, ok := ParseTimestamp(raw); ok {
		c.timestamp = true
		return c
	}
	if _, ok := ParseDate(raw); ok {
		c.date = true
		return c
	}
	if _, ok := ParseTime(raw); ok {
		c.time = true
		return c
	}
	if uuidPattern.MatchString(raw) {
		c.uuid = true
	}

	return c
}

func classifyNumber(raw string) valueClass {
	if n, ok := ParseInteger(raw); ok && !strings.Contains(raw, ".") {
		return valueClass{number: true, integer: n}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) {
		return valueClass{number: true, decimal: true}
	}
	return valueClass{}
}
