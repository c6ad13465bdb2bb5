// Package infer decides relational column types from sampled CSV values and
// picks a primary key for the generated table.
package infer

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/JayJamieson/csv-sql/pkg/csvfile"
)

// Column types produced by InferColumn, in PostgreSQL spelling.
const (
	TypeText        = "text"
	TypeBoolean     = "boolean"
	TypeNumeric     = "numeric"
	TypeSmallint    = "smallint"
	TypeInteger     = "integer"
	TypeBigint      = "bigint"
	TypeSmallserial = "smallserial"
	TypeSerial      = "serial"
	TypeBigserial   = "bigserial"
	TypeDate        = "date"
	TypeTime        = "time"
	TypeTimestamp   = "timestamp"
	TypeUUID        = "uuid"
)

const (
	maxVarcharLength  = 255
	minVarcharLength  = 10
	minSequentialRows = 3
)

// ColumnDefinition is the inferred shape of one CSV column.
type ColumnDefinition struct {
	Name            string
	PGType          string
	Nullable        bool
	IsAutoIncrement bool
}

// Options tunes inference.
type Options struct {
	// SampleSize caps how many non-null values are classified; 0 scans them all.
	// Nullability is always computed from every value.
	SampleSize int
}

type stats struct {
	nonNull    int
	nullSeen   bool
	booleans   int
	numbers    int
	anyDecimal bool
	timestamps int
	dates      int
	times      int
	uuids      int
	plain      int
	integers   []int64
	maxLen     int
	minInt     int64
	maxInt     int64
}

// InferColumn classifies every non-null value of a column and returns its type.
// Only order-independent aggregates are kept, so row order never changes the result.
func InferColumn(name string, values []csvfile.Value, opts Options) ColumnDefinition {
	s := stats{minInt: math.MaxInt64, maxInt: math.MinInt64}

	for _, v := range values {
		if v.Kind == csvfile.Null {
			s.nullSeen = true
			continue
		}
		if opts.SampleSize > 0 && s.nonNull >= opts.SampleSize {
			continue
		}
		s.nonNull++
		s.add(classify(v), v.Raw)
	}

	col := ColumnDefinition{Name: name, PGType: TypeText, Nullable: s.nullSeen}
	if s.nonNull == 0 {
		return col
	}

	col.PGType = s.decide()

	if IsIntegerType(col.PGType) && s.minInt >= 1 && s.sequential() {
		col.PGType = serialFor(s.maxInt)
		col.IsAutoIncrement = true
	}

	return col
}

func (s *stats) add(c valueClass, raw string) {
	if c.boolean {
		s.booleans++
	}
	if c.number {
		s.numbers++
		if c.decimal {
			s.anyDecimal = true
		} else {
			s.integers = append(s.integers, c.integer)
			s.minInt = min(s.minInt, c.integer)
			s.maxInt = max(s.maxInt, c.integer)
		}
	}

	switch {
	case c.timestamp:
		s.timestamps++
	case c.date:
		s.dates++
	case c.time:
		s.times++
	case c.uuid:
		s.uuids++
	case c.plainString():
		s.plain++
	}

	s.maxLen = max(s.maxLen, utf8.RuneCountInString(raw))
}

func (s *stats) decide() string {
	n := s.nonNull
	switch {
	case s.timestamps > 0 && s.timestamps+s.dates == n:
		return TypeTimestamp
	case s.dates == n:
		return TypeDate
	case s.times == n:
		return TypeTime
	case s.uuids == n:
		return TypeUUID
	case s.plain == n:
		return varcharFor(s.maxLen)
	case s.plain > 0, s.timestamps+s.dates+s.times+s.uuids > 0:
		return TypeText
	case s.booleans == n:
		return TypeBoolean
	case s.numbers == n:
		if s.anyDecimal {
			return TypeNumeric
		}
		return integerFor(s.minInt, s.maxInt)
	default:
		return TypeText
	}
}

// sequential reports whether the integer values, sorted, step by exactly one.
func (s *stats) sequential() bool {
	if len(s.integers) < minSequentialRows || len(s.integers) != s.nonNull || s.nullSeen {
		return false
	}

	sorted := slices.Clone(s.integers)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] != 1 {
			return false
		}
	}
	return true
}

func integerFor(lo, hi int64) string {
	switch {
	case lo >= math.MinInt16 && hi <= math.MaxInt16:
		return TypeSmallint
	case lo >= math.MinInt32 && hi <= math.MaxInt32:
		return TypeInteger
	default:
		return TypeBigint
	}
}

func serialFor(hi int64) string {
	switch {
	case hi <= math.MaxInt16:
		return TypeSmallserial
	case hi <= math.MaxInt32:
		return TypeSerial
	default:
		return TypeBigserial
	}
}

func varcharFor(maxLen int) string {
	if maxLen > maxVarcharLength {
		return TypeText
	}
	n := max(int(math.Ceil(float64(maxLen)*1.2)), maxLen+10)
	n = min(max(n, minVarcharLength), maxVarcharLength)
	return fmt.Sprintf("varchar(%d)", n)
}

// IsIntegerType reports whether t is one of the integer or serial types.
func IsIntegerType(t string) bool {
	switch strings.ToLower(t) {
	case TypeSmallint, TypeInteger, TypeBigint:
		return true
	}
	return IsSerialType(t)
}

// IsSerialType reports whether t is one of the serial types.
func IsSerialType(t string) bool {
	switch strings.ToLower(t) {
	case TypeSmallserial, TypeSerial, TypeBigserial:
		return true
	}
	return false
}

// IsTextType reports whether t is text or a varchar of any length.
func IsTextType(t string) bool {
	t = strings.ToLower(t)
	return t == TypeText || strings.HasPrefix(t, "varchar")
}
