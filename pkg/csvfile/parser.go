package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxRows     = 10_000
	DefaultMaxColumns  = 100
	DefaultMaxCellSize = 10_000
)

// Options bounds what Parse accepts. Zero values fall back to the defaults.
type Options struct {
	MaxRows     int
	MaxColumns  int
	MaxCellSize int
	Delimiter   rune

	// DynamicTyping tags booleans and numbers while parsing instead of
	// handing every non-empty cell through as text.
	DynamicTyping bool
}

func (o Options) withDefaults() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = DefaultMaxColumns
	}
	if o.MaxCellSize <= 0 {
		o.MaxCellSize = DefaultMaxCellSize
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	return o
}

const bom = "\ufeff"

// recordSource yields raw records and the 1-based line they started on.
type recordSource interface {
	next() ([]string, int, error)
}

type csvSource struct {
	reader *csv.Reader
}

func (s *csvSource) next() ([]string, int, error) {
	record, err := s.reader.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, parseErr)
		}
		if err != io.EOF {
			err = fmt.Errorf("failed to read CSV: %w", err)
		}
		return nil, 0, err
	}
	line, _ := s.reader.FieldPos(0)
	return record, line, nil
}

// Parse reads delimited text in a single pass. The first non-blank record is
// the header; every later non-blank record must have one field per header.
func Parse(ctx context.Context, r io.Reader, opts Options) (*RawCSV, error) {
	reader := csv.NewReader(r)
	reader.Comma = opts.withDefaults().Delimiter
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	return collect(ctx, &csvSource{reader: reader}, opts, false)
}

// collect applies the header, blank-line and limit rules to any record source.
// padShort extends short records with empty cells; spreadsheets drop trailing blanks.
func collect(ctx context.Context, src recordSource, opts Options, padShort bool) (*RawCSV, error) {
	opts = opts.withDefaults()

	var out RawCSV
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, line, err := src.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if blank(record) {
			continue
		}

		if out.Headers == nil {
			headers, err := readHeaders(record, opts)
			if err != nil {
				return nil, err
			}
			out.Headers = headers
			continue
		}

		if padShort && len(record) < len(out.Headers) {
			record = append(record, make([]string, len(out.Headers)-len(record))...)
		}

		row, err := readRow(record, len(out.Headers), line, opts)
		if err != nil {
			return nil, err
		}

		if len(out.Rows) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: maximum %d allowed", ErrTooManyRows, opts.MaxRows)
		}
		out.Rows = append(out.Rows, row)
	}

	if out.Headers == nil {
		return nil, ErrEmptyFile
	}

	return &out, nil
}

func readHeaders(record []string, opts Options) ([]string, error) {
	headers := make([]string, len(record))
	copy(headers, record)
	headers[0] = strings.TrimPrefix(headers[0], bom)

	if blank(headers) {
		return nil, ErrNoHeaders
	}
	if len(headers) > opts.MaxColumns {
		return nil, fmt.Errorf("%w: maximum %d allowed", ErrTooManyColumns, opts.MaxColumns)
	}
	for _, h := range headers {
		if utf8.RuneCountInString(h) > opts.MaxCellSize {
			return nil, fmt.Errorf("%w: header, maximum %d characters allowed",
				ErrCellTooLarge, opts.MaxCellSize)
		}
	}

	return headers, nil
}

func readRow(record []string, width, line int, opts Options) (Row, error) {
	if len(record) != width {
		return nil, fmt.Errorf("%w: line %d has %d fields, expected %d",
			ErrRowLengthMismatch, line, len(record), width)
	}

	row := make(Row, width)
	for i, cell := range record {
		if utf8.RuneCountInString(cell) > opts.MaxCellSize {
			return nil, fmt.Errorf("%w: line %d, maximum %d characters allowed",
				ErrCellTooLarge, line, opts.MaxCellSize)
		}
		if opts.DynamicTyping {
			row[i] = NewDynamic(cell)
		} else {
			row[i] = NewText(cell)
		}
	}

	return row, nil
}

// blank reports whether every field is empty after trimming whitespace.
func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
