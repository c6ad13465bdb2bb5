package csvfile

import "errors"

// Validation errors raised before anything touches the database.
var (
	// ErrEmptyFile is returned when the input holds no records at all.
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrNoHeaders is returned when the header row has no usable column name.
	ErrNoHeaders = errors.New("CSV file has no headers")

	// ErrTooManyColumns is returned when the header exceeds Options.MaxColumns.
	ErrTooManyColumns = errors.New("too many columns")

	// ErrTooManyRows is returned when the data rows exceed Options.MaxRows.
	ErrTooManyRows = errors.New("too many rows")

	// ErrCellTooLarge is returned when a cell exceeds Options.MaxCellSize characters.
	ErrCellTooLarge = errors.New("cell too large")

	// ErrRowLengthMismatch is returned when a row does not have one field per header.
	ErrRowLengthMismatch = errors.New("row length does not match header column count")

	// ErrMalformed wraps quoting and framing errors from the CSV reader.
	ErrMalformed = errors.New("malformed CSV")

	// ErrUnsupportedFormat is returned for uploads that are not delimited text or a spreadsheet.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
