package csvfile

import (
	"bufio"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"
)

const (
	mimeCSV  = "text/csv"
	mimeTSV  = "text/tab-separated-values"
	mimeText = "text/plain"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeGZ   = "application/gzip"
	mimeBZ2  = "application/x-bzip2"
	mimeXZ   = "application/x-xz"
	mimeZSTD = "application/zstd"

	sniffLen = 3072
)

// acceptedTypes are the upload content types Accepts allows regardless of file name.
var acceptedTypes = []string{
	mimeCSV,
	"application/csv",
	"application/vnd.ms-excel",
	mimeTSV,
	mimeXLSX,
}

var acceptedExtensions = []string{".csv", ".tsv", ".xlsx"}

// Accepts reports whether an upload looks like something Open can read,
// judged by its file name or declared content type.
func Accepts(name, contentType string) bool {
	if _, ext := splitExt(name); ext != "" {
		for _, accepted := range acceptedExtensions {
			if ext == accepted {
				return true
			}
		}
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, accepted := range acceptedTypes {
		if mediaType == accepted {
			return true
		}
	}

	return false
}

// Open parses an uploaded file. Compression (gzip, bzip2, xz, zstd) is
// detected from the content, the inner format from the file name and content:
// .tsv is tab separated, .xlsx is read from its first sheet, any other text is CSV.
func Open(ctx context.Context, name string, r io.Reader, opts Options) (*RawCSV, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, _ := br.Peek(sniffLen)
	detected := mimetype.Detect(head)

	inner, closeFn, err := decompress(detected, br)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if inner != io.Reader(br) {
		ibr := bufio.NewReaderSize(inner, 64*1024)
		head, _ = ibr.Peek(sniffLen)
		detected = mimetype.Detect(head)
		inner = ibr
	}

	_, ext := splitExt(name)

	switch {
	case ext == ".xlsx" || detected.Is(mimeXLSX):
		return parseXLSX(ctx, inner, opts)
	case !isText(detected):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected.String())
	case ext == ".tsv" || detected.Is(mimeTSV):
		opts.Delimiter = '\t'
	}

	return Parse(ctx, inner, opts)
}

func decompress(detected *mimetype.MIME, r io.Reader) (io.Reader, func(), error) {
	noop := func() {}

	switch {
	case detected.Is(mimeGZ):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case detected.Is(mimeZSTD):
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return dec, dec.Close, nil
	case detected.Is(mimeXZ):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xr, noop, nil
	case detected.Is(mimeBZ2):
		return bzip2.NewReader(r), noop, nil
	default:
		return r, noop, nil
	}
}

func isText(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(mimeText) {
			return true
		}
	}
	return false
}

type sheetSource struct {
	rows [][]string
	pos  int
}

func (s *sheetSource) next() ([]string, int, error) {
	if s.pos >= len(s.rows) {
		return nil, 0, io.EOF
	}
	s.pos++
	return s.rows[s.pos-1], s.pos, nil
}

func parseXLSX(ctx context.Context, r io.Reader, opts Options) (*RawCSV, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	return collect(ctx, &sheetSource{rows: rows}, opts, true)
}

// splitExt returns the lowercased data extension of name, ignoring a
// trailing compression extension.
func splitExt(name string) (string, string) {
	lower := strings.ToLower(filepath.Base(name))
	for _, c := range []string{".gz", ".bz2", ".xz", ".zst"} {
		if strings.HasSuffix(lower, c) {
			lower = strings.TrimSuffix(lower, c)
			break
		}
	}
	ext := filepath.Ext(lower)
	return strings.TrimSuffix(lower, ext), ext
}
