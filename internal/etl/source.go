package etl

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding names detected by the sniffer.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

const sniffBytes = 64 * 1024

// RowSource yields raw records from a CSV or parquet table.
type RowSource interface {
	Header() []string
	// Next returns io.EOF after the last record. A *csv.ParseError marks a
	// bad row; the caller may continue reading.
	Next() ([]string, error)
	Close() error
}

// Dialect is the detected CSV layout.
type Dialect struct {
	Separator rune
	Encoding  string
}

// OpenTable opens a .csv or .parquet file. probe must be a field whose
// aliases prove the header was decoded correctly.
func OpenTable(path string, probe Field) (RowSource, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return openParquet(path)
	}
	return openCSV(path, probe)
}

// SniffCSV tries every separator and encoding pair on a sample and returns
// the first that yields a header containing probe.
func SniffCSV(sample []byte, probe Field) (Dialect, error) {
	for _, enc := range []string{EncodingUTF8, EncodingLatin1} {
		text, ok := decodeSample(sample, enc)
		if !ok {
			continue
		}
		line := firstLine(text)
		for _, sep := range []rune{';', ','} {
			r := csv.NewReader(strings.NewReader(line))
			r.Comma = sep
			r.LazyQuotes = true
			header, err := r.Read()
			if err != nil || len(header) < 2 {
				continue
			}
			if _, err := ResolveColumns(header, []Field{probe}, probe); err == nil {
				return Dialect{Separator: sep, Encoding: enc}, nil
			}
		}
	}
	return Dialect{}, fmt.Errorf("no separator/encoding combination exposes column %s", probe)
}

func decodeSample(sample []byte, enc string) (string, bool) {
	switch enc {
	case EncodingUTF8:
		trimmed := sample
		// a multi-byte rune may be cut at the end of the sample
		for i := 0; i < utf8.UTFMax && len(trimmed) > 0 && !utf8.Valid(trimmed); i++ {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if !utf8.Valid(trimmed) {
			return "", false
		}
		return strings.TrimPrefix(string(trimmed), "\ufeff"), true
	case EncodingLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(sample)
		if err != nil {
			return "", false
		}
		return string(out), true
	}
	return "", false
}

func firstLine(text string) string {
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		return text[:i]
	}
	return text
}

type csvSource struct {
	file    *os.File
	reader  *csv.Reader
	header  []string
	dialect Dialect
}

func openCSV(path string, probe Field) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(f, sniffBytes)
	sample, err := br.Peek(sniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		f.Close()
		return nil, fmt.Errorf("read sample of %s: %w", path, err)
	}
	dialect, err := SniffCSV(sample, probe)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var r io.Reader = br
	if dialect.Encoding == EncodingLatin1 {
		r = transform.NewReader(br, charmap.ISO8859_1.NewDecoder())
	} else {
		r = skipBOM(br)
	}

	cr := csv.NewReader(r)
	cr.Comma = dialect.Separator
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return &csvSource{file: f, reader: cr, header: header, dialect: dialect}, nil
}

func skipBOM(br *bufio.Reader) io.Reader {
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br
}

func (s *csvSource) Header() []string { return s.header }

func (s *csvSource) Next() ([]string, error) {
	record, err := s.reader.Read()
	if err != nil || s.dialect.Encoding != EncodingUTF8 {
		return record, err
	}
	// the sample may have been pure ASCII while later rows are latin-1
	for i, field := range record {
		if !utf8.ValidString(field) {
			if fixed, derr := charmap.ISO8859_1.NewDecoder().String(field); derr == nil {
				record[i] = fixed
			}
		}
	}
	return record, nil
}

func (s *csvSource) Close() error { return s.file.Close() }

// Dialect returns the detected layout.
func (s *csvSource) Dialect() Dialect { return s.dialect }

type parquetSource struct {
	file   *os.File
	reader *parquet.Reader
	header []string
	buf    []parquet.Row
	pos    int
	n      int
	done   bool
}

func openParquet(path string) (*parquetSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	var header []string
	for _, col := range pf.Schema().Columns() {
		header = append(header, col[len(col)-1])
	}
	return &parquetSource{
		file:   f,
		reader: parquet.NewReader(pf),
		header: header,
		buf:    make([]parquet.Row, 256),
	}, nil
}

func (s *parquetSource) Header() []string { return s.header }

func (s *parquetSource) Next() ([]string, error) {
	if s.pos >= s.n {
		if s.done {
			return nil, io.EOF
		}
		n, err := s.reader.ReadRows(s.buf)
		s.pos, s.n = 0, n
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			s.done = true
		}
		if n == 0 {
			return nil, io.EOF
		}
	}
	row := s.buf[s.pos]
	s.pos++

	record := make([]string, len(s.header))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(record) {
			continue
		}
		record[col] = valueString(v)
	}
	return record, nil
}

func (s *parquetSource) Close() error {
	_ = s.reader.Close()
	return s.file.Close()
}

func valueString(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	default:
		return string(v.ByteArray())
	}
}
