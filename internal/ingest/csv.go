package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/stocksync/internal/shared"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encodings accepted by [CSVOptions].
const (
	EncodingAuto        = "auto"
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingLatin1      = "latin1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions controls CSV decoding. A zero Delimiter is detected from the header line.
type CSVOptions struct {
	Delimiter rune
	Encoding  string
}

// CSVOptionsFromConfig builds options from the [mapping] config section.
func CSVOptionsFromConfig(cfg shared.MappingConfig) CSVOptions {
	opts := CSVOptions{Encoding: cfg.Encoding}
	if r, _ := utf8.DecodeRuneInString(cfg.Delimiter); r != utf8.RuneError {
		opts.Delimiter = r
	}
	return opts
}

// ReadCSV decodes r into a [Table].
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", shared.ErrInvalidInput)
	}

	text, enc, err := decode(raw, opts.Encoding)
	if err != nil {
		return nil, err
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(text)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed csv: %v", shared.ErrInvalidInput, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no header row", shared.ErrInvalidInput)
	}

	t := newTable(records[0], records[1:])
	t.Encoding = enc
	t.Delimiter = delim
	return t, nil
}

// decode strips a UTF-8 BOM and converts raw to a string.
func decode(raw []byte, name string) (string, string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	var dec *encoding.Decoder
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingAuto:
		if utf8.Valid(raw) {
			return string(raw), EncodingUTF8, nil
		}
		dec, name = charmap.Windows1252.NewDecoder(), EncodingWindows1252
	case EncodingUTF8, "utf8":
		return strings.ToValidUTF8(string(raw), "�"), EncodingUTF8, nil
	case EncodingWindows1252, "cp1252":
		dec, name = charmap.Windows1252.NewDecoder(), EncodingWindows1252
	case EncodingLatin1, "iso-8859-1":
		dec, name = charmap.ISO8859_1.NewDecoder(), EncodingLatin1
	default:
		return "", "", fmt.Errorf("%w: unknown encoding %q", shared.ErrInvalidConfig, name)
	}

	out, err := dec.Bytes(raw)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return string(out), name, nil
}

// DetectDelimiter picks ';', ',' or a tab by counting them on the first line, preferring ';'.
func DetectDelimiter(text string) rune {
	line, _, _ := strings.Cut(text, "\n")
	if strings.Count(line, ",") > strings.Count(line, ";") {
		return ','
	}
	if strings.Count(line, "\t") > strings.Count(line, ";") {
		return '\t'
	}
	return ';'
}
