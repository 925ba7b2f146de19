package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row is one label/value pair from an EDINET CSV table.
type Row struct {
	Label string
	Value string
}

// Table is the label/value view of one archive entry.
type Table struct {
	Entry string
	Rows  []Row
}

const (
	labelColumn = "項目名"
	valueColumn = "値"
)

// decodeAttempt pairs a text encoding with the delimiter EDINET uses for it:
// the primary rendition is UTF-16 tab-delimited, the legacy one CP932
// comma-delimited.
type decodeAttempt struct {
	decoder *encoding.Decoder
	comma   rune
}

func decodeAttempts() []decodeAttempt {
	return []decodeAttempt{
		{unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), '\t'},
		{japanese.ShiftJIS.NewDecoder(), ','},
	}
}

// DecodeTables opens an archive of CSV entries and yields every entry that
// parses as a label/value table. Entries that fail every encoding, or parse
// but lack the 項目名/値 header, contribute nothing; an archive with no CSV
// entries yields an empty slice. Never returns an error: a malformed archive
// is simply an archive with no tables.
func DecodeTables(archive []byte) []Table {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil
	}

	var tables []Table
	for _, entry := range zr.File {
		if !strings.HasSuffix(strings.ToLower(entry.Name), ".csv") {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		for _, attempt := range decodeAttempts() {
			text, err := decodeText(raw, attempt.decoder)
			if err != nil {
				continue
			}
			table, ok := parseTable(text, attempt.comma)
			if !ok {
				continue
			}
			table.Entry = entry.Name
			tables = append(tables, table)
			break
		}
	}

	return tables
}

func decodeText(raw []byte, dec *encoding.Decoder) (string, error) {
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), dec))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// parseTable reads delimited text and extracts the 項目名/値 columns. Text
// whose header lacks either column is not a table; rows that fail to parse
// or are too short are skipped, not fatal.
func parseTable(text string, comma rune) (Table, bool) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return Table{}, false
	}

	labelIdx, valueIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case labelColumn:
			labelIdx = i
		case valueColumn:
			valueIdx = i
		}
	}
	if labelIdx < 0 || valueIdx < 0 {
		return Table{}, false
	}

	var table Table
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if labelIdx >= len(record) || valueIdx >= len(record) {
			continue
		}
		table.Rows = append(table.Rows, Row{
			Label: strings.TrimSpace(record[labelIdx]),
			Value: strings.TrimSpace(record[valueIdx]),
		})
	}

	return table, true
}
