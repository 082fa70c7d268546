package snapshot

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// DefaultNameColumn is the extract column holding the raw names.
const DefaultNameColumn = "original"

// Table is a delimited extract held in memory.
type Table struct {
	Header []string
	Rows   [][]string
	Comma  rune
}

// DelimiterFor picks ',' for .csv files and a tab otherwise.
func DelimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return '\t'
}

// ReadTable reads a header row and every data row. Short rows are kept
// as-is; Names reads them as empty.
func ReadTable(r io.Reader, comma rune) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBatchInputInvalid, "failed to read extract")
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeBatchInputInvalid, "extract is empty")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = cleanCell(h)
	}
	return &Table{Header: header, Rows: rows[1:], Comma: comma}, nil
}

// ColumnIndex finds name in the header, ignoring case.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, errors.New(errors.ErrCodeBatchInputInvalid, "column not found in extract").
		WithDetailf("column=%q available=%q", name, t.Header)
}

// Names returns column col of every row, trimmed.
func (t *Table) Names(col int) []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = cell(row, col)
	}
	return out
}

// Select returns a table holding rows idx of t, in that order. Rows are
// shared, not copied.
func (t *Table) Select(idx []int) *Table {
	out := &Table{Header: t.Header, Rows: make([][]string, len(idx)), Comma: t.Comma}
	for i, r := range idx {
		out.Rows[i] = t.Rows[r]
	}
	return out
}

// WriteAnnotated writes t with mapping.RecordColumns appended; records[i]
// annotates t.Rows[i]. Rows past len(records), left over from a cancelled
// run, get empty annotation cells.
func WriteAnnotated(w io.Writer, t *Table, records []mapping.MappingRecord) error {
	writer := csv.NewWriter(w)
	writer.Comma = t.Comma

	width := len(t.Header)
	header := append(append(make([]string, 0, width+len(mapping.RecordColumns)), t.Header...), mapping.RecordColumns...)
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write extract header")
	}

	blank := make([]string, len(mapping.RecordColumns))
	for i, row := range t.Rows {
		out := make([]string, width, width+len(mapping.RecordColumns))
		copy(out, row)
		if i < len(records) {
			out = append(out, records[i].Columns()...)
		} else {
			out = append(out, blank...)
		}
		if err := writer.Write(out); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write extract row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to flush extract")
	}
	return nil
}
