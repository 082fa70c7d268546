// Package snapshot reads and writes the on-disk formats ChemMap exchanges
// with curators: the TSV vocabulary snapshot, the YAML override table and
// the tabular extracts that batch runs annotate.
package snapshot

import (
	"encoding/csv"
	stderrors "errors"
	"io"
	"strings"

	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// SynonymSeparator joins synonyms inside the synonyms column.
const SynonymSeparator = "|"

// VocabularyHeader is the header EncodeVocabulary writes.
var VocabularyHeader = []string{"id", "name", "synonyms", "formula", "category"}

// header aliases accepted when decoding
var vocabularyColumns = map[string][]string{
	"id":       {"id", "chebi_id", "identifier"},
	"name":     {"name", "label"},
	"synonyms": {"synonyms", "synonym"},
	"formula":  {"formula"},
	"category": {"category", "class"},
}

type vocabularyLayout struct {
	id, name, synonyms, formula, category int
}

func resolveVocabularyLayout(header []string) (vocabularyLayout, error) {
	find := func(col string) int {
		for _, alias := range vocabularyColumns[col] {
			for i, h := range header {
				if strings.EqualFold(cleanCell(h), alias) {
					return i
				}
			}
		}
		return -1
	}
	l := vocabularyLayout{
		id:       find("id"),
		name:     find("name"),
		synonyms: find("synonyms"),
		formula:  find("formula"),
		category: find("category"),
	}
	if l.id < 0 || l.name < 0 {
		return l, errors.New(errors.ErrCodeVocabularyMalformed, "vocabulary header needs id and name columns").
			WithDetailf("header=%q", header)
	}
	return l, nil
}

func newTSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true
	return reader
}

// DecodeVocabulary reads a TSV snapshot. Blank lines are skipped; rows
// without an id or name fail with VOCAB_002 and the line number.
func DecodeVocabulary(r io.Reader) ([]reference.Entity, error) {
	reader := newTSVReader(r)
	header, err := reader.Read()
	if stderrors.Is(err, io.EOF) {
		return nil, errors.New(errors.ErrCodeVocabularyEmpty, "vocabulary snapshot is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabularyMalformed, "failed to read vocabulary header")
	}
	layout, err := resolveVocabularyLayout(append([]string(nil), header...))
	if err != nil {
		return nil, err
	}

	var out []reference.Entity
	for {
		row, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeVocabularyMalformed, "failed to read vocabulary row")
		}
		line, _ := reader.FieldPos(0)
		if isBlank(row) {
			continue
		}
		e := reference.Entity{
			ID:       cell(row, layout.id),
			Label:    cell(row, layout.name),
			Synonyms: splitSynonyms(cell(row, layout.synonyms)),
			Formula:  cell(row, layout.formula),
			Category: cell(row, layout.category),
		}
		if err := e.Validate(); err != nil {
			return nil, errors.Wrapf(err, errors.CodeUnknown, "invalid entity at line %d", line)
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeVocabularyEmpty, "vocabulary snapshot has no entities")
	}
	return out, nil
}

// EncodeVocabulary writes entities in VocabularyHeader order.
func EncodeVocabulary(w io.Writer, entities []reference.Entity) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.Write(VocabularyHeader); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write vocabulary header")
	}
	for _, e := range entities {
		row := []string{e.ID, e.Label, strings.Join(e.Synonyms, SynonymSeparator), e.Formula, e.Category}
		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write vocabulary row").
				WithDetailf("id=%s", e.ID)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to flush vocabulary")
	}
	return nil
}

func splitSynonyms(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, SynonymSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return cleanCell(row[i])
}

// cleanCell trims whitespace and a leading byte-order mark.
func cleanCell(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
