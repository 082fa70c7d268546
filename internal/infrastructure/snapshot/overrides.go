package snapshot

import (
	stderrors "errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/pkg/errors"
)

type overrideFile struct {
	Overrides []reference.Override `yaml:"overrides"`
}

// DecodeOverrides reads the YAML override table:
//
//	overrides:
//	  - name: MgCl2
//	    id: CHEBI:6636
//	    note: magnesium dichloride
//
// Unknown keys are rejected so a misspelt field does not silently drop a
// pin. An empty document yields an empty table.
func DecodeOverrides(r io.Reader) ([]reference.Override, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f overrideFile
	if err := dec.Decode(&f); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeOverrideInvalid, "failed to parse override table")
	}
	return f.Overrides, nil
}

// EncodeOverrides writes entries in the DecodeOverrides format.
func EncodeOverrides(w io.Writer, entries []reference.Override) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(overrideFile{Overrides: entries}); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode override table")
	}
	return enc.Close()
}
