package xmlexport

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/log"
)

// Exporter runs the single filter registered for a key.
type Exporter struct {
	registry *Registry
}

// NewExporter creates an Exporter backed by registry.
func NewExporter(registry *Registry) *Exporter {
	return &Exporter{registry: registry}
}

// Export serializes objects with the filter registered under filterKey.
// It fails with *domain.SerializationError if zero or several filters match, if the
// filter fails, or if the result is empty or not well-formed XML.
func (e *Exporter) Export(objects []*domain.Object, filterKey string, dep Deployment) ([]byte, error) {
	filters := e.registry.Lookup(filterKey)
	if len(filters) != 1 {
		return nil, &domain.SerializationError{FilterKey: filterKey, Matches: len(filters)}
	}

	doc, err := filters[0].Serialize(objects, dep)
	if err != nil {
		return nil, &domain.SerializationError{FilterKey: filterKey, Matches: 1, Err: err}
	}
	if len(bytes.TrimSpace(doc)) == 0 {
		return nil, &domain.SerializationError{FilterKey: filterKey, Matches: 1}
	}
	if err := checkWellFormed(doc); err != nil {
		return nil, &domain.SerializationError{FilterKey: filterKey, Matches: 1, Err: err}
	}

	log.Debug(log.CatExport, "Exported objects", "filter", filterKey, "objects", len(objects), "bytes", len(doc))
	return doc, nil
}

func checkWellFormed(doc []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	root := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			root = true
		}
	}
	if !root {
		return errors.New("document has no root element")
	}
	return nil
}
