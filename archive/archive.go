// Package archive bundles merged documents into a single PDF for download
// and offers document-level validation, backed by pdfcpu.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoDocuments indicates Assemble was called with nothing to bundle.
var ErrNoDocuments = errors.New("no documents to assemble")

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	// Merged output may come from sources with minor spec deviations.
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Assemble concatenates the given PDF documents, in order, into one file.
// A single document is returned unchanged.
func Assemble(documents [][]byte) ([]byte, error) {
	if len(documents) == 0 {
		return nil, ErrNoDocuments
	}
	if len(documents) == 1 {
		return documents[0], nil
	}

	readers := make([]io.ReadSeeker, len(documents))
	for i, doc := range documents {
		readers[i] = bytes.NewReader(doc)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, configuration()); err != nil {
		return nil, fmt.Errorf("failed to assemble documents: %w", err)
	}
	return out.Bytes(), nil
}

// Validate checks that the document parses as a well-formed PDF.
func Validate(document []byte) error {
	return api.Validate(bytes.NewReader(document), configuration())
}

// PageCount returns the number of pages in the document.
func PageCount(document []byte) (int, error) {
	return api.PageCount(bytes.NewReader(document), configuration())
}
