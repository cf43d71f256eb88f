package merge

import (
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	pdflib "github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"
	"github.com/sirupsen/logrus"
)

// ErrDocumentLoad indicates the source PDF could not be parsed at all.
// This is fatal to the whole operation; no partial output is produced.
var ErrDocumentLoad = errors.New("document load failure")

// InputFile is what a merge needs from a source document. Both *os.File
// and *bytes.Reader satisfy it.
type InputFile interface {
	io.ReaderAt
	io.ReadSeeker
}

type xrefEntry struct {
	ID     uint32
	Offset int64
}

// Context carries the state of one incremental update against one loaded
// document. It is scoped to a single operation and never shared or cached
// across requests.
type Context struct {
	InputFile     InputFile
	OutputBuffer  *filebuffer.Buffer
	PDFReader     *pdflib.Reader
	Size          int64
	Logger        logrus.FieldLogger
	CompressLevel int

	lastXrefID         uint32
	nextObjectID       uint32
	newXrefEntries     []xrefEntry
	updatedXrefEntries []xrefEntry
	newXrefStart       int64

	// Image object ids by content hash, so a capture placed on several
	// pages is only embedded once.
	imageObjectIDs map[string]uint32
}

// NewContext parses the source document and prepares an output buffer
// seeded with a copy of it.
func NewContext(input InputFile, size int64) (*Context, error) {
	rdr, err := pdflib.NewReader(input, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentLoad, err)
	}

	context := &Context{
		InputFile:      input,
		PDFReader:      rdr,
		Size:           size,
		CompressLevel:  zlib.DefaultCompression,
		lastXrefID:     uint32(rdr.XrefInformation.ItemCount) - 1,
		nextObjectID:   uint32(rdr.XrefInformation.ItemCount),
		imageObjectIDs: make(map[string]uint32),
	}

	context.OutputBuffer = filebuffer.New([]byte{})
	if _, err := input.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.Copy(context.OutputBuffer, input); err != nil {
		return nil, err
	}
	// The update is appended after the original %%EOF.
	if _, err := context.OutputBuffer.Write([]byte("\n")); err != nil {
		return nil, err
	}

	return context, nil
}

func (context *Context) logger() logrus.FieldLogger {
	if context.Logger != nil {
		return context.Logger
	}
	return logrus.StandardLogger()
}

// addObject appends a new numbered object to the output buffer and records
// its xref entry.
func (context *Context) addObject(object []byte) (uint32, error) {
	id := context.nextObjectID
	context.nextObjectID++

	offset := int64(context.OutputBuffer.Buff.Len())
	if _, err := fmt.Fprintf(context.OutputBuffer, "%d 0 obj\n", id); err != nil {
		return 0, err
	}
	if _, err := context.OutputBuffer.Write(object); err != nil {
		return 0, err
	}
	if _, err := context.OutputBuffer.Write([]byte("\nendobj\n\n")); err != nil {
		return 0, err
	}

	context.newXrefEntries = append(context.newXrefEntries, xrefEntry{ID: id, Offset: offset})
	return id, nil
}

// updateObject appends a replacement body for an existing object.
func (context *Context) updateObject(id uint32, object []byte) error {
	offset := int64(context.OutputBuffer.Buff.Len())
	if _, err := fmt.Fprintf(context.OutputBuffer, "%d 0 obj\n", id); err != nil {
		return err
	}
	if _, err := context.OutputBuffer.Write(object); err != nil {
		return err
	}
	if _, err := context.OutputBuffer.Write([]byte("\nendobj\n\n")); err != nil {
		return err
	}

	context.updatedXrefEntries = append(context.updatedXrefEntries, xrefEntry{ID: id, Offset: offset})
	return nil
}

// dirty reports whether anything was appended to the document.
func (context *Context) dirty() bool {
	return len(context.newXrefEntries) > 0 || len(context.updatedXrefEntries) > 0
}

// finish writes the incremental cross-reference section and trailer for
// everything added so far.
func (context *Context) finish() error {
	if !context.dirty() {
		return nil
	}

	switch context.PDFReader.XrefInformation.Type {
	case "table":
		context.newXrefStart = int64(context.OutputBuffer.Buff.Len())
		if err := context.writeIncrXrefTable(); err != nil {
			return fmt.Errorf("failed to write xref table: %w", err)
		}
	case "stream":
		if err := context.writeXrefStream(); err != nil {
			return fmt.Errorf("failed to write xref stream: %w", err)
		}
	default:
		return fmt.Errorf("unknown xref type: %s", context.PDFReader.XrefInformation.Type)
	}

	if err := context.writeTrailer(); err != nil {
		return fmt.Errorf("failed to write trailer: %w", err)
	}
	return nil
}

// writeTo copies the finished document to the caller's writer.
func (context *Context) writeTo(output io.Writer) error {
	if _, err := output.Write(context.OutputBuffer.Buff.Bytes()); err != nil {
		return err
	}
	return nil
}
