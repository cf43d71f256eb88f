package merge

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
)

// writeIncrXrefTable writes the incremental cross-reference table to the
// output buffer. Updated objects each get their own one-entry subsection;
// new objects are contiguous and share one subsection.
func (context *Context) writeIncrXrefTable() error {
	if _, err := context.OutputBuffer.Write([]byte("xref\n")); err != nil {
		return fmt.Errorf("failed to write incremental xref header: %w", err)
	}

	updated := make([]xrefEntry, len(context.updatedXrefEntries))
	copy(updated, context.updatedXrefEntries)
	sort.Slice(updated, func(i, j int) bool { return updated[i].ID < updated[j].ID })

	for _, entry := range updated {
		subsection := fmt.Sprintf("%d %d\n", entry.ID, 1)
		if _, err := context.OutputBuffer.Write([]byte(subsection)); err != nil {
			return fmt.Errorf("failed to write updated xref subsection: %w", err)
		}
		xrefLine := fmt.Sprintf("%010d %05d n \r\n", entry.Offset, 0)
		if _, err := context.OutputBuffer.Write([]byte(xrefLine)); err != nil {
			return fmt.Errorf("failed to write updated xref entry: %w", err)
		}
	}

	if len(context.newXrefEntries) > 0 {
		subsection := fmt.Sprintf("%d %d\n", context.lastXrefID+1, len(context.newXrefEntries))
		if _, err := context.OutputBuffer.Write([]byte(subsection)); err != nil {
			return fmt.Errorf("failed to write xref subsection: %w", err)
		}

		for _, entry := range context.newXrefEntries {
			xrefLine := fmt.Sprintf("%010d %05d n \r\n", entry.Offset, 0)
			if _, err := context.OutputBuffer.Write([]byte(xrefLine)); err != nil {
				return fmt.Errorf("failed to write xref entry: %w", err)
			}
		}
	}

	return nil
}

// writeXrefStream writes a cross-reference stream, for documents whose
// existing xref is itself a stream.
func (context *Context) writeXrefStream() error {
	var entries bytes.Buffer

	updated := make([]xrefEntry, len(context.updatedXrefEntries))
	copy(updated, context.updatedXrefEntries)
	sort.Slice(updated, func(i, j int) bool { return updated[i].ID < updated[j].ID })

	for _, entry := range updated {
		writeXrefStreamLine(&entries, 1, int(entry.Offset), 0)
	}
	for _, entry := range context.newXrefEntries {
		writeXrefStreamLine(&entries, 1, int(entry.Offset), 0)
	}

	streamBytes, err := flateEncode(entries.Bytes())
	if err != nil {
		return fmt.Errorf("failed to encode xref stream: %w", err)
	}

	var object bytes.Buffer
	if err := context.writeXrefStreamHeader(&object, updated, len(streamBytes)); err != nil {
		return fmt.Errorf("failed to write xref stream header: %w", err)
	}
	object.WriteString("stream\n")
	object.Write(streamBytes)
	object.WriteString("\nendstream")

	context.newXrefStart = int64(context.OutputBuffer.Buff.Len())
	if _, err := context.addObject(object.Bytes()); err != nil {
		return fmt.Errorf("failed to add xref stream object: %w", err)
	}

	return nil
}

func (context *Context) writeXrefStreamHeader(buffer *bytes.Buffer, updated []xrefEntry, streamLength int) error {
	trailer := context.PDFReader.Trailer()
	id := trailer.Key("ID")

	var indexArray []uint32
	for _, entry := range updated {
		indexArray = append(indexArray, entry.ID, 1)
	}
	if len(context.newXrefEntries) > 0 {
		indexArray = append(indexArray, context.lastXrefID+1, uint32(len(context.newXrefEntries)))
	}

	// The stream object itself takes the next free id.
	size := context.PDFReader.XrefInformation.ItemCount + int64(len(context.newXrefEntries)) + 1

	buffer.WriteString("<< /Type /XRef\n")
	fmt.Fprintf(buffer, "  /Length %d\n", streamLength)
	buffer.WriteString("  /Filter /FlateDecode\n")
	buffer.WriteString("  /W [ 1 4 1 ]\n")
	fmt.Fprintf(buffer, "  /Prev %d\n", context.PDFReader.XrefInformation.StartPos)
	fmt.Fprintf(buffer, "  /Size %d\n", size)

	if len(indexArray) > 0 {
		buffer.WriteString("  /Index [")
		for _, idx := range indexArray {
			fmt.Fprintf(buffer, " %d", idx)
		}
		buffer.WriteString(" ]\n")
	}

	root := trailer.Key("Root").GetPtr()
	fmt.Fprintf(buffer, "  /Root %d %d R\n", root.GetID(), root.GetGen())

	if !id.IsNull() && id.Len() >= 2 {
		id0 := hex.EncodeToString([]byte(id.Index(0).RawString()))
		id1 := hex.EncodeToString([]byte(id.Index(1).RawString()))
		fmt.Fprintf(buffer, "  /ID [<%s><%s>]\n", id0, id1)
	}

	buffer.WriteString(">>\n")
	return nil
}

// writeXrefStreamLine writes one [type offset gen] row in W [1 4 1] layout.
func writeXrefStreamLine(b *bytes.Buffer, xreftype byte, offset int, gen byte) {
	b.WriteByte(xreftype)

	offsetBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(offsetBytes, uint32(offset))
	b.Write(offsetBytes)

	b.WriteByte(gen)
}

func flateEncode(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
