package merge

import (
	"strconv"
	"strings"
)

// writeTrailer appends the trailer for the incremental update. For
// table-type documents the original trailer dictionary is carried over with
// /Size bumped and /Prev pointing at the previous xref; the /Root reference
// is unchanged because the catalog is never rewritten here.
func (context *Context) writeTrailer() error {
	if context.PDFReader.XrefInformation.Type == "table" {
		trailerLength := context.PDFReader.XrefInformation.IncludingTrailerEndPos - context.PDFReader.XrefInformation.EndPos

		if _, err := context.InputFile.Seek(context.PDFReader.XrefInformation.EndPos+1, 0); err != nil {
			return err
		}
		trailerBuf := make([]byte, trailerLength)
		if _, err := context.InputFile.Read(trailerBuf); err != nil {
			return err
		}

		sizeString := "Size " + strconv.FormatInt(context.PDFReader.XrefInformation.ItemCount, 10)
		newSize := "Size " + strconv.FormatInt(context.PDFReader.XrefInformation.ItemCount+int64(len(context.newXrefEntries)), 10)

		prevString := "Prev " + context.PDFReader.Trailer().Key("Prev").String()
		newPrev := "Prev " + strconv.FormatInt(context.PDFReader.XrefInformation.StartPos, 10)

		trailerString := string(trailerBuf)
		trailerString = strings.ReplaceAll(trailerString, sizeString, newSize)
		if strings.Contains(trailerString, prevString) && !context.PDFReader.Trailer().Key("Prev").IsNull() {
			trailerString = strings.ReplaceAll(trailerString, prevString, newPrev)
		} else {
			trailerString = strings.ReplaceAll(trailerString, newSize, newSize+" /"+newPrev)
		}

		// The copied region already ends with the startxref keyword.
		if _, err := context.OutputBuffer.Write([]byte(trailerString)); err != nil {
			return err
		}
		if !strings.HasSuffix(trailerString, "\n") {
			if _, err := context.OutputBuffer.Write([]byte("\n")); err != nil {
				return err
			}
		}
	} else {
		if _, err := context.OutputBuffer.Write([]byte("startxref\n")); err != nil {
			return err
		}
	}

	if _, err := context.OutputBuffer.Write([]byte(strconv.FormatInt(context.newXrefStart, 10) + "\n")); err != nil {
		return err
	}
	if _, err := context.OutputBuffer.Write([]byte("%%EOF\n")); err != nil {
		return err
	}

	return nil
}
