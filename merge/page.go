package merge

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	pdflib "github.com/digitorus/pdf"
)

// findPage walks the page tree to the 1-based pageNum and returns the page
// object. The reader's own page accessor resolves indirect references away;
// the raw value is needed here because the page's object id is required for
// the incremental update.
func (context *Context) findPage(pageNum int) (pdflib.Value, error) {
	root := context.PDFReader.Trailer().Key("Root")
	pages := root.Key("Pages")
	page, _ := findPageRec(pages, pageNum)
	if page.Kind() != pdflib.Dict {
		return pdflib.Value{}, errors.New("page not found")
	}
	return page, nil
}

// findPageRec counts leaf pages down the tree. It returns either the page
// or the number of leaves still to skip when this subtree is exhausted.
func findPageRec(node pdflib.Value, pageNum int) (pdflib.Value, int) {
	switch node.Key("Type").Name() {
	case "Page":
		if pageNum == 1 {
			return node, 0
		}
		return pdflib.Value{}, pageNum - 1

	case "Pages":
		kids := node.Key("Kids")
		if kids.Kind() == pdflib.Array {
			for i := 0; i < kids.Len(); i++ {
				page, n := findPageRec(kids.Index(i), pageNum)
				if page.Kind() == pdflib.Dict {
					return page, 0
				}
				pageNum = n
			}
		}
	}
	return pdflib.Value{}, pageNum
}

// rewritePage emits an updated page dictionary that appends the new content
// stream to /Contents and merges the new XObject and Font resources into
// /Resources. All other page keys are carried over untouched.
func (context *Context) rewritePage(page pdflib.Value, contentID uint32, xobjects, fonts map[string]uint32) error {
	pageID := page.GetPtr().GetID()

	var buf bytes.Buffer
	buf.WriteString("<<\n")

	for _, key := range page.Keys() {
		if key == "Contents" || key == "Resources" || key == "Type" {
			continue
		}
		fmt.Fprintf(&buf, "  /%s ", key)
		writeValue(&buf, pageID, page.Key(key))
		buf.WriteString("\n")
	}

	buf.WriteString("  /Type /Page\n")

	buf.WriteString("  /Contents [")
	contents := page.Key("Contents")
	if contents.Kind() == pdflib.Array {
		for i := 0; i < contents.Len(); i++ {
			ptr := contents.Index(i).GetPtr()
			if ptr.GetID() > 0 && ptr.GetID() != pageID {
				fmt.Fprintf(&buf, " %d %d R", ptr.GetID(), ptr.GetGen())
			}
		}
	} else if !contents.IsNull() {
		ptr := contents.GetPtr()
		if ptr.GetID() > 0 && ptr.GetID() != pageID {
			fmt.Fprintf(&buf, " %d %d R", ptr.GetID(), ptr.GetGen())
		}
	}
	fmt.Fprintf(&buf, " %d 0 R ]\n", contentID)

	buf.WriteString("  /Resources ")
	writeMergedResources(&buf, page.Key("Resources"), xobjects, fonts)
	buf.WriteString("\n>>")

	ptr := page.GetPtr()
	if ptr.GetID() == 0 {
		return errors.New("page object has no indirect reference")
	}
	return context.updateObject(ptr.GetID(), buf.Bytes())
}

// writeMergedResources writes the page's resource dictionary with the new
// entries folded into the XObject and Font subdictionaries. Subdictionaries
// are expanded inline so indirect resource dictionaries merge correctly.
func writeMergedResources(buf *bytes.Buffer, res pdflib.Value, xobjects, fonts map[string]uint32) {
	buf.WriteString("<< ")

	if res.Kind() == pdflib.Dict {
		resID := res.GetPtr().GetID()
		for _, key := range res.Keys() {
			if key == "XObject" || key == "Font" {
				continue
			}
			fmt.Fprintf(buf, "/%s ", key)
			writeValue(buf, resID, res.Key(key))
			buf.WriteString(" ")
		}
	}

	writeMergedSubdict(buf, "XObject", res, xobjects)
	writeMergedSubdict(buf, "Font", res, fonts)

	buf.WriteString(">>")
}

func writeMergedSubdict(buf *bytes.Buffer, name string, res pdflib.Value, added map[string]uint32) {
	existing := pdflib.Value{}
	if res.Kind() == pdflib.Dict {
		existing = res.Key(name)
	}
	if existing.IsNull() && len(added) == 0 {
		return
	}

	fmt.Fprintf(buf, "/%s << ", name)
	if existing.Kind() == pdflib.Dict {
		existingID := existing.GetPtr().GetID()
		for _, key := range existing.Keys() {
			if _, shadowed := added[key]; shadowed {
				continue
			}
			fmt.Fprintf(buf, "/%s ", key)
			writeValue(buf, existingID, existing.Key(key))
			buf.WriteString(" ")
		}
	}
	for _, key := range sortedKeys(added) {
		fmt.Fprintf(buf, "/%s %d 0 R ", key, added[key])
	}
	buf.WriteString(">> ")
}

// writeValue serializes a parsed value back to PDF syntax. Values resolved
// through an indirect reference are written back as references to keep the
// update small and to avoid duplicating shared structures. Direct values
// carry the pointer of their enclosing object, so a value is only treated
// as indirect when its pointer leaves the parent object.
func writeValue(buf *bytes.Buffer, parentID uint32, v pdflib.Value) {
	ptr := v.GetPtr()
	if ptr.GetID() > 0 && ptr.GetID() != parentID {
		fmt.Fprintf(buf, "%d %d R", ptr.GetID(), ptr.GetGen())
		return
	}

	switch v.Kind() {
	case pdflib.Bool:
		if v.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case pdflib.Integer:
		fmt.Fprintf(buf, "%d", v.Int64())
	case pdflib.Real:
		fmt.Fprintf(buf, "%g", v.Float64())
	case pdflib.String:
		buf.WriteString(pdfString(v.RawString()))
	case pdflib.Name:
		fmt.Fprintf(buf, "/%s", v.Name())
	case pdflib.Array:
		buf.WriteString("[ ")
		for i := 0; i < v.Len(); i++ {
			writeValue(buf, parentID, v.Index(i))
			buf.WriteString(" ")
		}
		buf.WriteString("]")
	case pdflib.Dict:
		buf.WriteString("<< ")
		for _, key := range v.Keys() {
			fmt.Fprintf(buf, "/%s ", key)
			writeValue(buf, parentID, v.Key(key))
			buf.WriteString(" ")
		}
		buf.WriteString(">>")
	default:
		buf.WriteString("null")
	}
}

func sortedKeys(m map[string]uint32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
