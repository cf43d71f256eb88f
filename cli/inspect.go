package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/firmadoc/pdfmerge"
)

func InspectCommand() {
	inspectFlags := flag.NewFlagSet("inspect", flag.ExitOnError)

	inspectFlags.Usage = func() {
		fmt.Printf("Usage: %s inspect <input.pdf>\n\n", os.Args[0])
		fmt.Println("Print the native geometry of every page as JSON")
	}

	if err := inspectFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse inspect flags: %v", err)
		osExit(1)
	}

	if len(inspectFlags.Args()) < 1 {
		inspectFlags.Usage()
		osExit(1)
		return
	}

	InspectPDF(inspectFlags.Arg(0))
}

// InspectPDF is a variable so tests can intercept it.
var InspectPDF = inspectPDFImpl

func inspectPDFImpl(input string) {
	doc, err := pdfmerge.OpenFile(input)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	pages, err := doc.Geometry()
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	jsonData, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	fmt.Println(string(jsonData))
}
