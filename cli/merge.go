package cli

import (
	"compress/zlib"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/firmadoc/pdfmerge/merge"
	"github.com/firmadoc/pdfmerge/placement"
)

func MergeCommand() {
	mergeFlags := flag.NewFlagSet("merge", flag.ExitOnError)

	var placementsPath string
	var compressLevel int
	var maxImagePixels int

	mergeFlags.StringVar(&placementsPath, "placements", "", "Path to the placement JSON file (canonical or legacy form)")
	mergeFlags.IntVar(&compressLevel, "compress", zlib.DefaultCompression, "zlib compression level for new objects (-2 to 9)")
	mergeFlags.IntVar(&maxImagePixels, "max-image-pixels", 4_000_000, "Downsample signature images above this pixel count (0 disables)")

	mergeFlags.Usage = func() {
		fmt.Printf("Usage: %s merge [options] <input.pdf> <output.pdf>\n\n", os.Args[0])
		fmt.Println("Apply signature placements to a PDF file")
		fmt.Println("\nOptions:")
		mergeFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s merge -placements signatures.json contract.pdf signed.pdf\n", os.Args[0])
	}

	if err := mergeFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse merge flags: %v", err)
		osExit(1)
	}

	if len(mergeFlags.Args()) < 2 || placementsPath == "" {
		mergeFlags.Usage()
		osExit(1)
		return
	}

	MergePDF(mergeFlags.Arg(0), mergeFlags.Arg(1), placementsPath, compressLevel, maxImagePixels)
}

// MergePDF is a variable so tests can intercept it.
var MergePDF = mergePDFImpl

func mergePDFImpl(input, output, placementsPath string, compressLevel, maxImagePixels int) {
	raw, err := os.ReadFile(placementsPath)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	placements, err := placement.DecodeRecords(raw)
	if err != nil {
		log.Printf("Failed to decode placements: %v", err)
		osExit(1)
		return
	}

	inputFile, err := os.Open(input)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	defer func() {
		if err := inputFile.Close(); err != nil {
			log.Printf("Warning: failed to close input file: %v", err)
		}
	}()

	finfo, err := inputFile.Stat()
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	outputFile, err := os.Create(output)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	merger := merge.New()
	merger.CompressLevel = compressLevel
	merger.MaxImagePixels = maxImagePixels

	result, err := merger.Merge(inputFile, finfo.Size(), outputFile, placements)
	if cerr := outputFile.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	jsonData, err := json.Marshal(result)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	fmt.Println(string(jsonData))
}
