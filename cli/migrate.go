package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/firmadoc/pdfmerge/placement"
)

func MigrateCommand() {
	migrateFlags := flag.NewFlagSet("migrate", flag.ExitOnError)

	var outputPath string
	migrateFlags.StringVar(&outputPath, "o", "", "Write canonical JSON to this file instead of stdout")

	migrateFlags.Usage = func() {
		fmt.Printf("Usage: %s migrate [options] <legacy.json>\n\n", os.Args[0])
		fmt.Println("Convert legacy placement JSON to the canonical form")
		fmt.Println("\nOptions:")
		migrateFlags.PrintDefaults()
	}

	if err := migrateFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse migrate flags: %v", err)
		osExit(1)
	}

	if len(migrateFlags.Args()) < 1 {
		migrateFlags.Usage()
		osExit(1)
		return
	}

	MigratePlacements(migrateFlags.Arg(0), outputPath)
}

// MigratePlacements is a variable so tests can intercept it.
var MigratePlacements = migratePlacementsImpl

func migratePlacementsImpl(input, output string) {
	raw, err := os.ReadFile(input)
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

	jsonData, err := json.MarshalIndent(placements, "", "  ")
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	if output == "" {
		fmt.Println(string(jsonData))
		return
	}
	if err := os.WriteFile(output, append(jsonData, '\n'), 0o644); err != nil {
		log.Println(err)
		osExit(1)
	}
}
