// Package cli implements the pdfmerge command line interface.
package cli

import (
	"fmt"
	"os"
)

// osExit is swapped out in tests.
var osExit = os.Exit

func Usage() {
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  merge    Apply signature placements to a PDF file")
	fmt.Println("  inspect  Print page geometry of a PDF file")
	fmt.Println("  migrate  Convert legacy placement JSON to the canonical form")
	fmt.Println("  serve    Run the HTTP merge service")
	fmt.Println("")
	fmt.Printf("Use '%s <command> -h' for command-specific help\n", os.Args[0])
	osExit(1)
}

// Execute dispatches to the subcommand named in os.Args.
func Execute() {
	if len(os.Args) < 2 {
		Usage()
		return
	}

	switch os.Args[1] {
	case "merge":
		MergeCommand()
	case "inspect":
		InspectCommand()
	case "migrate":
		MigrateCommand()
	case "serve":
		ServeCommand()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		Usage()
	}
}
