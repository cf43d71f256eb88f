package main

import "github.com/firmadoc/pdfmerge/cli"

func main() {
	cli.Execute()
}
