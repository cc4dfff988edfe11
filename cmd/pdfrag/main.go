// Package main provides the entry point for the pdfrag CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/pdfrag/cmd/pdfrag/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
