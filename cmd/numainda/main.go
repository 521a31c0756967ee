// Command numainda ingests legal PDFs and queries the embedding store from
// the shell, without going through the HTTP services.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(openBackend).Execute(); err != nil {
		os.Exit(1)
	}
}
