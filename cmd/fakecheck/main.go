// Command fakecheck compares product photos and scores marketplace listings
// for counterfeit risk.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "fakecheck: .env: %v\n", err)
	}
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
