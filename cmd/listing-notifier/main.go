// Package main is the entry point for the listing-notifier binary.
package main

import (
	"os"

	"github.com/donaldgifford/listing-notifier/cmd/listing-notifier/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
