// Package main generates CLI reference documentation from the
// listing-notifier command tree, plus the status server's OpenAPI document.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra/doc"

	"github.com/donaldgifford/listing-notifier/cmd/listing-notifier/cmd"
	"github.com/donaldgifford/listing-notifier/internal/api"
)

func main() {
	output := flag.String("output", "docs/cli", "output directory for generated markdown")
	openapi := flag.String("openapi", "", "also write the status server OpenAPI document to this path")
	flag.Parse()

	if err := os.MkdirAll(*output, 0o750); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}

	root := cmd.Root()
	root.DisableAutoGenTag = true

	if err := doc.GenMarkdownTree(root, *output); err != nil {
		log.Fatalf("generating docs: %v", err)
	}
	fmt.Printf("CLI docs generated in %s/\n", *output)

	if *openapi != "" {
		if err := writeOpenAPI(*openapi); err != nil {
			log.Fatalf("generating openapi: %v", err)
		}
		fmt.Printf("OpenAPI document written to %s\n", *openapi)
	}
}

// writeOpenAPI registers the status routes without a running loop and
// writes the resulting document as indented JSON.
func writeOpenAPI(path string) error {
	srv := api.NewServer(api.Config{}, nil, cmd.Version, slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, err := json.MarshalIndent(srv.OpenAPI(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
