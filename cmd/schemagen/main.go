// Command schemagen renders the loaded tool catalog's input schemas to a
// single JSON document, for publishing alongside the tool descriptor
// files a deployment ships.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mfateev/mcpsandboxd/internal/toolconfig"
)

type toolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"input_schema"`
}

func main() {
	toolsDir := flag.String("tools-dir", "", "directory of *.json tool descriptors (required)")
	outputDir := flag.String("output-dir", "docs", "directory to write the generated schema document into")
	flag.Parse()

	if *toolsDir == "" {
		fmt.Fprintln(os.Stderr, "schemagen: -tools-dir is required")
		os.Exit(1)
	}

	configs, err := toolconfig.LoadDir(*toolsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemagen: %v\n", err)
		os.Exit(1)
	}
	catalog := toolconfig.NewCatalog(configs)

	schemas := make([]toolSchema, 0, len(catalog.All()))
	for _, tc := range catalog.All() {
		schemas = append(schemas, toolSchema{
			Name:        tc.Name,
			Description: tc.Description,
			Schema:      toolconfig.Schema(tc),
		})
	}

	schemaJSON, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemagen: marshal schema: %v\n", err)
		os.Exit(1)
	}

	docsPath, err := writeSchemaToFile(*outputDir, schemaJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemagen: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("generated tool schema at: %s\n", docsPath)
	fmt.Printf("  schema size: %d bytes\n", len(schemaJSON))
	fmt.Println("  preview:")
	fmt.Print(generatePreview(string(schemaJSON), 10))
}

func writeSchemaToFile(outputDir string, schemaJSON []byte) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	docsPath := filepath.Join(outputDir, "tool-schema.json")
	if err := os.WriteFile(docsPath, schemaJSON, 0o644); err != nil {
		return "", err
	}
	return docsPath, nil
}

// generatePreview returns the first maxLines lines of schemaJSON, each
// indented, with a trailing summary of how many lines were elided.
func generatePreview(schemaJSON string, maxLines int) string {
	if schemaJSON == "" {
		return ""
	}
	lines := strings.Split(schemaJSON, "\n")
	total := len(lines)
	if total > maxLines {
		lines = lines[:maxLines]
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if total > maxLines {
		fmt.Fprintf(&b, "    ... and %d more lines\n", total-maxLines)
	}
	return b.String()
}
