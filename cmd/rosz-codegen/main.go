package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	inputFile := flag.String("input", "", "Input JSON manifest file (or - for stdin)")
	outputDir := flag.String("output", ".", "Output directory for generated Go code")
	packagePrefix := flag.String("prefix", "rosz", "Go package prefix")
	strict := flag.Bool("strict", false, "Fail when a manifest type hash differs from the computed one")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var data []byte
	var err error

	if *inputFile == "" || *inputFile == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*inputFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		os.Exit(1)
	}

	var manifest CodegenManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse JSON: %v\n", err)
		os.Exit(1)
	}

	if manifest.Version != ExpectedVersion {
		fmt.Fprintf(os.Stderr, "Version mismatch: got %d, expected %d\n",
			manifest.Version, ExpectedVersion)
		os.Exit(1)
	}

	gen := NewGenerator(manifest, *packagePrefix, *strict, logger)

	// Generate code for each message
	for _, msg := range manifest.Messages {
		if err := writeGenerated(*outputDir, msg.Package, strings.ToLower(msg.Name)+".go", func() ([]byte, error) {
			return gen.Message(msg)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate %s: %v\n", msg.FullName, err)
			os.Exit(1)
		}
		fmt.Printf("Generated: %s\n", msg.FullName)
	}

	// Generate code for each service
	for _, srv := range manifest.Services {
		// Services go in the same directory as messages (same Go package)
		if err := writeGenerated(*outputDir, srv.Package, "srv_"+strings.ToLower(srv.Name)+".go", func() ([]byte, error) {
			return gen.Service(srv)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate service %s: %v\n", srv.FullName, err)
			os.Exit(1)
		}
		fmt.Printf("Generated service: %s\n", srv.FullName)
	}

	for _, action := range manifest.Actions {
		logger.Warn("skipping action, actions are not supported", "action", action.FullName)
	}

	fmt.Printf("Generation complete: %d messages, %d services\n",
		len(manifest.Messages), len(manifest.Services))
}

func writeGenerated(baseDir, pkg, file string, generate func() ([]byte, error)) error {
	pkgDir := filepath.Join(baseDir, sanitizePackageName(pkg))
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		return err
	}
	code, err := generate()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(pkgDir, file), code, 0644)
}

func sanitizePackageName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
