// Command chunker plans and hashes a file into the chunk layout a server
// publishes, writing it out as a .plan.toml plan file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fountainlink/transfer/internal/chunkplan"
	"github.com/fountainlink/transfer/internal/planfile"
)

func main() {
	output := flag.String("output", "", "output .plan.toml path (default: <file>.plan.toml)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: chunker [options] <file_path>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	path := flag.Arg(0)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: file not found: %s\n", path)
		os.Exit(2)
	}

	fmt.Fprintf(os.Stderr, "Planning %s\n", path)
	cfg, err := chunkplan.Build(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error planning file: %v\n", err)
		os.Exit(3)
	}
	fmt.Fprintf(os.Stderr, "File size: %d bytes\n", cfg.TotalLength)
	fmt.Fprintf(os.Stderr, "Chunks: %d\n", len(cfg.Chunks))

	planPath := *output
	if planPath == "" {
		planPath = filepath.Base(path) + ".plan.toml"
	}
	if err := planfile.Write(planPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing plan file: %v\n", err)
		os.Exit(4)
	}
	fmt.Fprintf(os.Stderr, "Plan written to: %s\n", planPath)
}
