package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/go-units"

	"github.com/tmaxmax/abiprobe/pkg/inspect"
)

func runInspect(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("inspect", stderr)
	asJSON := fs.Bool("json", false, "print the classifications as JSON")

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: inspect needs at least one file", errUsage)
	}

	var results []*inspect.Classification
	for _, path := range fs.Args() {
		c, err := inspect.File(path)
		if err != nil {
			return err
		}
		results = append(results, c)
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for i, c := range results {
		if i > 0 {
			fmt.Fprintln(stdout)
		}

		size := "unknown size"
		if stat, err := os.Stat(c.Path); err == nil {
			size = units.HumanSize(float64(stat.Size()))
		}

		fmt.Fprintf(stdout, "%s (%s)\n", c.Path, size)
		fmt.Fprintf(stdout, "  classification: %s\n", c)
		if c.Machine != "" {
			fmt.Fprintf(stdout, "  machine: %s\n", c.Machine)
		}
		if len(c.Exports) > 0 {
			fmt.Fprintf(stdout, "  exports: %s\n", strings.Join(c.Exports, ", "))
		}
		for _, e := range c.Evidence {
			fmt.Fprintf(stdout, "  evidence: %s\n", e)
		}
	}

	fmt.Fprintln(stdout, "\nClassifications are heuristic and never certain.")
	return nil
}
