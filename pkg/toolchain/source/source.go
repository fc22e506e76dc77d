/*
Package source holds the C sources every probe is built from.

The library exports wrapped_malloc, a plain malloc wrapper. The executable
allocates through it and releases the memory with its own free, so the two
sides only cooperate when they share a C runtime heap.
*/
package source

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

// Base names of the files written by Write.
const (
	LibraryFile    = "wrapper.c"
	HeaderFile     = "wrapper.h"
	ExecutableFile = "main.c"
	ExportsFile    = "wrapper.def"
)

// BuildMacro must be defined when compiling the library so that
// wrapped_malloc is exported instead of imported.
const BuildMacro = "WRAPPER_BUILD"

//go:embed c/*
var files embed.FS

// Files describes a directory holding the probe sources.
type Files struct {
	// Dir is the directory the sources were written to.
	// Toolchains run with Dir as their working directory.
	Dir string
}

// Path returns the absolute path of the named file inside the sources directory.
func (f *Files) Path(name string) string {
	return filepath.Join(f.Dir, name)
}

// Write materialises the probe sources into dir, which must exist.
// Existing files with the same names are overwritten.
func Write(dir string) (*Files, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("source: failed to resolve %q: %w", dir, err)
	}

	for _, name := range []string{LibraryFile, HeaderFile, ExecutableFile, ExportsFile} {
		data, err := files.ReadFile("c/" + name)
		if err != nil {
			return nil, fmt.Errorf("source: missing embedded %s: %w", name, err)
		}

		if err := os.WriteFile(filepath.Join(abs, name), data, 0o644); err != nil {
			return nil, fmt.Errorf("source: failed to write %s: %w", name, err)
		}
	}

	return &Files{Dir: abs}, nil
}

// Text returns the embedded content of the named source file.
func Text(name string) ([]byte, error) {
	data, err := files.ReadFile("c/" + name)
	if err != nil {
		return nil, fmt.Errorf("source: unknown file %q: %w", name, err)
	}

	return data, nil
}
