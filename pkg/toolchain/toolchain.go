package toolchain

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tmaxmax/abiprobe/pkg/logger"
	"github.com/tmaxmax/abiprobe/pkg/toolchain/source"
)

// A Toolchain builds the probe library and the probe executable.
type Toolchain interface {
	// BuildLibrary compiles and links the wrapper library from src,
	// writing its outputs next to the sources.
	BuildLibrary(ctx context.Context, src *source.Files) (*Artifact, error)
	// BuildExecutable compiles the caller from src and links it against lib,
	// which may have been produced by any toolchain.
	BuildExecutable(ctx context.Context, src *source.Files, lib *Artifact) (*Artifact, error)
	// Spec returns the definition the toolchain was constructed from.
	Spec() Spec
	// Info returns some information about the underlying compiler.
	Info() Info
}

// Info holds some information about the underlying compiler.
type Info struct {
	// Name of the compiler.
	Name string
	// Path of the compiler's executable.
	Path string
	// Version number of the compiler.
	Version string
}

// Constructor initializes a Toolchain for the given definition.
// It is expected to fail if the compiler cannot be invoked.
type Constructor func(spec Spec) (Toolchain, error)

var (
	drivers      = map[Family]Constructor{}
	driversMutex sync.RWMutex
)

// RegisterDriver makes a Toolchain implementation available for a family.
// If a driver for the family is already registered or the constructor is nil,
// this function panics.
func RegisterDriver(family Family, constructor Constructor) {
	driversMutex.Lock()
	defer driversMutex.Unlock()

	if _, err := ParseFamily(string(family)); err != nil {
		panic(fmt.Sprintf("toolchain: cannot register driver: %v", err))
	}

	if drivers[family] != nil {
		panic(fmt.Sprintf("toolchain: driver for %q is already registered", family))
	}

	if constructor == nil {
		panic(fmt.Sprintf("toolchain: constructor provided for %q is nil", family))
	}

	drivers[family] = constructor
}

// New validates spec and initializes a Toolchain with the driver registered for its family.
func New(spec Spec) (Toolchain, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	driversMutex.RLock()
	constructor := drivers[spec.Family]
	driversMutex.RUnlock()

	if constructor == nil {
		return nil, fmt.Errorf("toolchain: missing driver for %q, forgotten import?", spec.Family)
	}

	tc, err := constructor(spec)
	if err != nil {
		return nil, fmt.Errorf("toolchain: failed to initialize %q: %w", spec.ID, err)
	}

	return tc, nil
}

// Detect returns the toolchains among specs that could be constructed, keeping
// their order. Specs that fail to construct are logged and skipped.
func Detect(specs []Spec) []Toolchain {
	var found []Toolchain

	for _, spec := range specs {
		tc, err := New(spec)
		if err != nil {
			logger.Get().DebugWith("toolchain unavailable", "toolchain", spec.ID, "error", err)
			continue
		}

		found = append(found, tc)
	}

	return found
}

func isValidID(id string) bool {
	// IDs name directories, join CLI lists and fill table cells.
	return id != "" && !strings.ContainsAny(id, string([]rune{os.PathSeparator, os.PathListSeparator, '/', ' ', ',', '|', '`', '\t', '\n', '\r'}))
}
