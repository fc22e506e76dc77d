package toolchain

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ArtifactKind distinguishes libraries from executables.
type ArtifactKind int

const (
	KindLibrary ArtifactKind = iota
	KindExecutable
)

func (k ArtifactKind) String() string {
	if k == KindExecutable {
		return "executable"
	}
	return "library"
}

// Output file names shared by all drivers. Every toolchain writes to the
// same names, so outputs of a previous build must be removed first.
const (
	LibraryOutput           = "wrapper.dll"
	MSVCImportLibraryOutput = "wrapper.lib"
	GNUImportLibraryOutput  = "libwrapper.dll.a"
	ExecutableOutput        = "main.exe"
)

// An Artifact is a file produced by a toolchain.
type Artifact struct {
	// Path of the produced file.
	Path string
	// Kind of the produced file.
	Kind ArtifactKind
	// Producer is the toolchain that built the artifact.
	Producer Spec
	// ImportLibrary is the path of the import library written alongside
	// a shared library, if the toolchain wrote one.
	ImportLibrary string
	// Size of the file in bytes.
	Size int64
}

// Collect describes a file a toolchain claims to have produced.
// It fails if the file does not exist.
func Collect(producer Spec, kind ArtifactKind, path string) (*Artifact, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("toolchain: %s did not produce %s %s: %w", producer.ID, kind, path, err)
	}

	return &Artifact{
		Path:     path,
		Kind:     kind,
		Producer: producer,
		Size:     stat.Size(),
	}, nil
}

// Exists reports whether the file at path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RemoveStale deletes the given files, ignoring the ones that do not exist.
func RemoveStale(paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("toolchain: failed to remove stale %s: %w", p, err)
		}
	}

	return nil
}
