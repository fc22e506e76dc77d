/*
Package inspect guesses which C runtime and ABI family a Windows binary
targets by reading its PE metadata.

There is no marker a toolchain is obliged to leave in its output, so the
classification is a heuristic: every marker found is recorded as evidence
with a weight, and a family is only reported when the evidence clearly
favours it. The strongest confidence ever reported is Likely. Anything
else, including files that are not PE images, is classified as unknown.
*/
package inspect

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

// Markers are the raw facts read from a binary.
type Markers struct {
	// Machine is the architecture from the COFF header, as a triplet component.
	Machine string
	// DLL reports whether the image is a dynamic-link library.
	DLL bool
	// Imports are the lowercase names of the imported DLLs, sorted.
	Imports []string
	// Exports are the names exported by the image, sorted.
	Exports []string
	// Sections are the section names in file order.
	Sections []string
	// RichHeader reports a Rich header between the DOS stub and the PE header.
	RichHeader bool
	// COFFSymbols reports a COFF symbol table.
	COFFSymbols bool
	// LinkerMajor is the major linker version from the optional header.
	LinkerMajor uint8
}

var errNotPE = errors.New("not a PE image")

// ReadMarkers parses data as a PE image.
func ReadMarkers(data []byte) (*Markers, error) {
	if len(data) < 0x40 || data[0] != 'M' || data[1] != 'Z' {
		return nil, errNotPE
	}

	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotPE, err)
	}
	defer f.Close()

	m := &Markers{
		Machine:     machineName(f.FileHeader.Machine),
		DLL:         f.FileHeader.Characteristics&pe.IMAGE_FILE_DLL != 0,
		RichHeader:  hasRichHeader(data),
		COFFSymbols: f.FileHeader.PointerToSymbolTable != 0 && f.FileHeader.NumberOfSymbols > 0,
	}

	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		m.LinkerMajor = oh.MajorLinkerVersion
	case *pe.OptionalHeader32:
		m.LinkerMajor = oh.MajorLinkerVersion
	}

	for _, s := range f.Sections {
		m.Sections = append(m.Sections, s.Name)
	}

	// Imports and exports are best effort: a malformed table only hides markers.
	if symbols, err := f.ImportedSymbols(); err == nil {
		m.Imports = importedLibraries(symbols)
	}
	m.Exports = exportedNames(f)

	return m, nil
}

func machineName(machine uint16) string {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "x86_64"
	case pe.IMAGE_FILE_MACHINE_I386:
		return "i686"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "aarch64"
	default:
		return fmt.Sprintf("%#04x", machine)
	}
}

// hasRichHeader looks for the "Rich" signature link.exe writes after the DOS stub.
func hasRichHeader(data []byte) bool {
	lfanew := int(binary.LittleEndian.Uint32(data[0x3c:]))
	if lfanew <= 0x40 || lfanew > len(data) {
		return false
	}
	return bytes.Contains(data[0x40:lfanew], []byte("Rich"))
}

// importedLibraries turns the "symbol:library" entries of debug/pe into library names.
func importedLibraries(symbols []string) []string {
	seen := map[string]bool{}
	var libs []string

	for _, s := range symbols {
		i := strings.LastIndexByte(s, ':')
		if i < 0 {
			continue
		}

		lib := strings.ToLower(s[i+1:])
		if lib == "" || seen[lib] {
			continue
		}

		seen[lib] = true
		libs = append(libs, lib)
	}

	sort.Strings(libs)
	return libs
}

const maxExports = 1 << 12

func exportedNames(f *pe.File) []string {
	var dd pe.DataDirectory

	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			dd = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]
		}
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			dd = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT]
		}
	}

	if dd.VirtualAddress == 0 {
		return nil
	}

	img := &image{file: f, data: map[*pe.Section][]byte{}}

	dir, ok := img.read(dd.VirtualAddress, 40)
	if !ok {
		return nil
	}

	count := binary.LittleEndian.Uint32(dir[24:])
	names := binary.LittleEndian.Uint32(dir[32:])
	if count > maxExports {
		count = maxExports
	}

	var out []string
	for i := uint32(0); i < count; i++ {
		ptr, ok := img.read(names+4*i, 4)
		if !ok {
			break
		}

		if name, ok := img.cstring(binary.LittleEndian.Uint32(ptr)); ok {
			out = append(out, name)
		}
	}

	sort.Strings(out)
	return out
}

// image resolves relative virtual addresses to section contents.
type image struct {
	file *pe.File
	data map[*pe.Section][]byte
}

// at returns the section content from rva to the end of its section.
func (img *image) at(rva uint32) ([]byte, bool) {
	for _, s := range img.file.Sections {
		if rva < s.VirtualAddress || rva-s.VirtualAddress >= s.Size {
			continue
		}

		data, ok := img.data[s]
		if !ok {
			var err error
			if data, err = s.Data(); err != nil {
				return nil, false
			}
			img.data[s] = data
		}

		off := rva - s.VirtualAddress
		if uint64(off) >= uint64(len(data)) {
			return nil, false
		}
		return data[off:], true
	}

	return nil, false
}

func (img *image) read(rva, n uint32) ([]byte, bool) {
	data, ok := img.at(rva)
	if !ok || uint64(len(data)) < uint64(n) {
		return nil, false
	}
	return data[:n], true
}

func (img *image) cstring(rva uint32) (string, bool) {
	data, ok := img.at(rva)
	if !ok {
		return "", false
	}

	end := bytes.IndexByte(data, 0)
	if end <= 0 {
		return "", false
	}
	return string(data[:end]), true
}

// File reads and classifies the binary at path. It only fails if the file
// cannot be read; unrecognised content is classified as unknown.
func File(path string) (*Classification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inspect: failed to read %s: %w", path, err)
	}

	c := Bytes(data)
	c.Path = path
	return c, nil
}

// Artifact classifies a library produced by a toolchain.
func Artifact(a *toolchain.Artifact) (*Classification, error) {
	return File(a.Path)
}

// Bytes classifies the given image content.
func Bytes(data []byte) *Classification {
	m, err := ReadMarkers(data)
	if err != nil {
		return &Classification{ABI: toolchain.ABIUnknown, Reason: err.Error()}
	}

	return Classify(m)
}
