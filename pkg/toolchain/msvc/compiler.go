package msvc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tmaxmax/abiprobe/pkg/toolchain"
	"github.com/tmaxmax/abiprobe/pkg/toolchain/source"
)

type syntax int

const (
	syntaxCL syntax = iota
	syntaxClang
)

func parseFlags(flags *toolchain.Flags, s syntax) []string {
	var out []string

	flags.Range(func(flag string, values []string, isToggle bool) {
		if s == syntaxClang {
			if isToggle {
				out = append(out, "-"+flag)
				return
			}

			for _, value := range values {
				switch flag {
				case "O", "D":
					out = append(out, "-"+flag+value)
				default:
					out = append(out, "-"+flag, value)
				}
			}
			return
		}

		if isToggle {
			out = append(out, "/"+flag)
			return
		}

		for _, value := range values {
			switch flag {
			case "D", "O":
				out = append(out, "/"+flag+value)
			default:
				out = append(out, "/"+flag+":"+value)
			}
		}
	})

	return out
}

// machine maps a target triplet to the /machine option of the archiver.
func machine(triple string) string {
	arch, _, _ := strings.Cut(triple, "-")
	switch arch {
	case "i386", "i486", "i586", "i686", "x86":
		return "x86"
	case "aarch64", "arm64":
		return "arm64"
	default:
		return "x64"
	}
}

// parseBanner extracts the version from the banner cl prints when run without arguments.
func parseBanner(out []byte) string {
	const marker = "Version "

	i := bytes.Index(out, []byte(marker))
	if i < 0 {
		return ""
	}

	rest := out[i+len(marker):]
	if end := bytes.IndexAny(rest, " \r\n"); end >= 0 {
		rest = rest[:end]
	}

	return string(rest)
}

// Toolchain drives cl or clang in MSVC mode.
type Toolchain struct {
	spec   toolchain.Spec
	info   toolchain.Info
	syntax syntax
}

var _ toolchain.Toolchain = (*Toolchain)(nil)

// New creates an MSVC style toolchain. It queries the compiler version,
// so it fails if the compiler cannot be run.
func New(spec toolchain.Spec) (*Toolchain, error) {
	t := &Toolchain{spec: spec}

	switch spec.Family {
	case toolchain.FamilyMSVC:
		t.syntax = syntaxCL
	case toolchain.FamilyClangMSVC:
		t.syntax = syntaxClang
	default:
		return nil, fmt.Errorf("msvc: unsupported family %q", spec.Family)
	}

	var cmd *exec.Cmd
	if t.syntax == syntaxCL {
		cmd = execCommandContext(context.Background(), spec.Compiler)
	} else {
		cmd = execCommandContext(context.Background(), spec.Compiler, "-dumpversion")
	}

	out, err := toolchain.Run(cmd, spec.ID, toolchain.StepVersion)

	var version string
	if t.syntax == syntaxCL {
		// cl reports its version only in the banner, and may exit with a
		// nonzero status when given no input files.
		version = parseBanner(out)
		var ie *toolchain.InvocationError
		if version != "" && errors.As(err, &ie) && ie.ExitCode >= 0 {
			err = nil
		}
	} else {
		version = string(bytes.TrimSpace(out))
	}

	if err != nil {
		return nil, fmt.Errorf("msvc: failed to initialize compiler: %w", err)
	}

	t.info = toolchain.Info{
		Name:    spec.Compiler,
		Path:    cmd.Path,
		Version: version,
	}

	return t, nil
}

func (t *Toolchain) baseFlags() *toolchain.Flags {
	flags := &toolchain.Flags{}
	if t.syntax == syntaxCL {
		flags.Toggle("nologo")
		flags.Toggle("Od")
	} else {
		flags.Set("target", t.spec.TargetTriple())
		flags.Set("O", "0")
	}
	return flags
}

func (t *Toolchain) setOutput(flags *toolchain.Flags, name string) {
	if t.syntax == syntaxCL {
		flags.Set("Fe", name)
	} else {
		flags.Set("o", name)
	}
}

func (t *Toolchain) command(ctx context.Context, src *source.Files, flags *toolchain.Flags, inputs ...string) *exec.Cmd {
	args := parseFlags(flags, t.syntax)
	args = append(args, inputs...)
	args = append(args, t.spec.ExtraArgs...)

	cmd := execCommandContext(ctx, t.spec.Compiler, args...)
	cmd.Dir = src.Dir
	return cmd
}

// BuildLibrary builds wrapper.dll. The linker writes wrapper.lib next to it.
func (t *Toolchain) BuildLibrary(ctx context.Context, src *source.Files) (*toolchain.Artifact, error) {
	dll := src.Path(toolchain.LibraryOutput)
	implib := src.Path(toolchain.MSVCImportLibraryOutput)

	err := toolchain.RemoveStale(dll, implib, src.Path("wrapper.exp"), src.Path("wrapper.obj"),
		src.Path(toolchain.GNUImportLibraryOutput))
	if err != nil {
		return nil, err
	}

	flags := t.baseFlags()
	if t.syntax == syntaxCL {
		flags.Toggle("LD")
	} else {
		flags.Toggle("shared")
	}
	flags.Set("D", source.BuildMacro)
	t.setOutput(flags, toolchain.LibraryOutput)

	cmd := t.command(ctx, src, flags, source.LibraryFile)
	if _, err := toolchain.Run(cmd, t.spec.ID, toolchain.StepCompileLibrary); err != nil {
		return nil, err
	}

	lib, err := toolchain.Collect(t.spec, toolchain.KindLibrary, dll)
	if err != nil {
		return nil, err
	}

	if toolchain.Exists(implib) {
		lib.ImportLibrary = implib
	}

	return lib, nil
}

// importLibrary returns an import library in Microsoft format for lib,
// generating one from the module definition file when lib has none.
func (t *Toolchain) importLibrary(ctx context.Context, src *source.Files, lib *toolchain.Artifact) (string, error) {
	if lib.Producer.Family.ABI() == toolchain.ABIMSVC && lib.ImportLibrary != "" {
		return lib.ImportLibrary, nil
	}

	implib := src.Path(toolchain.MSVCImportLibraryOutput)
	if err := toolchain.RemoveStale(implib, src.Path("wrapper.exp")); err != nil {
		return "", err
	}

	flags := &toolchain.Flags{}
	flags.Toggle("nologo")
	flags.Set("def", source.ExportsFile)
	flags.Set("out", toolchain.MSVCImportLibraryOutput)
	flags.Set("machine", machine(t.spec.TargetTriple()))

	cmd := execCommandContext(ctx, t.spec.Archiver, parseFlags(flags, syntaxCL)...)
	cmd.Dir = src.Dir

	if _, err := toolchain.Run(cmd, t.spec.ID, toolchain.StepImportLibrary); err != nil {
		return "", err
	}

	if !toolchain.Exists(implib) {
		return "", &toolchain.InvocationError{
			Toolchain: t.spec.ID,
			Step:      toolchain.StepImportLibrary,
			Command:   cmd.Args,
			ExitCode:  -1,
			Err:       fmt.Errorf("%s was not written", toolchain.MSVCImportLibraryOutput),
		}
	}

	return implib, nil
}

// BuildExecutable builds main.exe against lib.
func (t *Toolchain) BuildExecutable(ctx context.Context, src *source.Files, lib *toolchain.Artifact) (*toolchain.Artifact, error) {
	exe := src.Path(toolchain.ExecutableOutput)

	if err := toolchain.RemoveStale(exe, src.Path("main.obj")); err != nil {
		return nil, err
	}

	implib, err := t.importLibrary(ctx, src, lib)
	if err != nil {
		return nil, err
	}

	flags := t.baseFlags()
	t.setOutput(flags, toolchain.ExecutableOutput)

	cmd := t.command(ctx, src, flags, source.ExecutableFile, implib)
	if _, err := toolchain.Run(cmd, t.spec.ID, toolchain.StepCompileExecutable); err != nil {
		return nil, err
	}

	return toolchain.Collect(t.spec, toolchain.KindExecutable, exe)
}

func (t *Toolchain) Spec() toolchain.Spec {
	return t.spec
}

func (t *Toolchain) Info() toolchain.Info {
	return t.info
}
