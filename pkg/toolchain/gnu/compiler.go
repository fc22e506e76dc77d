package gnu

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/tmaxmax/abiprobe/pkg/toolchain"
	"github.com/tmaxmax/abiprobe/pkg/toolchain/source"
)

func parseFlags(flags *toolchain.Flags) []string {
	const flagStart = "-"
	var out []string

	flags.Range(func(flag string, values []string, isToggle bool) {
		if isToggle {
			out = append(out, flagStart+flag)
			return
		}

		for _, value := range values {
			switch flag {
			case "O", "D", "L", "l", "I":
				out = append(out, flagStart+flag+value)
			case "Wl":
				out = append(out, flagStart+flag+","+value)
			default:
				out = append(out, flagStart+flag, value)
			}
		}
	})

	return out
}

// Toolchain drives gcc or clang in MinGW mode.
type Toolchain struct {
	spec toolchain.Spec
	info toolchain.Info
}

var _ toolchain.Toolchain = (*Toolchain)(nil)

// New creates a GNU style toolchain. It queries the compiler version,
// so it fails if the compiler cannot be run.
func New(spec toolchain.Spec) (*Toolchain, error) {
	if spec.Family.ABI() != toolchain.ABIGNU {
		return nil, fmt.Errorf("gnu: unsupported family %q", spec.Family)
	}

	cmd := execCommandContext(context.Background(), spec.Compiler, "-dumpversion")
	version, err := toolchain.Run(cmd, spec.ID, toolchain.StepVersion)
	if err != nil {
		return nil, fmt.Errorf("gnu: failed to initialize compiler: %w", err)
	}

	info := toolchain.Info{
		Name:    spec.Compiler,
		Path:    cmd.Path,
		Version: string(bytes.TrimSpace(version)),
	}

	return &Toolchain{spec: spec, info: info}, nil
}

func (t *Toolchain) baseFlags() *toolchain.Flags {
	flags := &toolchain.Flags{}
	if t.spec.Family == toolchain.FamilyClangGNU {
		flags.Set("target", t.spec.TargetTriple())
	}
	flags.Set("O", "0")
	return flags
}

func (t *Toolchain) command(ctx context.Context, src *source.Files, flags *toolchain.Flags, inputs ...string) *exec.Cmd {
	args := parseFlags(flags)
	args = append(args, inputs...)
	args = append(args, t.spec.ExtraArgs...)

	cmd := execCommandContext(ctx, t.spec.Compiler, args...)
	cmd.Dir = src.Dir
	return cmd
}

// BuildLibrary builds wrapper.dll together with a GNU import library.
func (t *Toolchain) BuildLibrary(ctx context.Context, src *source.Files) (*toolchain.Artifact, error) {
	dll := src.Path(toolchain.LibraryOutput)
	implib := src.Path(toolchain.GNUImportLibraryOutput)

	if err := toolchain.RemoveStale(dll, implib, src.Path(toolchain.MSVCImportLibraryOutput)); err != nil {
		return nil, err
	}

	flags := t.baseFlags()
	flags.Toggle("shared")
	flags.Set("D", source.BuildMacro)
	flags.Set("o", toolchain.LibraryOutput)
	flags.Set("Wl", "--out-implib,"+toolchain.GNUImportLibraryOutput)

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

// BuildExecutable builds main.exe against lib. GNU linkers accept both
// import library formats and bare DLLs, so lib is used as produced.
func (t *Toolchain) BuildExecutable(ctx context.Context, src *source.Files, lib *toolchain.Artifact) (*toolchain.Artifact, error) {
	exe := src.Path(toolchain.ExecutableOutput)

	if err := toolchain.RemoveStale(exe); err != nil {
		return nil, err
	}

	link := lib.ImportLibrary
	if link == "" {
		link = lib.Path
	}

	flags := t.baseFlags()
	flags.Set("o", toolchain.ExecutableOutput)

	cmd := t.command(ctx, src, flags, source.ExecutableFile, link)
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
