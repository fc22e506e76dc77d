package msvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmaxmax/abiprobe/pkg/toolchain"
	"github.com/tmaxmax/abiprobe/pkg/toolchain/source"
	"github.com/tmaxmax/abiprobe/pkg/toolchain/toolchaintest"
)

func TestHelperProcess(t *testing.T) {
	toolchaintest.HelperProcess()
}

func useRecorder(tb testing.TB, rec *toolchaintest.Recorder) {
	tb.Helper()

	prev := execCommandContext
	execCommandContext = rec.CommandContext
	tb.Cleanup(func() { execCommandContext = prev })
}

func specFor(family toolchain.Family) toolchain.Spec {
	for _, spec := range toolchain.DefaultSpecs() {
		if spec.Family == family {
			return spec
		}
	}
	panic("no default spec for " + string(family))
}

func newToolchain(tb testing.TB, family toolchain.Family) (*Toolchain, *toolchaintest.Recorder, *source.Files) {
	tb.Helper()

	rec := &toolchaintest.Recorder{}
	useRecorder(tb, rec)

	tc, err := New(specFor(family))
	require.NoError(tb, err)
	rec.Reset()

	src, err := source.Write(tb.TempDir())
	require.NoError(tb, err)

	return tc, rec, src
}

func TestParseBanner(t *testing.T) {
	require.Equal(t, "19.38.33133", parseBanner([]byte(toolchaintest.Banner+"\r\n")))
	require.Equal(t, "19.38.33133", parseBanner([]byte("Microsoft (R) C/C++ Optimizing Compiler Version 19.38.33133")))
	require.Empty(t, parseBanner([]byte("cl: command not found")))
}

func TestMachine(t *testing.T) {
	require.Equal(t, "x64", machine("x86_64-pc-windows-msvc"))
	require.Equal(t, "x86", machine("i686-pc-windows-msvc"))
	require.Equal(t, "arm64", machine("aarch64-pc-windows-msvc"))
}

func TestNew(t *testing.T) {
	t.Run("CL", func(t *testing.T) {
		rec := &toolchaintest.Recorder{}
		useRecorder(t, rec)

		tc, err := New(specFor(toolchain.FamilyMSVC))
		require.NoError(t, err)
		require.Equal(t, "19.38.33133", tc.Info().Version)
		require.Equal(t, [][]string{{"cl"}}, rec.Calls())
	})

	t.Run("ClangMSVC", func(t *testing.T) {
		rec := &toolchaintest.Recorder{}
		useRecorder(t, rec)

		tc, err := New(specFor(toolchain.FamilyClangMSVC))
		require.NoError(t, err)
		require.Equal(t, toolchaintest.Version, tc.Info().Version)
		require.Equal(t, [][]string{{"clang", "-dumpversion"}}, rec.Calls())
	})

	t.Run("Missing", func(t *testing.T) {
		useRecorder(t, &toolchaintest.Recorder{Missing: []string{"cl"}})

		_, err := New(specFor(toolchain.FamilyMSVC))
		require.ErrorIs(t, err, toolchain.ErrToolNotFound)
	})

	t.Run("VersionQueryFails", func(t *testing.T) {
		useRecorder(t, &toolchaintest.Recorder{Fail: []string{"cl", "clang"}})

		_, err := New(specFor(toolchain.FamilyMSVC))
		require.ErrorIs(t, err, toolchain.ErrToolNotFound)

		_, err = New(specFor(toolchain.FamilyClangMSVC))
		require.ErrorIs(t, err, toolchain.ErrToolNotFound)

		var ie *toolchain.InvocationError
		require.ErrorAs(t, err, &ie)
		require.Equal(t, 1, ie.ExitCode)
	})

	t.Run("WrongFamily", func(t *testing.T) {
		_, err := New(specFor(toolchain.FamilyGCC))
		require.ErrorContains(t, err, "unsupported family")
	})
}

func TestToolchain_BuildLibrary(t *testing.T) {
	type test struct {
		name   string
		family toolchain.Family
		expect []string
	}

	tests := []test{
		{
			name:   "CL",
			family: toolchain.FamilyMSVC,
			expect: []string{"cl", "/nologo", "/Od", "/LD", "/DWRAPPER_BUILD", "/Fe:wrapper.dll", "wrapper.c"},
		},
		{
			name:   "ClangMSVC",
			family: toolchain.FamilyClangMSVC,
			expect: []string{"clang", "-target", "x86_64-windows-msvc", "-O0", "-shared", "-DWRAPPER_BUILD", "-o", "wrapper.dll", "wrapper.c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, rec, src := newToolchain(t, tt.family)

			lib, err := tc.BuildLibrary(context.Background(), src)
			require.NoError(t, err)
			require.Equal(t, [][]string{tt.expect}, rec.Calls())
			require.Equal(t, src.Path(toolchain.LibraryOutput), lib.Path)
			require.Equal(t, src.Path(toolchain.MSVCImportLibraryOutput), lib.ImportLibrary)
		})
	}
}

func TestToolchain_BuildExecutable(t *testing.T) {
	t.Run("SameABIUsesImportLibrary", func(t *testing.T) {
		tc, rec, src := newToolchain(t, toolchain.FamilyMSVC)

		lib := &toolchain.Artifact{
			Path:          src.Path(toolchain.LibraryOutput),
			ImportLibrary: src.Path(toolchain.MSVCImportLibraryOutput),
			Producer:      specFor(toolchain.FamilyClangMSVC),
		}

		exe, err := tc.BuildExecutable(context.Background(), src, lib)
		require.NoError(t, err)
		require.Equal(t, src.Path(toolchain.ExecutableOutput), exe.Path)
		require.Equal(t, [][]string{
			{"cl", "/nologo", "/Od", "/Fe:main.exe", "main.c", lib.ImportLibrary},
		}, rec.Calls())
	})

	t.Run("GNULibraryNeedsDefinition", func(t *testing.T) {
		tc, rec, src := newToolchain(t, toolchain.FamilyMSVC)

		lib := &toolchain.Artifact{
			Path:          src.Path(toolchain.LibraryOutput),
			ImportLibrary: src.Path(toolchain.GNUImportLibraryOutput),
			Producer:      specFor(toolchain.FamilyGCC),
		}

		_, err := tc.BuildExecutable(context.Background(), src, lib)
		require.NoError(t, err)
		require.Equal(t, [][]string{
			{"lib", "/nologo", "/def:wrapper.def", "/out:wrapper.lib", "/machine:x64"},
			{"cl", "/nologo", "/Od", "/Fe:main.exe", "main.c", src.Path(toolchain.MSVCImportLibraryOutput)},
		}, rec.Calls())
	})

	t.Run("ClangMSVC", func(t *testing.T) {
		tc, rec, src := newToolchain(t, toolchain.FamilyClangMSVC)

		lib := &toolchain.Artifact{Path: src.Path(toolchain.LibraryOutput), Producer: specFor(toolchain.FamilyClangGNU)}

		_, err := tc.BuildExecutable(context.Background(), src, lib)
		require.NoError(t, err)
		require.Equal(t, [][]string{
			{"llvm-lib", "/nologo", "/def:wrapper.def", "/out:wrapper.lib", "/machine:x64"},
			{"clang", "-target", "x86_64-windows-msvc", "-O0", "-o", "main.exe", "main.c", src.Path(toolchain.MSVCImportLibraryOutput)},
		}, rec.Calls())
	})

	t.Run("ArchiverMissing", func(t *testing.T) {
		tc, rec, src := newToolchain(t, toolchain.FamilyMSVC)
		rec.Missing = []string{"lib"}

		lib := &toolchain.Artifact{Path: src.Path(toolchain.LibraryOutput), Producer: specFor(toolchain.FamilyGCC)}

		_, err := tc.BuildExecutable(context.Background(), src, lib)

		var ie *toolchain.InvocationError
		require.ErrorAs(t, err, &ie)
		require.Equal(t, toolchain.StepImportLibrary, ie.Step)
		require.ErrorIs(t, err, toolchain.ErrToolNotFound)
		require.Len(t, rec.Calls(), 1, "the executable must not be built without an import library")
	})
}
