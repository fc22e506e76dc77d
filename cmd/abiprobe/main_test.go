package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tmaxmax/abiprobe/pkg/history"
	"github.com/tmaxmax/abiprobe/pkg/probe"
	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Usage(t *testing.T) {
	_, stderr, err := execute(t)
	require.ErrorIs(t, err, errUsage)
	require.Contains(t, stderr, "Usage: abiprobe")

	_, stderr, err = execute(t, "build")
	require.ErrorIs(t, err, errUsage)
	require.Contains(t, stderr, `unknown command "build"`)

	stdout, _, err := execute(t, "help")
	require.NoError(t, err)
	require.Contains(t, stdout, "probe")

	_, _, err = execute(t, "probe", "-h")
	require.True(t, errors.Is(err, flag.ErrHelp))

	_, _, err = execute(t, "probe", "--no-such-flag")
	require.ErrorIs(t, err, errUsage)
}

func TestRunProbe_InvalidArguments(t *testing.T) {
	type test struct {
		name string
		args []string
	}

	tests := []test{
		{name: "UnknownToolchain", args: []string{"--toolchains=gcc,tcc"}},
		{name: "UnknownFormat", args: []string{"--format=pdf"}},
		{name: "Repeat", args: []string{"--repeat=0"}},
		{name: "Parallel", args: []string{"--parallel=0"}},
		{name: "Positional", args: []string{"gcc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, append([]string{"probe"}, tt.args...)...)
			require.ErrorIs(t, err, errUsage)
		})
	}
}

func writeMissingToolchains(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "abiprobe.yaml")
	content := "toolchains:\n" +
		"  - id: gcc\n    family: gcc\n    compiler: " + filepath.Join(dir, "missing-gcc") + "\n" +
		"  - id: msvc\n    family: msvc\n    compiler: " + filepath.Join(dir, "missing-cl") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunProbe_MissingCompiler(t *testing.T) {
	_, _, err := execute(t, "probe", "--config", writeMissingToolchains(t))
	require.Error(t, err)
	require.NotErrorIs(t, err, errUsage)
	require.ErrorIs(t, err, toolchain.ErrToolNotFound)
}

func TestRunToolchains(t *testing.T) {
	stdout, _, err := execute(t, "toolchains", "--config", writeMissingToolchains(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.True(t, strings.HasPrefix(lines[1], "gcc "))
	require.Contains(t, lines[1], "unavailable")
	require.Contains(t, lines[2], "x86_64-pc-windows-msvc")
}

func TestRunInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libwrapper.so")
	require.NoError(t, os.WriteFile(path, []byte("\x7fELF\x02\x01\x01"), 0o644))

	stdout, _, err := execute(t, "inspect", path)
	require.NoError(t, err)
	require.Contains(t, stdout, path+" (7B)")
	require.Contains(t, stdout, "classification: unknown (not a PE image)")
	require.Contains(t, stdout, "heuristic")

	stdout, _, err = execute(t, "inspect", "--json", path)
	require.NoError(t, err)
	require.Contains(t, stdout, `"abi": "unknown"`)

	_, _, err = execute(t, "inspect")
	require.ErrorIs(t, err, errUsage)

	_, _, err = execute(t, "inspect", filepath.Join(t.TempDir(), "missing.dll"))
	require.Error(t, err)
}

func TestRunHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	store, err := history.Open(db)
	require.NoError(t, err)

	m := probe.NewMatrix(toolchain.DefaultSpecs()[:2])
	m.Started = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for p := range m.Cells {
		for c := range m.Cells[p] {
			m.Cells[p][c].Outcome = probe.OutcomeHeapCorruption
			m.Cells[p][c].ExitCode = -1073740940
		}
	}
	m.Cells[0][0].Outcome = probe.OutcomeSuccess
	m.Cells[0][0].ExitCode = 0

	id, err := store.Save(context.Background(), m)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	stdout, _, err := execute(t, "history", "--history", db)
	require.NoError(t, err)
	require.Contains(t, stdout, id.String())
	require.Contains(t, stdout, "gcc,msvc")
	require.Contains(t, stdout, "success=1 heap-corruption=3")

	stdout, _, err = execute(t, "history", "--history", db, "--show", id.String(), "--format", "markdown")
	require.NoError(t, err)
	require.Contains(t, stdout, "| **`gcc`** | ok | **HEAP CORRUPTION** |")

	_, _, err = execute(t, "history", "--history", db, "--show", "not-a-uuid")
	require.ErrorIs(t, err, errUsage)

	_, _, err = execute(t, "history", "--history", db, "--show", "01890a5d-ac96-774b-bcce-b302099a8057")
	require.ErrorIs(t, err, history.ErrNotFound)

	_, _, err = execute(t, "history")
	require.ErrorIs(t, err, errUsage)
}
