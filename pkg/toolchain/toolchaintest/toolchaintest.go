/*
Package toolchaintest fakes compilers and probe executables for tests.

A Recorder stands in for exec.CommandContext: every command it creates
re-executes the test binary, which must route the call to HelperProcess:

	func TestHelperProcess(t *testing.T) {
		toolchaintest.HelperProcess()
	}

The helper behaves like a well-behaved compiler: it answers version queries
and writes every output file named on its command line.
*/
package toolchaintest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	envWantHelper = "ABIPROBE_WANT_HELPER_PROCESS"
	envFail       = "ABIPROBE_FAKE_FAIL"

	sleeperName = "abiprobe-sleeper"
)

// Version is reported by the fake compilers.
const Version = "13.2.0"

// Banner is printed by the fake compiler when invoked without arguments, like cl does.
const Banner = "Microsoft (R) C/C++ Optimizing Compiler Version 19.38.33133 for x64"

// A Recorder creates fake commands and records their command lines.
type Recorder struct {
	// Fail lists tool names that exit with status 1.
	Fail []string
	// Missing lists tool names that cannot be found.
	Missing []string

	mu    sync.Mutex
	calls [][]string
}

// CommandContext has the signature of exec.CommandContext.
func (r *Recorder) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	if contains(r.Missing, name) {
		return exec.CommandContext(ctx, "abiprobe-missing-tool-"+filepath.Base(name), args...)
	}

	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), envWantHelper+"=1")
	if contains(r.Fail, name) {
		cmd.Env = append(cmd.Env, envFail+"=1")
	}

	return cmd
}

// Calls returns the recorded command lines, tool name first.
func (r *Recorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([][]string(nil), r.calls...)
}

// Reset forgets the recorded command lines.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// WriteExecutable writes a fake probe executable. When run through a Recorder,
// it exits with the given code after sleeping for the given duration.
func WriteExecutable(path string, exitCode int, sleep time.Duration) error {
	return WriteExecutableWithChild(path, exitCode, sleep, 0)
}

// WriteExecutableWithChild is like WriteExecutable, but the executable first
// starts a process that shares its standard output and error and lives for
// the child duration.
func WriteExecutableWithChild(path string, exitCode int, sleep, child time.Duration) error {
	content := fmt.Sprintf("child=%s\nexit=%d\nsleep=%s\n", child, exitCode, sleep)
	return os.WriteFile(path, []byte(content), 0o755)
}

// HelperProcess emulates the tool the test binary was re-executed as.
// It returns immediately when the process is not a helper.
func HelperProcess() {
	if os.Getenv(envWantHelper) != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "helper: no command")
		os.Exit(2)
	}

	name, args := args[0], args[1:]

	if name == sleeperName {
		if len(args) > 0 {
			if d, err := time.ParseDuration(args[0]); err == nil {
				time.Sleep(d)
			}
		}
		os.Exit(0)
	}

	if os.Getenv(envFail) == "1" {
		fmt.Fprintf(os.Stderr, "%s: fatal error: simulated failure\n", filepath.Base(name))
		os.Exit(1)
	}

	if strings.HasSuffix(name, ".exe") {
		os.Exit(runExecutable(name))
	}

	switch {
	case len(args) == 0:
		fmt.Fprintln(os.Stderr, Banner)
		fmt.Fprintln(os.Stderr, "usage: cl [ option... ] filename... [ /link linkoption... ]")
		os.Exit(0)
	case contains(args, "-dumpversion"):
		fmt.Println(Version)
		os.Exit(0)
	}

	for _, out := range outputs(args) {
		if err := os.WriteFile(out, []byte("fake "+filepath.Base(name)+" output\n"), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "helper: %v\n", err)
			os.Exit(3)
		}
	}

	os.Exit(0)
}

// outputs extracts the files a compiler invocation would write.
func outputs(args []string) []string {
	var out []string
	var fe string

	for i, arg := range args {
		switch {
		case arg == "-o" && i+1 < len(args):
			out = append(out, args[i+1])
		case strings.HasPrefix(arg, "-Wl,--out-implib,"):
			out = append(out, strings.TrimPrefix(arg, "-Wl,--out-implib,"))
		case strings.HasPrefix(arg, "/Fe:"):
			fe = strings.TrimPrefix(arg, "/Fe:")
			out = append(out, fe)
		case strings.HasPrefix(arg, "/out:"):
			out = append(out, strings.TrimPrefix(arg, "/out:"))
		}
	}

	// Linking a DLL also writes its import library, as link.exe and lld-link do.
	if contains(args, "/LD") || (contains(args, "-shared") && contains(args, "-target") && strings.HasSuffix(targetOf(args), "msvc")) {
		for _, o := range out {
			if strings.HasSuffix(o, ".dll") {
				out = append(out, strings.TrimSuffix(o, ".dll")+".lib")
			}
		}
	}

	return out
}

func targetOf(args []string) string {
	for i, arg := range args {
		if arg == "-target" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func runExecutable(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "helper: %v\n", err)
		return 127
	}

	code := 0
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch key {
		case "child":
			if d, err := time.ParseDuration(value); err == nil && d > 0 {
				startChild(d)
			}
		case "exit":
			code, _ = strconv.Atoi(value)
		case "sleep":
			if d, err := time.ParseDuration(value); err == nil {
				time.Sleep(d)
			}
		}
	}

	return code
}

// startChild leaves a process behind that holds the helper's output open.
func startChild(d time.Duration) {
	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", sleeperName, d.String())
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "helper: %v\n", err)
	}
}
