package toolchain

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/tmaxmax/abiprobe/pkg/logger"
)

// ErrToolNotFound is wrapped by invocation errors caused by a tool missing from the host
// or by a failing version query.
var ErrToolNotFound = errors.New("tool not found")

// Step names the stage of a build an invocation belongs to.
type Step string

const (
	StepVersion           Step = "version"
	StepCompileLibrary    Step = "compile-library"
	StepImportLibrary     Step = "import-library"
	StepCompileExecutable Step = "compile-executable"
)

// maxOutputTail bounds the amount of tool output kept in an InvocationError.
const maxOutputTail = 4 << 10

// InvocationError is returned when an external tool is missing or fails.
type InvocationError struct {
	// Toolchain is the ID of the toolchain the tool belongs to.
	Toolchain string
	// Step that failed.
	Step Step
	// Command is the full command line.
	Command []string
	// ExitCode of the tool, or -1 if it did not run to completion.
	ExitCode int
	// Output is the tail of the tool's combined standard output and error.
	Output []byte
	// Err is the underlying error.
	Err error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "toolchain: %s: %s failed", e.Toolchain, e.Step)
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if out := bytes.TrimSpace(e.Output); len(out) > 0 {
		if i := bytes.IndexByte(out, '\n'); i >= 0 {
			out = out[:i]
		}
		fmt.Fprintf(&b, " (%s)", out)
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// CommandLine returns the command as a single space separated string.
func (e *InvocationError) CommandLine() string {
	return strings.Join(e.Command, " ")
}

// Run executes cmd, capturing its combined output. Any failure is returned
// as an *InvocationError attributed to the given toolchain and step.
func Run(cmd *exec.Cmd, toolchainID string, step Step) ([]byte, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	log := logger.Get().With("toolchain", toolchainID, "step", step)
	log.DebugWith("invoking tool", "command", strings.Join(cmd.Args, " "), "dir", cmd.Dir)

	err := cmd.Run()
	if err == nil {
		log.DebugWith("tool finished", "output", out.String())
		return out.Bytes(), nil
	}

	ie := &InvocationError{
		Toolchain: toolchainID,
		Step:      step,
		Command:   cmd.Args,
		ExitCode:  -1,
		Output:    tail(out.Bytes(), maxOutputTail),
		Err:       err,
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		ie.ExitCode = exitErr.ExitCode()
		if step == StepVersion {
			// A compiler that cannot report its version is unusable.
			ie.Err = fmt.Errorf("%w: %w", ErrToolNotFound, err)
		}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		ie.Err = fmt.Errorf("%w: %w", ErrToolNotFound, err)
	}

	log.DebugWith("tool failed", "error", err, "output", out.String())

	return out.Bytes(), ie
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return append([]byte(nil), b...)
	}
	return append([]byte(nil), b[len(b)-n:]...)
}
