package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tmaxmax/abiprobe/pkg/inspect"
	"github.com/tmaxmax/abiprobe/pkg/logger"
	"github.com/tmaxmax/abiprobe/pkg/toolchain"
	"github.com/tmaxmax/abiprobe/pkg/toolchain/source"
)

var execCommandContext = exec.CommandContext

// Details recorded for pairs that did not run to completion.
const (
	DetailTimedOut  = "timed out"
	DetailCancelled = "cancelled"
)

// waitDelay bounds how long a killed probe executable may keep its output
// pipes open through processes it started.
const waitDelay = time.Second

// A Runner probes every ordered pair of its toolchains.
type Runner struct {
	// Toolchains are used both as producers and consumers.
	Toolchains []toolchain.Toolchain
	// ScratchDir holds one subdirectory per pair. A temporary directory
	// is used if it is empty.
	ScratchDir string
	// Timeout bounds every build step and every probe execution.
	// Zero means no timeout.
	Timeout time.Duration
	// Parallelism is the number of pairs probed at once. Values below 2
	// probe the pairs sequentially.
	Parallelism int
	// FailFast cancels the remaining pairs on the first build failure.
	FailFast bool
	// Inspect classifies the library each producer builds.
	Inspect bool
	// KeepArtifacts leaves the pair directories on disk after the run.
	KeepArtifacts bool
	// HeapCorruptionStatus is the exit status classified as heap corruption.
	// StatusHeapCorruption is used if it is zero.
	HeapCorruptionStatus uint32
	// Logger receives progress messages. The global logger is used if it is nil.
	Logger *logger.Logger
}

// Run probes all pairs in row-major order and returns the resulting matrix.
// The matrix is returned even when the run is cancelled, with the pairs that
// were not attempted marked as skipped. In that case the error is either the
// build failure that triggered FailFast or the cancellation cause.
func (r *Runner) Run(ctx context.Context) (*Matrix, error) {
	if len(r.Toolchains) == 0 {
		return nil, errors.New("probe: no toolchains to probe")
	}

	specs := make([]toolchain.Spec, 0, len(r.Toolchains))
	for _, tc := range r.Toolchains {
		specs = append(specs, tc.Spec())
	}

	scratch := r.ScratchDir
	if scratch == "" {
		dir, err := os.MkdirTemp("", "abiprobe-")
		if err != nil {
			return nil, fmt.Errorf("probe: failed to create scratch directory: %w", err)
		}
		scratch = dir
	} else if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("probe: failed to create scratch directory: %w", err)
	}

	log := r.log()
	m := NewMatrix(specs)
	m.Started = time.Now()
	m.Host = describeHost(ctx)
	if r.Inspect {
		m.Libraries = make([]*inspect.Classification, len(specs))
	}

	log.InfoWith("starting probe run", "toolchains", m.Key(), "pairs", len(specs)*len(specs), "scratch", scratch)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Parallelism, 1))

	for p := range r.Toolchains {
		for c := range r.Toolchains {
			g.Go(func() error {
				if gctx.Err() != nil {
					m.Cells[p][c].Detail = DetailCancelled
					return nil
				}

				res, lib, err := r.probe(gctx, scratch, r.Toolchains[p], r.Toolchains[c], r.Inspect && p == c)
				m.Cells[p][c] = res
				if lib != nil {
					m.Libraries[p] = lib
				}

				if err != nil && r.FailFast {
					return err
				}
				return nil
			})
		}
	}

	err := g.Wait()
	m.Duration = time.Since(m.Started)

	if !r.KeepArtifacts {
		r.cleanup(scratch)
	}

	counts := m.Counts()
	log.InfoWith("probe run finished",
		"duration", m.Duration,
		"success", counts[OutcomeSuccess],
		"heapCorruption", counts[OutcomeHeapCorruption],
		"otherCrash", counts[OutcomeOtherCrash],
		"buildFailed", counts[OutcomeBuildFailed],
		"skipped", counts[OutcomeSkipped],
	)

	if err != nil {
		return m, fmt.Errorf("probe: run stopped: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return m, fmt.Errorf("probe: run cancelled: %w", err)
	}

	return m, nil
}

// probe runs one pair. The pair's directory is cleared before anything else,
// so that nothing left by an earlier or interrupted pair is picked up.
// The returned error is non-nil only when the pair could not be built.
func (r *Runner) probe(ctx context.Context, scratch string, producer, consumer toolchain.Toolchain, classify bool) (Result, *inspect.Classification, error) {
	res := Result{Producer: producer.Spec(), Consumer: consumer.Spec()}
	log := r.log().With("producer", res.Producer.ID, "consumer", res.Consumer.ID)
	start := time.Now()

	// Set once the library is classified and kept if a later step fails.
	var cls *inspect.Classification

	fail := func(err error) (Result, *inspect.Classification, error) {
		res.Duration = time.Since(start)

		if ctx.Err() != nil {
			res.Outcome = OutcomeSkipped
			res.Detail = DetailCancelled
			log.InfoWith("pair cancelled")
			return res, cls, nil
		}

		res.Outcome = OutcomeBuildFailed
		res.Detail = buildFailureDetail(err)
		log.WarnWith("pair failed to build", "error", err)
		return res, cls, err
	}

	log.InfoWith("probing pair")

	dir := filepath.Join(scratch, pairDir(res.Producer, res.Consumer))
	if err := os.RemoveAll(dir); err != nil {
		return fail(fmt.Errorf("probe: failed to clear %s: %w", dir, err))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("probe: failed to create %s: %w", dir, err))
	}

	src, err := source.Write(dir)
	if err != nil {
		return fail(err)
	}

	lib, err := r.step(ctx, func(ctx context.Context) (*toolchain.Artifact, error) {
		return producer.BuildLibrary(ctx, src)
	})
	if err != nil {
		return fail(err)
	}

	if classify {
		if cls, err = inspect.Artifact(lib); err != nil {
			log.WarnWith("failed to inspect library", "error", err)
		} else {
			log.DebugWith("library classified", "classification", cls.String())
		}
	}

	exe, err := r.step(ctx, func(ctx context.Context) (*toolchain.Artifact, error) {
		return consumer.BuildExecutable(ctx, src, lib)
	})
	if err != nil {
		return fail(err)
	}

	code, detail := r.execute(ctx, exe.Path)
	res.Duration = time.Since(start)

	if ctx.Err() != nil {
		res.Outcome = OutcomeSkipped
		res.Detail = DetailCancelled
		return res, cls, nil
	}

	res.ExitCode = code
	res.Outcome = Classify(code, r.heapStatus())
	res.Detail = detail
	if res.Outcome == OutcomeOtherCrash && detail == "" {
		res.Detail = fmt.Sprintf("exit status %#08x", uint32(code))
	}

	log.InfoWith("pair finished", "outcome", res.Outcome, "exitCode", res.ExitCode, "duration", res.Duration)

	return res, cls, nil
}

func (r *Runner) step(ctx context.Context, build func(context.Context) (*toolchain.Artifact, error)) (*toolchain.Artifact, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return build(ctx)
}

// execute runs the probe executable in a fresh process and returns its
// normalized exit code, with a detail for abnormal terminations.
func (r *Runner) execute(ctx context.Context, path string) (int32, string) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var out bytes.Buffer
	cmd := execCommandContext(ctx, path)
	cmd.Dir = filepath.Dir(path)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, ""
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return -1, DetailTimedOut
	case errors.As(err, &exitErr):
		code := normalizeExitCode(exitErr.ExitCode())
		if code == -1 {
			return code, exitErr.Error()
		}
		return code, firstLine(out.Bytes())
	default:
		return -1, fmt.Sprintf("failed to start: %v", err)
	}
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func (r *Runner) cleanup(scratch string) {
	if r.ScratchDir == "" {
		if err := os.RemoveAll(scratch); err != nil {
			r.log().WarnWith("failed to remove scratch directory", "dir", scratch, "error", err)
		}
		return
	}

	for _, p := range r.Toolchains {
		for _, c := range r.Toolchains {
			dir := filepath.Join(scratch, pairDir(p.Spec(), c.Spec()))
			if err := os.RemoveAll(dir); err != nil {
				r.log().WarnWith("failed to remove pair directory", "dir", dir, "error", err)
			}
		}
	}
}

func (r *Runner) heapStatus() uint32 {
	if r.HeapCorruptionStatus != 0 {
		return r.HeapCorruptionStatus
	}
	return StatusHeapCorruption
}

func (r *Runner) log() *logger.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logger.Get()
}

func pairDir(producer, consumer toolchain.Spec) string {
	return producer.ID + "--" + consumer.ID
}

func buildFailureDetail(err error) string {
	var ie *toolchain.InvocationError
	if !errors.As(err, &ie) {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(ie.Error())
	if len(ie.Command) > 0 {
		b.WriteString("\n$ ")
		b.WriteString(ie.CommandLine())
	}
	if out := bytes.TrimSpace(ie.Output); len(out) > 0 {
		b.WriteByte('\n')
		b.Write(out)
	}
	return b.String()
}

func firstLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}
