package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tmaxmax/abiprobe/pkg/history"
	"github.com/tmaxmax/abiprobe/pkg/logger"
	"github.com/tmaxmax/abiprobe/pkg/probe"
	"github.com/tmaxmax/abiprobe/pkg/report"
	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("probe", stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	ids := fs.String("toolchains", "", "comma-separated toolchain IDs to probe (default: all configured)")
	out := fs.String("out", "-", "matrix report path, - for standard output")
	format := fs.String("format", "", "report format: text, markdown, json or html (default: from the --out extension)")
	scratch := fs.String("scratch", "", "scratch directory for build artifacts (default: a temporary directory)")
	timeout := fs.Duration("timeout", 0, "timeout of every build step and probe execution")
	parallel := fs.Int("parallel", 0, "number of pairs probed concurrently")
	failFast := fs.Bool("fail-fast", false, "stop at the first toolchain that fails to build")
	inspectLibs := fs.Bool("inspect", false, "classify the library built by every producer")
	keep := fs.Bool("keep", false, "keep the build artifacts of every pair")
	repeat := fs.Int("repeat", 1, "run the matrix this many times and check that the results are identical")
	historyPath := fs.String("history", "", "history database recording the run")

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %q", errUsage, fs.Args())
	}
	if *repeat < 1 {
		return fmt.Errorf("%w: --repeat must be at least 1", errUsage)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	set := setFlags(fs)
	if set["scratch"] {
		cfg.Probe.ScratchDir = *scratch
	}
	if set["timeout"] {
		cfg.Probe.Timeout = *timeout
	}
	if set["parallel"] {
		cfg.Probe.Parallelism = *parallel
	}
	if set["fail-fast"] {
		cfg.Probe.FailFast = *failFast
	}
	if set["inspect"] {
		cfg.Probe.Inspect = *inspectLibs
	}
	if set["keep"] {
		cfg.Probe.KeepArtifacts = *keep
	}
	if set["history"] {
		cfg.History.Path = *historyPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	reportFormat := report.FormatFromPath(*out)
	if *format != "" {
		if reportFormat, err = report.ParseFormat(*format); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}

	specs, err := cfg.Select(splitIDs(*ids))
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	log := logger.Get()
	log.DebugWith("configuration loaded", "config", cfg.String())

	toolchains := make([]toolchain.Toolchain, 0, len(specs))
	for _, spec := range specs {
		tc, err := toolchain.New(spec)
		if err != nil {
			return fmt.Errorf("cannot invoke toolchain %s: %w", spec.ID, err)
		}

		info := tc.Info()
		log.InfoWith("toolchain ready", "toolchain", spec.ID, "compiler", info.Path, "version", info.Version)
		toolchains = append(toolchains, tc)
	}

	runner := &probe.Runner{
		Toolchains:    toolchains,
		ScratchDir:    cfg.Probe.ScratchDir,
		Timeout:       cfg.Probe.Timeout,
		Parallelism:   cfg.Probe.Parallelism,
		FailFast:      cfg.Probe.FailFast,
		Inspect:       cfg.Probe.Inspect,
		KeepArtifacts: cfg.Probe.KeepArtifacts,
		Logger:        log,
	}

	var m *probe.Matrix
	for i := 0; i < *repeat; i++ {
		next, runErr := runner.Run(ctx)
		if runErr != nil {
			// The partial matrix is still worth reporting.
			if next != nil {
				if err := writeReport(next, reportFormat, *out, stdout); err != nil {
					log.ErrorWithErr("failed to write partial report", err)
				}
			}
			return runErr
		}

		if m != nil && !m.Equal(next) {
			for _, d := range m.Diff(next) {
				log.WarnWith("result changed between repetitions", "repetition", i+1, "difference", d.String())
			}
		}
		m = next
	}

	if cfg.History.Path != "" {
		if err := record(ctx, cfg.History.Path, m); err != nil {
			log.ErrorWithErr("failed to record run history", err)
		}
	}

	return writeReport(m, reportFormat, *out, stdout)
}

// record saves m and compares it with the previous run over the same toolchains.
func record(ctx context.Context, path string, m *probe.Matrix) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	log := logger.Get()

	prev, err := store.Previous(ctx, m.Key(), m.Started)
	switch {
	case errors.Is(err, history.ErrNotFound):
		log.DebugWith("no previous run to compare with", "toolchains", m.Key())
	case err != nil:
		return err
	default:
		diffs := prev.Matrix.Diff(m)
		for _, d := range diffs {
			log.WarnWith("result differs from the previous run", "previous", prev.ID, "difference", d.String())
		}
		if len(diffs) == 0 {
			log.InfoWith("results match the previous run", "previous", prev.ID)
		}
	}

	id, err := store.Save(ctx, m)
	if err != nil {
		return err
	}

	log.InfoWith("run recorded", "id", id, "history", path)
	return nil
}

func writeReport(m *probe.Matrix, format report.Format, out string, stdout io.Writer) error {
	data, err := report.Render(m, format)
	if err != nil {
		return err
	}

	if out == "-" || out == "" {
		_, err := stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.Get().InfoWith("report written", "path", out, "format", format)
	return nil
}
