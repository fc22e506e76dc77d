package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/tmaxmax/abiprobe/pkg/history"
	"github.com/tmaxmax/abiprobe/pkg/probe"
	"github.com/tmaxmax/abiprobe/pkg/report"
)

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("history", stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	historyPath := fs.String("history", "", "history database")
	limit := fs.Int("limit", 20, "maximum number of runs to list, 0 for all")
	show := fs.String("show", "", "ID of a run whose matrix to print")
	format := fs.String("format", string(report.FormatText), "format of the printed matrix")

	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if setFlags(fs)["history"] {
		cfg.History.Path = *historyPath
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("%w: no history database configured", errUsage)
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if *show != "" {
		id, err := uuid.Parse(*show)
		if err != nil {
			return fmt.Errorf("%w: invalid run id: %v", errUsage, err)
		}

		f, err := report.ParseFormat(*format)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}

		run, err := store.Get(ctx, id)
		if err != nil {
			return err
		}

		data, err := report.Render(run.Matrix, f)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}

	runs, err := store.List(ctx, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTOOLCHAINS\tDURATION\tOUTCOMES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Started.Local().Format(time.DateTime), r.Key, units.HumanDuration(r.Duration), outcomes(r.Matrix))
	}
	return tw.Flush()
}

func outcomes(m *probe.Matrix) string {
	counts := m.Counts()

	var parts []string
	for _, o := range probe.Outcomes {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, n))
		}
	}
	return strings.Join(parts, " ")
}
