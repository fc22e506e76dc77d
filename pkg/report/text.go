package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/tmaxmax/abiprobe/pkg/probe"
)

// Text renders m as an aligned plain text table followed by a legend.
func Text(m *probe.Matrix) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("ABI compatibility matrix (rows: library producer, columns: executable consumer)\n\n")

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	header := []string{corner}
	for _, s := range m.Toolchains {
		header = append(header, s.ID)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for p, row := range m.Cells {
		cells := []string{m.Toolchains[p].ID}
		for _, r := range row {
			cells = append(cells, CellText(r))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("report: failed to render table: %w", err)
	}

	buf.WriteString("\nLegend:\n")
	tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, e := range legend {
		fmt.Fprintf(tw, "  %s\t%s\n", e.text, e.meaning)
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("report: failed to render legend: %w", err)
	}

	if hasLibraries(m) {
		buf.WriteString("\nLibraries (heuristic):\n")
		tw = tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		for i, lib := range m.Libraries {
			if lib != nil {
				fmt.Fprintf(tw, "  %s\t%s\n", m.Toolchains[i].ID, lib)
			}
		}
		if err := tw.Flush(); err != nil {
			return nil, fmt.Errorf("report: failed to render libraries: %w", err)
		}
	}

	if fs := failures(m); len(fs) > 0 {
		buf.WriteString("\nFailures:\n")
		for _, f := range fs {
			fmt.Fprintf(&buf, "  %s -> %s: %s\n", f.producer, f.consumer, f.detail)
		}
	}

	fmt.Fprintf(&buf, "\n%s\n", summary(m))

	return buf.Bytes(), nil
}

func hasLibraries(m *probe.Matrix) bool {
	for _, lib := range m.Libraries {
		if lib != nil {
			return true
		}
	}
	return false
}
