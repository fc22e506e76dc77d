package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tmaxmax/abiprobe/pkg/probe"
)

var markdownEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

// markdownCode renders s as an inline code span that cannot break a table row.
func markdownCode(s string) string {
	s = markdownEscaper.Replace(s)
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}

// Markdown renders m as a GitHub flavored markdown table.
func Markdown(m *probe.Matrix) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("## ABI compatibility matrix\n\n")
	buf.WriteString("Rows are library producers, columns are executable consumers.\n\n")

	row := func(cells []string) {
		buf.WriteString("|")
		for _, c := range cells {
			buf.WriteString(" " + c + " |")
		}
		buf.WriteString("\n")
	}

	header := []string{markdownEscaper.Replace(corner)}
	sep := []string{"---"}
	for _, s := range m.Toolchains {
		header = append(header, markdownCode(s.ID))
		sep = append(sep, "---")
	}
	row(header)
	row(sep)

	for p, results := range m.Cells {
		cells := []string{"**" + markdownCode(m.Toolchains[p].ID) + "**"}
		for _, r := range results {
			text := CellText(r)
			if r.Outcome == probe.OutcomeHeapCorruption {
				text = "**" + text + "**"
			}
			cells = append(cells, text)
		}
		row(cells)
	}

	buf.WriteString("\n")
	for _, e := range legend {
		fmt.Fprintf(&buf, "- `%s`: %s\n", e.text, e.meaning)
	}

	if hasLibraries(m) {
		buf.WriteString("\n### Libraries (heuristic)\n\n")
		for i, lib := range m.Libraries {
			if lib != nil {
				fmt.Fprintf(&buf, "- %s: %s\n", markdownCode(m.Toolchains[i].ID), markdownEscaper.Replace(lib.String()))
			}
		}
	}

	if fs := failures(m); len(fs) > 0 {
		buf.WriteString("\n### Failures\n\n")
		for _, f := range fs {
			fmt.Fprintf(&buf, "- %s -> %s: %s\n", markdownCode(f.producer), markdownCode(f.consumer), markdownEscaper.Replace(f.detail))
		}
	}

	fmt.Fprintf(&buf, "\n%s\n", summary(m))

	return buf.Bytes(), nil
}
