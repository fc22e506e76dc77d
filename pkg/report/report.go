/*
Package report renders compatibility matrices.

Rows are the toolchains that produced the library and columns are the
toolchains that built the executable freeing its allocation. Renderers are
pure: they only read the matrix and return the rendered bytes.
*/
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"

	"github.com/tmaxmax/abiprobe/pkg/probe"
)

// Format selects a renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatMarkdown, FormatJSON, FormatHTML}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// FormatFromPath picks a format from the extension of path, defaulting to text.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".json":
		return FormatJSON
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatText
	}
}

// Render renders m in the given format.
func Render(m *probe.Matrix, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return Text(m)
	case FormatMarkdown:
		return Markdown(m)
	case FormatJSON:
		return JSON(m)
	case FormatHTML:
		return HTML(m)
	default:
		return nil, fmt.Errorf("report: unknown format %q", f)
	}
}

// Cell texts. No text is a prefix or a substring of another.
const (
	textSuccess        = "ok"
	textHeapCorruption = "HEAP CORRUPTION"
	textBuildFailed    = "build failed"
	textSkipped        = "skipped"
)

// CellText returns the text shown for a result.
func CellText(r probe.Result) string {
	switch r.Outcome {
	case probe.OutcomeSuccess:
		return textSuccess
	case probe.OutcomeHeapCorruption:
		return textHeapCorruption
	case probe.OutcomeOtherCrash:
		if r.Detail == probe.DetailTimedOut {
			return "crash (timed out)"
		}
		return fmt.Sprintf("crash (0x%08X)", uint32(r.ExitCode))
	case probe.OutcomeBuildFailed:
		return textBuildFailed
	default:
		return textSkipped
	}
}

type legendEntry struct {
	text    string
	meaning string
}

var legend = []legendEntry{
	{textSuccess, "the executable freed the library's allocation and exited cleanly"},
	{textHeapCorruption, fmt.Sprintf("the process terminated with STATUS_HEAP_CORRUPTION (0x%08X)", probe.StatusHeapCorruption)},
	{"crash (<code>)", "the process exited with another nonzero status, or timed out"},
	{textBuildFailed, "a toolchain could not build the library or the executable"},
	{textSkipped, "the pair was not attempted because the run was cancelled"},
}

// summary describes the outcome counts and run metadata in one sentence.
func summary(m *probe.Matrix) string {
	counts := m.Counts()

	var parts []string
	for _, o := range probe.Outcomes {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(o.String(), "-", " ")))
		}
	}

	s := fmt.Sprintf("%d pairs: %s.", m.Size()*m.Size(), strings.Join(parts, ", "))
	if m.Host != "" {
		s += " Probed on " + m.Host
	} else {
		s += " Probed"
	}
	return s + " in " + strings.ToLower(units.HumanDuration(m.Duration)) + "."
}

// failure is a pair whose detail is worth showing below the table.
type failure struct {
	producer, consumer string
	detail             string
}

func failures(m *probe.Matrix) []failure {
	var out []failure
	for _, row := range m.Cells {
		for _, r := range row {
			if r.Detail == "" || (r.Outcome != probe.OutcomeBuildFailed && r.Outcome != probe.OutcomeOtherCrash) {
				continue
			}
			out = append(out, failure{producer: r.Producer.ID, consumer: r.Consumer.ID, detail: firstLine(r.Detail)})
		}
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

const corner = `producer \ consumer`
