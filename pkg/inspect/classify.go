package inspect

import (
	"fmt"
	"strings"

	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

// Confidence grades a classification. There is deliberately no level above Likely.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceWeak
	ConfidenceLikely
)

var confidenceNames = [...]string{
	ConfidenceNone:   "none",
	ConfidenceWeak:   "weak",
	ConfidenceLikely: "likely",
}

func (c Confidence) String() string {
	if c < 0 || int(c) >= len(confidenceNames) {
		return confidenceNames[ConfidenceNone]
	}
	return confidenceNames[c]
}

func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Confidence) UnmarshalText(text []byte) error {
	for i, name := range confidenceNames {
		if name == string(text) {
			*c = Confidence(i)
			return nil
		}
	}
	return fmt.Errorf("inspect: unknown confidence %q", text)
}

// Evidence is one marker that points to an ABI family.
type Evidence struct {
	Marker string        `json:"marker"`
	ABI    toolchain.ABI `json:"abi"`
	Weight int           `json:"weight"`
}

func (e Evidence) String() string {
	return fmt.Sprintf("%s -> %s (%d)", e.Marker, e.ABI, e.Weight)
}

// Classification is the inspector's verdict on a binary.
type Classification struct {
	Path       string        `json:"path,omitempty"`
	ABI        toolchain.ABI `json:"abi"`
	Confidence Confidence    `json:"confidence"`
	// Machine is the target architecture, when the file is a PE image.
	Machine string `json:"machine,omitempty"`
	// Runtimes are the C runtimes the image imports: msvcrt, ucrt, vcruntime.
	Runtimes []string   `json:"runtimes,omitempty"`
	Exports  []string   `json:"exports,omitempty"`
	Evidence []Evidence `json:"evidence,omitempty"`
	// Reason explains an unknown classification.
	Reason string `json:"reason,omitempty"`
}

func (c *Classification) String() string {
	if c.ABI == toolchain.ABIUnknown {
		return "unknown (" + c.Reason + ")"
	}

	s := fmt.Sprintf("%s (%s", c.ABI, c.Confidence)
	if len(c.Runtimes) > 0 {
		s += ", " + strings.Join(c.Runtimes, "+")
	}
	return s + ")"
}

// Thresholds of the scoring rule.
const (
	minScore     = 2
	minMargin    = 2
	likelyMargin = 4
)

// Classify scores the markers. A family is reported only when its score is at
// least minScore and exceeds the other family's by minMargin.
func Classify(m *Markers) *Classification {
	c := &Classification{Machine: m.Machine, Exports: m.Exports}

	add := func(marker string, abi toolchain.ABI, weight int) {
		c.Evidence = append(c.Evidence, Evidence{Marker: marker, ABI: abi, Weight: weight})
	}
	runtime := func(name string) {
		for _, r := range c.Runtimes {
			if r == name {
				return
			}
		}
		c.Runtimes = append(c.Runtimes, name)
	}

	for _, lib := range m.Imports {
		switch {
		case strings.HasPrefix(lib, "vcruntime"):
			add("imports "+lib, toolchain.ABIMSVC, 3)
			runtime("vcruntime")
		case lib == "msvcrt.dll":
			add("imports "+lib, toolchain.ABIGNU, 3)
			runtime("msvcrt")
		case strings.HasPrefix(lib, "libgcc_s"), strings.HasPrefix(lib, "libwinpthread"):
			add("imports "+lib, toolchain.ABIGNU, 2)
		case lib == "ucrtbase.dll", strings.HasPrefix(lib, "api-ms-win-crt-"):
			// Both MinGW-w64 UCRT builds and MSVC use the universal CRT.
			runtime("ucrt")
		}
	}

	if m.RichHeader {
		add("rich header", toolchain.ABIMSVC, 2)
	}

	if m.COFFSymbols {
		add("coff symbol table", toolchain.ABIGNU, 1)
	}

	for _, s := range m.Sections {
		if s == ".CRT" || s == ".bss" {
			add("section "+s, toolchain.ABIGNU, 1)
			break
		}
	}

	switch {
	case m.LinkerMajor == 2:
		add(fmt.Sprintf("linker version %d", m.LinkerMajor), toolchain.ABIGNU, 1)
	case m.LinkerMajor >= 6:
		add(fmt.Sprintf("linker version %d", m.LinkerMajor), toolchain.ABIMSVC, 1)
	}

	var gnu, msvc int
	for _, e := range c.Evidence {
		switch e.ABI {
		case toolchain.ABIGNU:
			gnu += e.Weight
		case toolchain.ABIMSVC:
			msvc += e.Weight
		}
	}

	winner, score, other := toolchain.ABIGNU, gnu, msvc
	if msvc > gnu {
		winner, score, other = toolchain.ABIMSVC, msvc, gnu
	}

	switch {
	case gnu == 0 && msvc == 0:
		c.Reason = "no runtime markers"
	case score < minScore || score-other < minMargin:
		c.Reason = fmt.Sprintf("inconclusive markers (gnu %d, msvc %d)", gnu, msvc)
	default:
		c.ABI = winner
		c.Confidence = ConfidenceWeak
		if score-other >= likelyMargin {
			c.Confidence = ConfidenceLikely
		}
	}

	return c
}
