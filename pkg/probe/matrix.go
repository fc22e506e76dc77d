package probe

import (
	"fmt"
	"strings"
	"time"

	"github.com/tmaxmax/abiprobe/pkg/inspect"
	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

// Result is the outcome of one ordered (producer, consumer) pair.
type Result struct {
	// Producer built the wrapper library.
	Producer toolchain.Spec `json:"producer"`
	// Consumer built the executable that frees the library's allocation.
	Consumer toolchain.Spec `json:"consumer"`
	// ExitCode of the probe executable as a signed 32-bit value.
	// It is 0 for pairs that never ran.
	ExitCode int32   `json:"exitCode"`
	Outcome  Outcome `json:"outcome"`
	// Detail explains failures, crashes and skipped pairs.
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Matrix holds one Result for every ordered pair of toolchains.
// Rows are producers and columns are consumers, both in Toolchains order.
type Matrix struct {
	Toolchains []toolchain.Spec `json:"toolchains"`
	Cells      [][]Result       `json:"cells"`
	// Libraries holds the classification of the library each producer built,
	// when inspection was requested. Entries are nil for libraries that failed to build.
	Libraries []*inspect.Classification `json:"libraries,omitempty"`
	// Host describes the machine the probes ran on.
	Host     string        `json:"host,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// NewMatrix creates a square matrix over specs with every pair marked as skipped.
func NewMatrix(specs []toolchain.Spec) *Matrix {
	m := &Matrix{
		Toolchains: append([]toolchain.Spec(nil), specs...),
		Cells:      make([][]Result, len(specs)),
	}

	for p := range specs {
		m.Cells[p] = make([]Result, len(specs))
		for c := range specs {
			m.Cells[p][c] = Result{
				Producer: specs[p],
				Consumer: specs[c],
				Outcome:  OutcomeSkipped,
				Detail:   "not attempted",
			}
		}
	}

	return m
}

// Size returns the number of toolchains on each axis.
func (m *Matrix) Size() int {
	return len(m.Toolchains)
}

// Cell returns the result of the pair at the given indexes.
func (m *Matrix) Cell(producer, consumer int) Result {
	return m.Cells[producer][consumer]
}

// Lookup returns the result of the pair with the given toolchain IDs.
func (m *Matrix) Lookup(producerID, consumerID string) (Result, bool) {
	p, c := m.index(producerID), m.index(consumerID)
	if p < 0 || c < 0 {
		return Result{}, false
	}
	return m.Cells[p][c], true
}

func (m *Matrix) index(id string) int {
	for i, s := range m.Toolchains {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Key identifies the ordered toolchain set of the matrix.
func (m *Matrix) Key() string {
	return Key(m.Toolchains)
}

// Key identifies an ordered toolchain set.
func Key(specs []toolchain.Spec) string {
	ids := make([]string, 0, len(specs))
	for _, s := range specs {
		ids = append(ids, s.ID)
	}
	return strings.Join(ids, ",")
}

// Counts returns how many pairs ended with each outcome.
func (m *Matrix) Counts() map[Outcome]int {
	counts := map[Outcome]int{}
	for _, row := range m.Cells {
		for _, r := range row {
			counts[r.Outcome]++
		}
	}
	return counts
}

// Difference is a pair whose result changed between two matrices.
type Difference struct {
	Producer string
	Consumer string
	Was      Result
	Now      Result
}

func (d Difference) String() string {
	return fmt.Sprintf("%s -> %s: %s (%d) became %s (%d)", d.Producer, d.Consumer, d.Was.Outcome, d.Was.ExitCode, d.Now.Outcome, d.Now.ExitCode)
}

// Diff compares the pairs present in both matrices by outcome and exit code.
// The receiver is the older matrix.
func (m *Matrix) Diff(other *Matrix) []Difference {
	var diffs []Difference

	for _, row := range m.Cells {
		for _, was := range row {
			now, ok := other.Lookup(was.Producer.ID, was.Consumer.ID)
			if !ok || (was.Outcome == now.Outcome && was.ExitCode == now.ExitCode) {
				continue
			}

			diffs = append(diffs, Difference{
				Producer: was.Producer.ID,
				Consumer: was.Consumer.ID,
				Was:      was,
				Now:      now,
			})
		}
	}

	return diffs
}

// Equal reports whether both matrices cover the same toolchains in the same
// order and every pair has the same outcome and exit code.
func (m *Matrix) Equal(other *Matrix) bool {
	return m.Key() == other.Key() && len(m.Diff(other)) == 0
}
