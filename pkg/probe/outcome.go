package probe

import "fmt"

// Outcome is the classified result of running one probe pair.
type Outcome int

const (
	// OutcomeSkipped marks a pair that was not attempted because the run was cancelled.
	OutcomeSkipped Outcome = iota
	// OutcomeSuccess means the probe executable exited with status 0.
	OutcomeSuccess
	// OutcomeHeapCorruption means the operating system detected heap corruption
	// when the executable freed memory allocated by the library.
	OutcomeHeapCorruption
	// OutcomeOtherCrash covers every other nonzero exit, including timeouts.
	OutcomeOtherCrash
	// OutcomeBuildFailed means a toolchain could not build the library or the executable.
	OutcomeBuildFailed
)

var outcomeNames = [...]string{
	OutcomeSkipped:        "skipped",
	OutcomeSuccess:        "success",
	OutcomeHeapCorruption: "heap-corruption",
	OutcomeOtherCrash:     "other-crash",
	OutcomeBuildFailed:    "build-failed",
}

// Outcomes lists every outcome in report legend order.
var Outcomes = []Outcome{OutcomeSuccess, OutcomeHeapCorruption, OutcomeOtherCrash, OutcomeBuildFailed, OutcomeSkipped}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

func (o Outcome) MarshalText() ([]byte, error) {
	if o < 0 || int(o) >= len(outcomeNames) {
		return nil, fmt.Errorf("probe: invalid outcome %d", int(o))
	}
	return []byte(outcomeNames[o]), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for i, name := range outcomeNames {
		if name == string(text) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("probe: unknown outcome %q", text)
}

// Classify maps the exit code of a probe executable to an outcome.
// heapStatus is the status the platform reports for a corrupted heap.
func Classify(exitCode int32, heapStatus uint32) Outcome {
	switch {
	case exitCode == 0:
		return OutcomeSuccess
	case uint32(exitCode) == heapStatus:
		return OutcomeHeapCorruption
	default:
		return OutcomeOtherCrash
	}
}

// normalizeExitCode reinterprets an exit status as a signed 32-bit value,
// so that NTSTATUS codes read the same on every platform (0xC0000374 is -1073740940).
func normalizeExitCode(code int) int32 {
	return int32(uint32(code))
}
