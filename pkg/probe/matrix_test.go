package probe_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmaxmax/abiprobe/pkg/probe"
	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

func TestClassify(t *testing.T) {
	type test struct {
		name     string
		exitCode int32
		outcome  probe.Outcome
	}

	tests := []test{
		{name: "Zero", exitCode: 0, outcome: probe.OutcomeSuccess},
		{name: "HeapCorruption", exitCode: -1073740940, outcome: probe.OutcomeHeapCorruption},
		{name: "AccessViolation", exitCode: -1073741819, outcome: probe.OutcomeOtherCrash},
		{name: "ExitOne", exitCode: 1, outcome: probe.OutcomeOtherCrash},
		{name: "Killed", exitCode: -1, outcome: probe.OutcomeOtherCrash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.outcome, probe.Classify(tt.exitCode, probe.StatusHeapCorruption))
		})
	}
}

func TestNormalizeExitCode(t *testing.T) {
	status := uint32(0xC0000374)
	require.Equal(t, int32(-1073740940), probe.NormalizeExitCode(int(status)))
	require.Equal(t, int32(3), probe.NormalizeExitCode(3))
	require.Equal(t, int32(-1), probe.NormalizeExitCode(-1))
}

func TestOutcome_Text(t *testing.T) {
	for _, o := range probe.Outcomes {
		text, err := o.MarshalText()
		require.NoError(t, err)

		var parsed probe.Outcome
		require.NoError(t, parsed.UnmarshalText(text))
		require.Equal(t, o, parsed)
	}

	var o probe.Outcome
	require.Error(t, o.UnmarshalText([]byte("fine")))

	_, err := probe.Outcome(42).MarshalText()
	require.Error(t, err)
}

func TestNewMatrix(t *testing.T) {
	specs := toolchain.DefaultSpecs()[:3]
	m := probe.NewMatrix(specs)

	require.Equal(t, 3, m.Size())
	require.Equal(t, "gcc,msvc,clang-gnu", m.Key())
	require.Equal(t, map[probe.Outcome]int{probe.OutcomeSkipped: 9}, m.Counts())

	res, ok := m.Lookup("msvc", "clang-gnu")
	require.True(t, ok)
	require.Equal(t, specs[1], res.Producer)
	require.Equal(t, specs[2], res.Consumer)

	_, ok = m.Lookup("msvc", "tcc")
	require.False(t, ok)
}

func TestMatrix_Diff(t *testing.T) {
	specs := toolchain.DefaultSpecs()[:2]

	build := func(crossExit int32) *probe.Matrix {
		m := probe.NewMatrix(specs)
		for p := range specs {
			for c := range specs {
				m.Cells[p][c].Outcome = probe.OutcomeSuccess
				if p != c {
					m.Cells[p][c].Outcome = probe.Classify(crossExit, probe.StatusHeapCorruption)
					m.Cells[p][c].ExitCode = crossExit
				}
			}
		}
		return m
	}

	a, b := build(-1073740940), build(-1073740940)
	require.True(t, a.Equal(b))

	c := build(-1073741819)
	require.False(t, a.Equal(c))

	diffs := a.Diff(c)
	require.Len(t, diffs, 2)
	require.Equal(t, "gcc", diffs[0].Producer)
	require.Equal(t, "msvc", diffs[0].Consumer)
	require.Equal(t, probe.OutcomeHeapCorruption, diffs[0].Was.Outcome)
	require.Equal(t, probe.OutcomeOtherCrash, diffs[0].Now.Outcome)
	require.Contains(t, diffs[0].String(), "gcc -> msvc: heap-corruption")

	require.False(t, a.Equal(probe.NewMatrix(specs[:1])), "different toolchain sets are never equal")
}
