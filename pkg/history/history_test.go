package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tmaxmax/abiprobe/pkg/history"
	"github.com/tmaxmax/abiprobe/pkg/probe"
	"github.com/tmaxmax/abiprobe/pkg/toolchain"
)

func open(t *testing.T) *history.Store {
	t.Helper()

	s, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func matrix(specs []toolchain.Spec, started time.Time, outcome probe.Outcome) *probe.Matrix {
	m := probe.NewMatrix(specs)
	m.Started = started
	m.Duration = 2 * time.Second
	m.Host = "windows 10.0.22631 x86_64"

	for p := range m.Cells {
		for c := range m.Cells[p] {
			m.Cells[p][c].Outcome = probe.OutcomeSuccess
			m.Cells[p][c].Detail = ""
			if p != c {
				m.Cells[p][c].Outcome = outcome
				m.Cells[p][c].ExitCode = -1073740940
			}
		}
	}

	return m
}

func TestStore_SaveGet(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	started := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	m := matrix(toolchain.DefaultSpecs()[:2], started, probe.OutcomeHeapCorruption)

	id, err := s.Save(ctx, m)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	run, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, run.ID)
	require.Equal(t, "gcc,msvc", run.Key)
	require.True(t, started.Equal(run.Started))
	require.Equal(t, 2*time.Second, run.Duration)
	require.Equal(t, m.Host, run.Host)
	require.True(t, m.Equal(run.Matrix))
	require.Equal(t, m.Toolchains, run.Matrix.Toolchains)

	_, err = s.Get(ctx, uuid.New())
	require.ErrorIs(t, err, history.ErrNotFound)
}

func TestStore_Previous(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	specs := toolchain.DefaultSpecs()

	first, err := s.Save(ctx, matrix(specs[:2], base, probe.OutcomeHeapCorruption))
	require.NoError(t, err)
	second, err := s.Save(ctx, matrix(specs[:2], base.Add(time.Hour), probe.OutcomeOtherCrash))
	require.NoError(t, err)
	_, err = s.Save(ctx, matrix(specs, base.Add(2*time.Hour), probe.OutcomeHeapCorruption))
	require.NoError(t, err)

	prev, err := s.Previous(ctx, "gcc,msvc", base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Equal(t, second, prev.ID)

	prev, err = s.Previous(ctx, "gcc,msvc", base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first, prev.ID)

	_, err = s.Previous(ctx, "gcc,msvc", base)
	require.ErrorIs(t, err, history.ErrNotFound)

	_, err = s.Previous(ctx, "msvc,gcc", base.Add(3*time.Hour))
	require.ErrorIs(t, err, history.ErrNotFound, "toolchain order is part of the key")
}

func TestStore_List(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, runs)

	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := s.Save(ctx, matrix(toolchain.DefaultSpecs()[:2], base.Add(time.Duration(i)*time.Minute), probe.OutcomeHeapCorruption))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err = s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, ids[2], runs[0].ID)
	require.Equal(t, ids[1], runs[1].ID)

	runs, err = s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := history.Open(path)
	require.NoError(t, err)

	id, err := s.Save(ctx, matrix(toolchain.DefaultSpecs(), time.Now(), probe.OutcomeHeapCorruption))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = history.Open(path)
	require.NoError(t, err)
	defer s.Close()

	run, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 16, run.Matrix.Counts()[probe.OutcomeSuccess]+run.Matrix.Counts()[probe.OutcomeHeapCorruption])
}
