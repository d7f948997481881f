package undo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luddite478/fortuned-sub004/internal/bank"
	"github.com/luddite478/fortuned-sub004/internal/table"
	"github.com/luddite478/fortuned-sub004/internal/transport"
	"github.com/luddite478/fortuned-sub004/internal/undo"
)

func newFixture() (*bank.Bank, *table.Table, *transport.Transport) {
	b := bank.New(nil)
	tbl := table.New(nil, 16)
	tr := transport.New(tbl, nil)
	return b, tbl, tr
}

func TestRecordUndoRedoRoundTrip(t *testing.T) {
	b, tbl, tr := newFixture()
	h := undo.New(b, tbl, tr)
	h.Record() // baseline, e.g. on engine init

	require.NoError(t, tbl.SetCell(0, 0, 0, table.SentinelInherit, table.SentinelInherit, false))
	h.Record()

	require.NoError(t, tbl.SetCell(0, 0, 1, table.SentinelInherit, table.SentinelInherit, false))
	h.Record()

	require.True(t, h.CanUndo())
	require.NoError(t, h.Undo())
	cell, err := tbl.GetCell(0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, cell.SampleSlot)

	require.True(t, h.CanUndo())
	require.NoError(t, h.Undo())
	cell, err = tbl.GetCell(0, 0)
	require.NoError(t, err)
	require.True(t, cell.IsEmpty())

	require.False(t, h.CanUndo())

	require.True(t, h.CanRedo())
	require.NoError(t, h.Redo())
	cell, err = tbl.GetCell(0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, cell.SampleSlot)
}

func TestRecordTruncatesRedoTail(t *testing.T) {
	b, tbl, tr := newFixture()
	h := undo.New(b, tbl, tr)
	h.Record()
	require.NoError(t, tbl.SetCell(0, 0, 0, table.SentinelInherit, table.SentinelInherit, false))
	h.Record()
	require.NoError(t, h.Undo())
	require.True(t, h.CanRedo())

	require.NoError(t, tbl.SetCell(0, 1, 2, table.SentinelInherit, table.SentinelInherit, false))
	h.Record()

	require.False(t, h.CanRedo())
}

func TestUndoWithNoHistoryFails(t *testing.T) {
	b, tbl, tr := newFixture()
	h := undo.New(b, tbl, tr)
	require.Error(t, h.Undo())
}

func TestRingEvictsOldestPastMaxEntries(t *testing.T) {
	b, tbl, tr := newFixture()
	h := undo.New(b, tbl, tr)
	for i := 0; i < undo.MaxEntries+20; i++ {
		require.NoError(t, tbl.SetCell(0, 0, i%25, table.SentinelInherit, table.SentinelInherit, false))
		h.Record()
	}
	for i := 0; i < undo.MaxEntries-1; i++ {
		require.NoError(t, h.Undo())
	}
	require.False(t, h.CanUndo())
}

func TestApplyDoesNotRecordNewHistory(t *testing.T) {
	b, tbl, tr := newFixture()
	h := undo.New(b, tbl, tr)
	h.Record()
	require.NoError(t, tbl.SetCell(0, 0, 5, table.SentinelInherit, table.SentinelInherit, false))
	h.Record()

	require.NoError(t, h.Undo())
	require.False(t, h.IsApplying())
	// Replaying the older snapshot must not itself push a new entry past
	// the cursor, or the redo tail captured above would be clobbered.
	require.True(t, h.CanRedo())
	require.NoError(t, h.Redo())
	require.False(t, h.CanRedo())
}
