package table_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/luddite478/fortuned-sub004/internal/table"
)

type fakeRecorder struct {
	records  int
	applying bool
}

func (f *fakeRecorder) Record()          { f.records++ }
func (f *fakeRecorder) IsApplying() bool { return f.applying }

func TestNewTableHasOneSectionAllEmpty(t *testing.T) {
	tb := table.New(nil, 16)
	require.Equal(t, 1, tb.SectionCount())

	c, err := tb.GetCell(0, 0)
	require.NoError(t, err)
	require.True(t, c.IsEmpty())
	require.Equal(t, table.SentinelInherit, c.Volume)
}

func TestSetCellAndClearCell(t *testing.T) {
	tb := table.New(nil, 4)
	require.NoError(t, tb.SetCell(1, 2, 5, 0.8, 1.0, false))

	c, err := tb.GetCell(1, 2)
	require.NoError(t, err)
	require.Equal(t, 5, c.SampleSlot)
	require.Equal(t, 0.8, c.Volume)

	require.NoError(t, tb.ClearCell(1, 2, false))
	c, err = tb.GetCell(1, 2)
	require.NoError(t, err)
	require.True(t, c.IsEmpty())
}

func TestSetCellOutOfRange(t *testing.T) {
	tb := table.New(nil, 4)
	require.Error(t, tb.SetCell(100, 0, 0, 1.0, 1.0, false))
	require.Error(t, tb.SetCell(0, table.MaxColumns, 0, 1.0, 1.0, false))
}

func TestMutatorsRecordUndoUnlessSuppressed(t *testing.T) {
	rec := &fakeRecorder{}
	tb := table.New(rec, 4)

	require.NoError(t, tb.SetCell(0, 0, 1, 1.0, 1.0, true))
	require.Equal(t, 1, rec.records)

	require.NoError(t, tb.SetCell(0, 0, 2, 1.0, 1.0, false))
	require.Equal(t, 1, rec.records)

	rec.applying = true
	require.NoError(t, tb.SetCell(0, 0, 3, 1.0, 1.0, true))
	require.Equal(t, 1, rec.records)
}

func TestInsertStepAndDeleteStep(t *testing.T) {
	tb := table.New(nil, 4)
	require.NoError(t, tb.SetCell(2, 0, 7, 1.0, 1.0, false))

	require.NoError(t, tb.InsertStep(0, 2, false))
	sec, err := tb.Section(0)
	require.NoError(t, err)
	require.Equal(t, 5, sec.NumSteps)

	c, err := tb.GetCell(3, 0)
	require.NoError(t, err)
	require.Equal(t, 7, c.SampleSlot)

	require.NoError(t, tb.DeleteStep(0, 2, false))
	sec, err = tb.Section(0)
	require.NoError(t, err)
	require.Equal(t, 4, sec.NumSteps)
}

func TestDeleteStepRefusesLastStep(t *testing.T) {
	tb := table.New(nil, 1)
	require.Error(t, tb.DeleteStep(0, 0, false))
}

func TestAppendSectionAndDeleteSection(t *testing.T) {
	tb := table.New(nil, 4)
	require.NoError(t, tb.SetCell(1, 0, 9, 1.0, 1.0, false))

	require.NoError(t, tb.AppendSection(8, 0, false))
	require.Equal(t, 2, tb.SectionCount())

	sec1, err := tb.Section(1)
	require.NoError(t, err)
	require.Equal(t, 4, sec1.StartStep)

	c, err := tb.GetCell(5, 0)
	require.NoError(t, err)
	require.Equal(t, 9, c.SampleSlot)

	require.NoError(t, tb.DeleteSection(0, false))
	require.Equal(t, 1, tb.SectionCount())
	sec0, err := tb.Section(0)
	require.NoError(t, err)
	require.Equal(t, 0, sec0.StartStep)
}

func TestDeleteSectionRefusesLastSection(t *testing.T) {
	tb := table.New(nil, 4)
	require.Error(t, tb.DeleteSection(0, false))
}

func TestSnapshotApplyStateRoundTrip(t *testing.T) {
	tb := table.New(nil, 4)
	require.NoError(t, tb.SetCell(0, 0, 3, 1.0, 1.0, false))
	require.NoError(t, tb.AppendSection(4, -1, false))

	snap := tb.Snapshot()

	require.NoError(t, tb.ClearCell(0, 0, false))
	require.NoError(t, tb.DeleteSection(1, false))

	require.NoError(t, tb.ApplyState(snap))
	require.Equal(t, 2, tb.SectionCount())
	c, err := tb.GetCell(0, 0)
	require.NoError(t, err)
	require.Equal(t, 3, c.SampleSlot)
}

// TestSectionChainStaysContiguous exercises arbitrary sequences of
// InsertStep/DeleteStep/AppendSection/DeleteSection and checks
// that the section start-step chain always remains contiguous and
// gapless, covering exactly [0, total steps).
func TestSectionChainStaysContiguous(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tb := table.New(nil, rapid.IntRange(1, 32).Draw(rt, "initSteps"))

		steps := rapid.IntRange(1, 20).Draw(rt, "ops")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				n := tb.SectionCount()
				sec := rapid.IntRange(0, n-1).Draw(rt, "section")
				s, err := tb.Section(sec)
				require.NoError(rt, err)
				at := rapid.IntRange(s.StartStep, s.StartStep+s.NumSteps).Draw(rt, "atStep")
				_ = tb.InsertStep(sec, at, false)
			case 1:
				n := tb.SectionCount()
				sec := rapid.IntRange(0, n-1).Draw(rt, "section")
				s, err := tb.Section(sec)
				require.NoError(rt, err)
				at := rapid.IntRange(s.StartStep, s.StartStep+s.NumSteps-1).Draw(rt, "atStep")
				_ = tb.DeleteStep(sec, at, false)
			case 2:
				_ = tb.AppendSection(rapid.IntRange(1, 8).Draw(rt, "len"), -1, false)
			case 3:
				n := tb.SectionCount()
				sec := rapid.IntRange(0, n-1).Draw(rt, "section")
				_ = tb.DeleteSection(sec, false)
			}

			cursor := 0
			count := tb.SectionCount()
			for s := 0; s < count; s++ {
				sec, err := tb.Section(s)
				require.NoError(rt, err)
				require.Equal(rt, cursor, sec.StartStep)
				require.GreaterOrEqual(rt, sec.NumSteps, 1)
				cursor += sec.NumSteps
			}
			require.LessOrEqual(rt, cursor, table.MaxSteps)
		}
	})
}
