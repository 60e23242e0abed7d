package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		_, err := s.Record(ctx, Run{
			Time:         base.Add(time.Duration(i) * time.Second),
			Command:      "train",
			DataCount:    50 + i,
			Range:        0.5,
			Slope:        1,
			Exponent:     1,
			LearningRate: 0.05,
			Epochs:       100,
			Iterations:   1,
			FinalLoss:    0.25,
			TestError:    0.2,
			MeanCost:     0.3,
		})
		require.NoError(t, err)
	}

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, 52, runs[0].DataCount)
	assert.Equal(t, 51, runs[1].DataCount)
	assert.Greater(t, runs[0].ID, runs[1].ID)
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), runs[0].Time.UnixMilli())
	assert.Equal(t, "train", runs[0].Command)
	assert.InDelta(t, 0.25, runs[0].FinalLoss, 1e-9)
}

func TestRecentZeroLimit(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.sqlite3")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	id, err := s.Record(ctx, Run{Command: "run", Iterations: 10, MeanCost: 0.1})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 10, runs[0].Iterations)
	assert.False(t, runs[0].Time.IsZero())
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestRecentKeepsMilliseconds(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	base := time.UnixMilli(1_700_000_000_000)
	want := map[int64]int64{}
	for ms := int64(0); ms < 1000; ms += 7 {
		at := base.Add(time.Duration(ms) * time.Millisecond)
		id, err := s.Record(ctx, Run{Time: at, Command: "train"})
		require.NoError(t, err)
		want[id] = at.UnixMilli()
	}

	runs, err := s.Recent(ctx, len(want))
	require.NoError(t, err)
	require.Len(t, runs, len(want))
	for _, r := range runs {
		assert.Equal(t, want[r.ID], r.Time.UnixMilli(), "run %d", r.ID)
	}
}
