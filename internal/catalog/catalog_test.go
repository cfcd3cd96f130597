package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progclub/duel-arena-backend/internal/judge"
	"github.com/progclub/duel-arena-backend/internal/models"
)

type fakeSource struct {
	problems []models.Problem
	contests []judge.Contest
	err      error
}

func (f *fakeSource) Problems(context.Context) ([]models.Problem, error) {
	return f.problems, f.err
}

func (f *fakeSource) Contests(context.Context) ([]judge.Contest, error) {
	return f.contests, f.err
}

func TestCatalog_Refresh(t *testing.T) {
	source := &fakeSource{
		contests: []judge.Contest{
			{ID: 1, Name: "Round 1", Phase: "FINISHED", StartTimeSeconds: 1000},
			{ID: 2, Name: "April Fools Day Contest", Phase: "FINISHED", StartTimeSeconds: 2000},
			{ID: 3, Name: "Round 3", Phase: "CODING", StartTimeSeconds: 3000},
		},
		problems: []models.Problem{
			{ContestID: 1, Index: "A", Name: "Alpha", Rating: 800},
			{ContestID: 1, Index: "B", Name: "Beta", Rating: 1200},
			{ContestID: 2, Index: "A", Name: "Joke", Rating: 800},
			{ContestID: 3, Index: "A", Name: "Live", Rating: 800},
			{ContestID: 9, Index: "A", Name: "Orphan", Rating: 800},
		},
	}

	c := New(source, time.Hour)
	require.NoError(t, c.Refresh(context.Background()))

	t.Run("keeps only finished standard contests", func(t *testing.T) {
		at800 := c.ProblemsAt(800)
		require.Len(t, at800, 1)
		assert.Equal(t, "Alpha", at800[0].Name)
		assert.Equal(t, 2, c.Size())
	})

	t.Run("attaches contest start times", func(t *testing.T) {
		at800 := c.ProblemsAt(800)
		assert.Equal(t, time.Unix(1000, 0).UTC(), at800[0].ContestStartAt)
	})

	t.Run("unknown rating is empty", func(t *testing.T) {
		assert.Empty(t, c.ProblemsAt(3500))
	})
}

func TestCatalog_RefreshFailureKeepsCache(t *testing.T) {
	source := &fakeSource{
		contests: []judge.Contest{{ID: 1, Name: "Round 1", Phase: "FINISHED", StartTimeSeconds: 1000}},
		problems: []models.Problem{{ContestID: 1, Index: "A", Name: "Alpha", Rating: 800}},
	}

	c := New(source, time.Hour)
	require.NoError(t, c.Refresh(context.Background()))
	require.Equal(t, 1, c.Size())

	source.err = assert.AnError
	assert.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, 1, c.Size())
}

func TestCatalog_Writers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"1234": ["Tourist", "petr"]}`), 0o644))

	c := New(&fakeSource{}, time.Hour)
	require.NoError(t, c.LoadWriters(path))

	assert.True(t, c.WroteContest(1234, "tourist"))
	assert.True(t, c.WroteContest(1234, "Petr"))
	assert.False(t, c.WroteContest(1234, "someone"))
	assert.False(t, c.WroteContest(99, "tourist"))

	t.Run("malformed file is rejected", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"abc": []}`), 0o644))
		assert.Error(t, c.LoadWriters(bad))
	})
}
