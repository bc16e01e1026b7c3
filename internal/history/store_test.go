package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.TempDir())
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { store.Close() })

	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	commands := []string{"ls -la", "git status", "cat notes.txt"}
	for i, cmd := range commands {
		err := store.Append(ctx, &Record{
			RequestID:  "req-1",
			Command:    cmd,
			Verb:       "x",
			Tier:       "1",
			Platform:   "bash",
			Outcome:    OutcomeExecuted,
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Newest first.
	assert.Equal(t, "cat notes.txt", recent[0].Command)
	assert.Equal(t, "git status", recent[1].Command)
	assert.Equal(t, OutcomeExecuted, recent[0].Outcome)
	assert.Equal(t, "bash", recent[0].Platform)
}

func TestAppendValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Append(ctx, &Record{Outcome: OutcomeExecuted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command")

	err = store.Append(ctx, &Record{Command: "ls"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outcome")
}

func TestAppendFillsDefaults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{Command: "pwd", Outcome: OutcomeExecuted}
	require.NoError(t, store.Append(ctx, rec))

	assert.NotZero(t, rec.ID)
	assert.False(t, rec.ExecutedAt.IsZero())
}

func TestSearch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, cmd := range []string{"git status", "git push origin main", "ls -la", "echo 50% done"} {
		require.NoError(t, store.Append(ctx, &Record{
			Command: cmd,
			Outcome: OutcomeExecuted,
		}))
	}

	got, err := store.Search(ctx, "git", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// LIKE wildcards in the query match literally.
	got, err = store.Search(ctx, "%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "echo 50% done", got[0].Command)

	got, err = store.Search(ctx, "terraform", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPurgeOlderThan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	old := &Record{
		Command:    "ls",
		Outcome:    OutcomeExecuted,
		ExecutedAt: time.Now().UTC().Add(-10 * 24 * time.Hour),
	}
	fresh := &Record{
		Command: "pwd",
		Outcome: OutcomeExecuted,
	}
	require.NoError(t, store.Append(ctx, old))
	require.NoError(t, store.Append(ctx, fresh))

	purged, err := store.PurgeOlderThan(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "pwd", recent[0].Command)
}

func TestBlockedAndFailedOutcomes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, &Record{
		Command: "rm -rf /",
		Tier:    "4",
		Outcome: OutcomeBlocked,
		Error:   "recursive force delete",
	}))
	require.NoError(t, store.Append(ctx, &Record{
		Command:  "frobnicate",
		Outcome:  OutcomeFailed,
		ExitCode: -1,
		Error:    "executable not found",
	}))

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	byOutcome := map[string]*Record{}
	for _, r := range recent {
		byOutcome[r.Outcome] = r
	}
	require.Contains(t, byOutcome, OutcomeBlocked)
	require.Contains(t, byOutcome, OutcomeFailed)
	assert.Equal(t, "recursive force delete", byOutcome[OutcomeBlocked].Error)
	assert.Equal(t, "4", byOutcome[OutcomeBlocked].Tier)
}

func TestReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), &Record{
		Command: "ls",
		Outcome: OutcomeExecuted,
	}))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestHealth(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Health())
}

func TestStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	rows := []*Record{
		{Command: "ls", Tier: "1", Outcome: OutcomeExecuted, DurationMs: 10, ExecutedAt: base},
		{Command: "git push", Tier: "3", Outcome: OutcomeExecuted, DurationMs: 40, ExecutedAt: base.Add(time.Minute)},
		{Command: "rm -rf /", Tier: "4", Outcome: OutcomeBlocked, ExecutedAt: base.Add(2 * time.Minute)},
		{Command: "frobnicate", Tier: "3", Outcome: OutcomeFailed, ExecutedAt: base.Add(3 * time.Minute)},
	}
	for _, rec := range rows {
		require.NoError(t, store.Append(ctx, rec))
	}

	st, err := store.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), st.Total)
	assert.Equal(t, int64(2), st.ByOutcome[OutcomeExecuted])
	assert.Equal(t, int64(1), st.ByOutcome[OutcomeBlocked])
	assert.Equal(t, int64(1), st.ByOutcome[OutcomeFailed])
	assert.Equal(t, int64(2), st.ByTier["3"])
	assert.Equal(t, int64(50), st.TotalExecMs)
	assert.Equal(t, base, st.Oldest.UTC())
	assert.Equal(t, base.Add(3*time.Minute), st.Newest.UTC())
}

func TestStatsEmptyStore(t *testing.T) {
	store := setupTestStore(t)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Total)
	assert.Empty(t, st.ByOutcome)
	assert.True(t, st.Oldest.IsZero())
}
