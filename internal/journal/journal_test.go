package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claims.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestClaimFirstTime(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	fresh, err := j.Claim(ctx, "bundle-a", time.Now())
	require.NoError(t, err)
	require.True(t, fresh)
}

func TestClaimDuplicate(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	fresh, err := j.Claim(ctx, "bundle-a", time.Now())
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = j.Claim(ctx, "bundle-a", time.Now())
	require.NoError(t, err)
	require.False(t, fresh, "second claim of the same id must be rejected")

	seen, err := j.Seen(ctx, "bundle-a")
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = j.Seen(ctx, "bundle-b")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestClaimSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "claims.db")

	j, err := Open(path)
	require.NoError(t, err)
	fresh, err := j.Claim(ctx, "bundle-a", time.Now())
	require.NoError(t, err)
	require.True(t, fresh)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	fresh, err = j.Claim(ctx, "bundle-a", time.Now())
	require.NoError(t, err)
	require.False(t, fresh, "claims must survive a restart")
}

func TestSweepBefore(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()

	now := time.Now()
	_, err := j.Claim(ctx, "old-1", now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = j.Claim(ctx, "old-2", now.Add(-90*time.Minute))
	require.NoError(t, err)
	_, err = j.Claim(ctx, "recent", now.Add(-time.Minute))
	require.NoError(t, err)

	removed, err := j.SweepBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// Swept ids are claimable again.
	fresh, err := j.Claim(ctx, "old-1", now)
	require.NoError(t, err)
	require.True(t, fresh)
}

func TestSweepEmpty(t *testing.T) {
	j, _ := openTestJournal(t)

	removed, err := j.SweepBefore(context.Background(), time.Now())
	require.NoError(t, err)
	require.Zero(t, removed)
}
