package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metagent/pkg/utils"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "records", "metagent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordTurn(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &TurnRecord{
		ID:           utils.NewTurnID(),
		UserID:       42,
		StageBefore:  "link_collection",
		StageAfter:   "getting_deeper",
		FallbackUsed: true,
		URLsAdded:    2,
	}
	require.NoError(t, store.RecordTurn(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero(), "timestamp back-filled on insert")

	n, err := store.TurnCount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.TurnCount(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecordSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordSession(ctx, &SessionRecord{
		ID:       utils.NewSessionID(),
		UserID:   42,
		Outcome:  "generated",
		Artifact: "/work/scraper.py",
		Duration: 45 * time.Second,
	}))

	n, err := store.SessionCount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDuplicateTurnIDRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &TurnRecord{ID: "turn-dup", UserID: 1, StageBefore: "a", StageAfter: "b"}
	require.NoError(t, store.RecordTurn(ctx, rec))
	assert.Error(t, store.RecordTurn(ctx, &TurnRecord{ID: "turn-dup", UserID: 1, StageBefore: "a", StageAfter: "b"}))
}
