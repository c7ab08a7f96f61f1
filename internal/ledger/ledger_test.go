package ledger

import (
	"context"
	"sync"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flycamp/arcade/internal/models"
)

func openTestLedger(t *testing.T) *BadgerLedger {
	t.Helper()
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func play(token, game, level, score int, beginTS, endTS int64) models.PlayRecord {
	return models.PlayRecord{
		PlayID:         uuid.NewString(),
		TokenID:        token,
		GameNumber:     game,
		LevelNumber:    level,
		Score:          score,
		BeginTimestamp: beginTS,
		EndTimestamp:   endTS,
	}
}

func TestFinalizeInsertsBestOnFirstPlay(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Finalize(ctx, play(1, 2, 1, 120, 100, 130)))

	best, err := l.Best(ctx, models.BestKey{TokenID: 1, GameNumber: 2, LevelNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 120, best.HighestScore)
	assert.Equal(t, int64(130), best.TimestampAchieved)
}

func TestLowerScoreLeavesBestUntouched(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Finalize(ctx, play(1, 2, 1, 120, 100, 130)))
	require.NoError(t, l.Finalize(ctx, play(1, 2, 1, 90, 200, 230)))

	best, err := l.Best(ctx, models.BestKey{TokenID: 1, GameNumber: 2, LevelNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 120, best.HighestScore)
	assert.Equal(t, int64(130), best.TimestampAchieved)

	// Both plays are still in the append-only log.
	plays, err := l.Plays(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, plays, 2)
}

func TestHigherScoreUpdatesBestAndTimestamp(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Finalize(ctx, play(1, 2, 1, 120, 100, 130)))
	require.NoError(t, l.Finalize(ctx, play(1, 2, 1, 150, 300, 330)))

	best, err := l.Best(ctx, models.BestKey{TokenID: 1, GameNumber: 2, LevelNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 150, best.HighestScore)
	assert.Equal(t, int64(330), best.TimestampAchieved)
}

func TestTieNeverChangesStoredTimestamp(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Finalize(ctx, play(7, 1, 1, 50, 10, 20)))
	require.NoError(t, l.Finalize(ctx, play(7, 1, 1, 50, 500, 520)))

	best, err := l.Best(ctx, models.BestKey{TokenID: 7, GameNumber: 1, LevelNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 50, best.HighestScore)
	assert.Equal(t, int64(20), best.TimestampAchieved)
}

func TestBestIsMonotonicOverAnySequence(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	key := models.BestKey{TokenID: 3, GameNumber: 3, LevelNumber: 2}

	scores := []int{40, 10, 40, 90, 70, 90, 120, 5}
	max := 0
	for i, s := range scores {
		require.NoError(t, l.Finalize(ctx, play(3, 3, 2, s, int64(i*100), int64(i*100+30))))
		if s > max {
			max = s
		}
		best, err := l.Best(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, max, best.HighestScore)
	}
}

func TestOverlappingFinalizeConflictsOnce(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	// A hand-rolled transaction on the same best row overlaps a Finalize. The
	// Finalize commits first; the overlapping transaction must lose with a
	// conflict and its play append must never land.
	txn := l.db.NewTransaction(true)
	defer txn.Discard()
	require.NoError(t, finalizeTxn(txn, play(1, 1, 1, 30, 0, 1)))

	require.NoError(t, l.Finalize(ctx, play(1, 1, 1, 10, 0, 2)))
	assert.ErrorIs(t, txn.Commit(), badger.ErrConflict)

	plays, err := l.Plays(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, plays, 1, "the conflicted transaction must not have appended")

	best, err := l.Best(ctx, models.BestKey{TokenID: 1, GameNumber: 1, LevelNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 10, best.HighestScore)
}

func TestConcurrentFinalizesAppendExactlyOnce(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			errs <- l.Finalize(ctx, play(2, 1, 1, score, 0, int64(score)))
		}(100 + i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	plays, err := l.Plays(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, plays, writers, "a retried finalize must not double-append")

	best, err := l.Best(ctx, models.BestKey{TokenID: 2, GameNumber: 1, LevelNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 100+writers-1, best.HighestScore)
}

func TestBestsSeparatedByKey(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Finalize(ctx, play(1, 1, 1, 10, 0, 1)))
	require.NoError(t, l.Finalize(ctx, play(1, 2, 1, 20, 0, 1)))
	require.NoError(t, l.Finalize(ctx, play(2, 1, 1, 30, 0, 1)))

	bests, err := l.Bests(ctx)
	require.NoError(t, err)
	assert.Len(t, bests, 3)

	_, err = l.Best(ctx, models.BestKey{TokenID: 9, GameNumber: 1, LevelNumber: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}
