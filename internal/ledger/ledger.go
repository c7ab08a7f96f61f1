// Package ledger persists play records and best scores in Badger. The append
// and the best-score upsert for one finished session are applied in a single
// transaction; concurrent writers rely on Badger's conflict detection and a
// bounded retry loop rather than application-level locks.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"

	"github.com/flycamp/arcade/internal/models"
)

var ErrNotFound = errors.New("ledger: not found")

// PersistenceError wraps a failed write. The in-memory session result is not
// lost; finalize may be retried by the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("ledger %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the ledger surface the session engine and the query API use.
type Store interface {
	// Finalize appends the play record and applies the strict-improvement
	// best-score upsert as one logical unit.
	Finalize(ctx context.Context, play models.PlayRecord) error
	Best(ctx context.Context, key models.BestKey) (*models.BestScore, error)
	Bests(ctx context.Context) ([]models.BestScore, error)
	Plays(ctx context.Context, tokenID int) ([]models.PlayRecord, error)
	Close() error
}

const (
	conflictRetries = 5
	retryBackoff    = 25 * time.Millisecond
)

// BadgerLedger implements Store with Badger.
type BadgerLedger struct {
	db *badger.DB
}

func Open(path string) (*BadgerLedger, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &BadgerLedger{db: db}, nil
}

func (l *BadgerLedger) Close() error {
	return l.db.Close()
}

func playKey(p models.PlayRecord) []byte {
	return []byte(fmt.Sprintf("play:%d:%s", p.TokenID, p.PlayID))
}

func bestKey(k models.BestKey) []byte {
	return []byte(fmt.Sprintf("best:%d:%d:%d", k.TokenID, k.GameNumber, k.LevelNumber))
}

func (l *BadgerLedger) Finalize(ctx context.Context, play models.PlayRecord) error {
	ctx, span := otel.Tracer("arcade/ledger").Start(ctx, "ledger.Finalize")
	defer span.End()

	var err error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		err = l.db.Update(func(txn *badger.Txn) error {
			return finalizeTxn(txn, play)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return &PersistenceError{Op: "finalize", Err: ctx.Err()}
		}
	}
	if err != nil {
		return &PersistenceError{Op: "finalize", Err: err}
	}
	return nil
}

// finalizeTxn appends the immutable play record and upserts the best-score
// row, updating it only on strict improvement. Ties leave the row untouched.
func finalizeTxn(txn *badger.Txn, play models.PlayRecord) error {
	data, err := json.Marshal(play)
	if err != nil {
		return err
	}
	if err := txn.Set(playKey(play), data); err != nil {
		return err
	}

	key := models.BestKey{
		TokenID:     play.TokenID,
		GameNumber:  play.GameNumber,
		LevelNumber: play.LevelNumber,
	}
	var best models.BestScore
	item, err := txn.Get(bestKey(key))
	switch {
	case err == badger.ErrKeyNotFound:
		best = models.BestScore{
			BestKey:           key,
			HighestScore:      play.Score,
			TimestampAchieved: play.EndTimestamp,
		}
	case err != nil:
		return err
	default:
		if verr := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &best)
		}); verr != nil {
			return verr
		}
		if play.Score <= best.HighestScore {
			return nil
		}
		best.HighestScore = play.Score
		best.TimestampAchieved = play.EndTimestamp
	}

	bdata, err := json.Marshal(best)
	if err != nil {
		return err
	}
	return txn.Set(bestKey(key), bdata)
}

func (l *BadgerLedger) Best(ctx context.Context, key models.BestKey) (*models.BestScore, error) {
	var out models.BestScore
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bestKey(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *BadgerLedger) Bests(ctx context.Context) ([]models.BestScore, error) {
	var out []models.BestScore
	err := l.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, "best:", func(v []byte) error {
			var b models.BestScore
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			out = append(out, b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *BadgerLedger) Plays(ctx context.Context, tokenID int) ([]models.PlayRecord, error) {
	var out []models.PlayRecord
	prefix := fmt.Sprintf("play:%d:", tokenID)
	err := l.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, func(v []byte) error {
			var p models.PlayRecord
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanPrefix(txn *badger.Txn, prefix string, fn func(v []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
