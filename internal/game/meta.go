package game

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/flycamp/arcade/internal/models"
)

// ReadMeta loads the session metadata handoff written by the console front
// end. A missing file falls back to game 1, level 1, no controller.
func ReadMeta(path string) (models.SessionMeta, error) {
	meta := models.SessionMeta{GameNumber: 1, LevelNumber: 1}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("read session meta: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse session meta: %w", err)
	}
	if meta.GameNumber == 0 {
		meta.GameNumber = 1
	}
	if meta.LevelNumber == 0 {
		meta.LevelNumber = 1
	}
	return meta, nil
}

// WriteDoneMarker persists the completion signal the front end polls for. It
// is written immediately after the ledger write so the leaderboard can be
// shown while the score screen is still up.
func WriteDoneMarker(path string) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte("done"), 0o644); err != nil {
		return fmt.Errorf("write done marker: %w", err)
	}
	return nil
}
