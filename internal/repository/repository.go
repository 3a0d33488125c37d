package repository

import (
	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/repository/sqlite"
)

// NewHistoryRepository returns a HistoryRepository backed by SQLite at the given path.
// The path is typically from config.Settings.StateFile() (default ~/.config/skydash/history.sqlite).
func NewHistoryRepository(path string) (app.HistoryRepository, error) {
	return sqlite.New(path)
}
