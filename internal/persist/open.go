package persist

import (
	"io"
	"log/slog"

	"InkBoard/internal/state"
)

// MemoryPath selects the volatile repository instead of a database file.
const MemoryPath = "memory"

// Repository is a stroke repository that holds resources until closed.
type Repository interface {
	state.Repository
	io.Closer
}

// Open returns the repository for path: MemoryPath keeps strokes in memory
// for the life of the process, anything else is a SQLite database file.
func Open(path string, log *slog.Logger) (Repository, error) {
	if log == nil {
		log = slog.Default()
	}
	if path == MemoryPath {
		log.Warn("strokes are kept in memory only and are lost on exit")
		return NewMemoryRepository(), nil
	}
	return OpenSQLite(path, log)
}
