package ports

import (
	"context"
	"io"
	"io/fs"
)

// ArtifactStore is the shared directory where solvers write interchange
// files and from which viewers read them. Names are slash-separated paths
// relative to a session namespace.
type ArtifactStore interface {
	// Clear removes every file of the session, keeping the namespace itself.
	Clear(ctx context.Context, sessionID string) error

	// Create opens name for writing. The file becomes visible on Close.
	// A writer that also has an Abort() error method discards its content
	// when Abort is called instead of Close.
	Create(ctx context.Context, sessionID, name string) (io.WriteCloser, error)

	// Open opens name for reading.
	// Returns domain.ErrFileNotFound if it does not exist.
	Open(ctx context.Context, sessionID, name string) (fs.File, error)

	// Stat describes name without opening it.
	// Returns domain.ErrFileNotFound if it does not exist.
	Stat(ctx context.Context, sessionID, name string) (fs.FileInfo, error)

	// List returns the sorted top-level descriptor files of the session.
	List(ctx context.Context, sessionID string) ([]string, error)

	// FS exposes the session namespace as a read-only file system.
	FS(sessionID string) (fs.FS, error)

	// Dir returns the host directory of the session, for external processes.
	Dir(sessionID string) (string, error)
}
