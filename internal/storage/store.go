// Package storage implements the shared artifact directory on the local
// filesystem. Each session owns one sub-directory of the root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/ports"
	"github.com/aretw0/amrviz/pkg/vtk"
	"github.com/mitchellh/go-homedir"
)

// Store implements ports.ArtifactStore under a root directory.
type Store struct {
	root   string
	logger *slog.Logger
}

var _ ports.ArtifactStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report removals.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates the root directory if needed. A leading ~ is expanded.
func New(root string, opts ...Option) (*Store, error) {
	if root == "" {
		root = "data"
	}
	expanded, err := homedir.Expand(root)
	if err != nil {
		return nil, fmt.Errorf("failed to expand storage root: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	s := &Store{root: abs, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute storage root.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory of the session, creating it on first use.
func (s *Store) Dir(sessionID string) (string, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	return dir, nil
}

// cleanName rejects absolute paths and any attempt to leave the namespace.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || strings.HasPrefix(name, "/") || !fs.ValidPath(name) {
		return "", fmt.Errorf("%w: %q", domain.ErrFileNotFound, name)
	}
	return name, nil
}

func (s *Store) resolve(sessionID, name string) (string, error) {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return "", err
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}

// Clear removes every file of the session and the sub-directories holding
// data pieces. The session directory itself is kept.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read session directory: %w", err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			err = s.clearDir(p)
		} else {
			err = os.Remove(p)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", entry.Name(), err)
		}
		s.logger.Debug("Removed artifact", "session_id", sessionID, "file", entry.Name())
	}
	return nil
}

// clearDir removes the files of one sub-directory, then the directory.
// Deeper nesting is never produced by a solver and is left in place.
func (s *Store) clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return os.Remove(dir)
}

// Create returns a writer whose content replaces name atomically on Close.
// Abort on the writer drops the content instead.
func (s *Store) Create(ctx context.Context, sessionID, name string) (io.WriteCloser, error) {
	dest, err := s.resolve(sessionID, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	// Same directory as the destination so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &atomicFile{File: tmp, dest: dest}, nil
}

type atomicFile struct {
	*os.File
	dest   string
	closed bool
}

func (f *atomicFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	tmpPath := f.File.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := f.File.Sync(); err != nil {
		_ = f.File.Close()
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := f.File.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Abort discards the written content. The destination is left as it was.
func (f *atomicFile) Abort() error {
	if f.closed {
		return nil
	}
	f.closed = true
	tmpPath := f.File.Name()
	err := f.File.Close()
	if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove temp file: %w", rmErr)
	}
	return err
}

// Open opens name for reading.
func (s *Store) Open(ctx context.Context, sessionID, name string) (fs.File, error) {
	p, err := s.resolve(sessionID, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, name)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrFileNotFound, name)
	}
	return f, nil
}

// Stat describes name.
func (s *Store) Stat(ctx context.Context, sessionID, name string) (fs.FileInfo, error) {
	p, err := s.resolve(sessionID, name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, name)
		}
		return nil, err
	}
	return info, nil
}

// List returns the .pvd descriptors at the top of the session directory.
func (s *Store) List(ctx context.Context, sessionID string) ([]string, error) {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list session directory: %w", err)
	}
	files := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(path.Ext(entry.Name()), vtk.ExtPVD) {
			files = append(files, entry.Name())
		}
	}
	sort.Slice(files, func(i, j int) bool { return naturalLess(files[i], files[j]) })
	return files, nil
}

// FS exposes the session directory read-only.
func (s *Store) FS(sessionID string) (fs.FS, error) {
	dir, err := s.Dir(sessionID)
	if err != nil {
		return nil, err
	}
	return os.DirFS(dir), nil
}

// Sessions returns the names of the session directories.
func (s *Store) Sessions() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage root: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && domain.ValidateSessionID(entry.Name()) == nil {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// ClearRoot removes the regular files lying directly in the storage root,
// outside any session. Directories are left alone.
func (s *Store) ClearRoot(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage root: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to delete %s: %w", entry.Name(), err)
		}
		s.logger.Debug("Removed stray file", "file", entry.Name())
		removed++
	}
	return removed, nil
}

// naturalLess orders solution_2 before solution_10.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		da, db := isDigit(a[0]), isDigit(b[0])
		if da && db {
			na, ra := splitDigits(a)
			nb, rb := splitDigits(b)
			na, nb = strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}
