// Package storage provides the durable storage collaborator consumed by
// the execution engine and checkpoint manager: relative-path-aware file
// primitives against a fixed root, with atomic writes and content hashing.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound indicates that a requested path does not exist.
var ErrNotFound = fmt.Errorf("path not found")

// Store is the storage contract consumed by the orchestration core.
// All paths are relative to a fixed root.
type Store interface {
	// EnsureDir creates the directory (and parents) if it does not exist.
	EnsureDir(path string) error

	// WriteFileAtomic writes content via temp-write + rename so readers
	// never observe a partially written file.
	WriteFileAtomic(path string, content []byte) error

	// ReadFile returns the file's content, or ErrNotFound.
	ReadFile(path string) ([]byte, error)

	// Exists reports whether the path exists.
	Exists(path string) bool

	// DeleteFile removes the file, or returns ErrNotFound.
	DeleteFile(path string) error

	// ListDir returns the names of entries in the directory, sorted.
	ListDir(path string) ([]string, error)
}

// FS is a filesystem-backed Store rooted at a base directory.
// It is safe for concurrent use.
type FS struct {
	root string
	mu   sync.RWMutex
}

// NewFS creates a Store rooted at the given directory. The directory is
// created if it does not exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute root directory of the store.
func (f *FS) Root() string {
	return f.root
}

// resolve maps a relative path onto the root, rejecting escapes.
func (f *FS) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes store root: %s", path)
	}
	return filepath.Join(f.root, cleaned), nil
}

// EnsureDir creates the directory and any missing parents.
func (f *FS) EnsureDir(path string) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return nil
}

// WriteFileAtomic writes content to the path using temp-write + rename.
// Parent directories are created as needed.
func (f *FS) WriteFileAtomic(path string, content []byte) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	return atomicWriteFile(full, content, 0644)
}

// ReadFile returns the content of the file at path.
func (f *FS) ReadFile(path string) ([]byte, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Exists reports whether the path exists (file or directory).
func (f *FS) Exists(path string) bool {
	full, err := f.resolve(path)
	if err != nil {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	_, err = os.Stat(full)
	return err == nil
}

// DeleteFile removes the file at path.
func (f *FS) DeleteFile(path string) error {
	full, err := f.resolve(path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// ListDir returns the sorted names of entries in the directory.
func (f *FS) ListDir(path string) ([]string, error) {
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// CalculateHash returns a fixed-length hex digest of the content.
func CalculateHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// atomicWriteFile writes data to path atomically by writing to a temp
// file in the same directory and renaming it into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Create temp file in same directory to ensure atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
