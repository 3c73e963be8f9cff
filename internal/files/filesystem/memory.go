package filesystem

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryFileInfo implements fs.FileInfo for in-memory files
type memoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (f *memoryFileInfo) Name() string       { return f.name }
func (f *memoryFileInfo) Size() int64        { return f.size }
func (f *memoryFileInfo) Mode() fs.FileMode  { return f.mode }
func (f *memoryFileInfo) ModTime() time.Time { return f.modTime }
func (f *memoryFileInfo) IsDir() bool        { return f.isDir }
func (f *memoryFileInfo) Sys() interface{}   { return nil }

type memoryEntry struct {
	content []byte
	info    *memoryFileInfo
}

// MemoryFileSystem implements FileSystemProvider for in-memory testing.
// Paths use forward slashes; relative paths resolve against the root.
type MemoryFileSystem struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry // absolute path -> entry
	root    string
}

// NewMemoryFileSystem creates a new in-memory filesystem.
// The root path is normalized to use forward slashes for virtual filesystem consistency.
func NewMemoryFileSystem(root string) *MemoryFileSystem {
	root = path.Clean(filepath.ToSlash(root))

	mfs := &MemoryFileSystem{
		entries: make(map[string]*memoryEntry),
		root:    root,
	}
	mfs.entries[root] = newDirEntry(root)
	return mfs
}

// Root returns the normalized root directory.
func (mfs *MemoryFileSystem) Root() string {
	return mfs.root
}

// AddFile adds a file to the in-memory filesystem
func (mfs *MemoryFileSystem) AddFile(path string, content string) {
	mfs.AddFileWithTime(path, content, time.Now())
}

// AddFileWithTime adds a file with a specific modification time
func (mfs *MemoryFileSystem) AddFileWithTime(filePath string, content string, modTime time.Time) {
	absPath := mfs.abs(filePath)
	contentBytes := []byte(content)

	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.entries[absPath] = &memoryEntry{
		content: contentBytes,
		info: &memoryFileInfo{
			name:    path.Base(absPath),
			size:    int64(len(contentBytes)),
			mode:    0644,
			modTime: modTime,
		},
	}
	mfs.ensureDirectoriesExist(absPath)
}

// AddDir adds an empty directory (and its parents).
func (mfs *MemoryFileSystem) AddDir(dirPath string) {
	absPath := mfs.abs(dirPath)

	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	if _, exists := mfs.entries[absPath]; !exists {
		mfs.entries[absPath] = newDirEntry(absPath)
	}
	mfs.ensureDirectoriesExist(absPath)
}

// Exists reports whether a file or directory exists at the given path.
func (mfs *MemoryFileSystem) Exists(p string) bool {
	absPath := mfs.abs(p)

	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	_, ok := mfs.entries[absPath]
	return ok
}

// Files returns the absolute paths of all regular files, sorted.
func (mfs *MemoryFileSystem) Files() []string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	var out []string
	for p, e := range mfs.entries {
		if !e.info.isDir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// OpenFile implements FileSystemProvider.OpenFile
func (mfs *MemoryFileSystem) OpenFile(filePath string) (io.ReadCloser, error) {
	content, err := mfs.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// ReadFile implements FileSystemProvider.ReadFile
func (mfs *MemoryFileSystem) ReadFile(filePath string) ([]byte, error) {
	absPath := mfs.abs(filePath)

	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	entry, exists := mfs.entries[absPath]
	if !exists {
		return nil, fmt.Errorf("file not found: %s: %w", filePath, fs.ErrNotExist)
	}
	if entry.info.isDir {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	out := make([]byte, len(entry.content))
	copy(out, entry.content)
	return out, nil
}

// ReadDir implements FileSystemProvider.ReadDir
func (mfs *MemoryFileSystem) ReadDir(dirPath string) ([]FileInfo, error) {
	absPath := mfs.abs(dirPath)

	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	entry, exists := mfs.entries[absPath]
	if !exists {
		return nil, fmt.Errorf("failed to read directory: %s: %w", dirPath, fs.ErrNotExist)
	}
	if !entry.info.isDir {
		return nil, fmt.Errorf("failed to read directory: not a directory: %s", dirPath)
	}

	var result []FileInfo
	for p, e := range mfs.entries {
		if p != absPath && path.Dir(p) == absPath {
			result = append(result, e.info)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

// Stat implements FileSystemProvider.Stat
func (mfs *MemoryFileSystem) Stat(statPath string) (FileInfo, error) {
	absPath := mfs.abs(statPath)

	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	entry, exists := mfs.entries[absPath]
	if !exists {
		return nil, fmt.Errorf("path not found: %s: %w", statPath, fs.ErrNotExist)
	}
	return entry.info, nil
}

// Remove implements FileSystemProvider.Remove
func (mfs *MemoryFileSystem) Remove(removePath string) error {
	absPath := mfs.abs(removePath)

	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	entry, exists := mfs.entries[absPath]
	if !exists {
		return fmt.Errorf("remove %s: %w", removePath, fs.ErrNotExist)
	}
	if entry.info.isDir {
		for p := range mfs.entries {
			if p != absPath && path.Dir(p) == absPath {
				return fmt.Errorf("remove %s: directory not empty", removePath)
			}
		}
	}
	delete(mfs.entries, absPath)
	return nil
}

// abs resolves a path against the root using forward slashes.
func (mfs *MemoryFileSystem) abs(p string) string {
	p = filepath.ToSlash(p)
	if p == "" || p == "." {
		return mfs.root
	}
	if !path.IsAbs(p) {
		p = path.Join(mfs.root, p)
	}
	return path.Clean(p)
}

// ensureDirectoriesExist creates directory entries for all parent directories.
// Caller must hold the write lock.
func (mfs *MemoryFileSystem) ensureDirectoriesExist(filePath string) {
	dir := path.Dir(filePath)
	if dir == "." || dir == filePath || !strings.HasPrefix(dir, mfs.root) {
		return
	}
	if _, exists := mfs.entries[dir]; exists {
		return
	}
	mfs.entries[dir] = newDirEntry(dir)
	mfs.ensureDirectoriesExist(dir)
}

func newDirEntry(p string) *memoryEntry {
	return &memoryEntry{
		info: &memoryFileInfo{
			name:    path.Base(p),
			mode:    0755 | fs.ModeDir,
			modTime: time.Now(),
			isDir:   true,
		},
	}
}

var _ FileSystemProvider = (*MemoryFileSystem)(nil)
