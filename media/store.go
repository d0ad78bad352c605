package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrInvalidPath   = errors.New("invalid asset path")
)

// Store saves, reads and deletes media assets by store-relative path
type Store interface {
	// Save writes data as filename under the asset type's directory, optionally
	// nested in dirHint, and returns the store-relative path
	Save(assetType AssetType, dirHint string, filename string, data io.Reader) (string, error)
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	Delete(relativePath string) error
	// GetFullPath resolves a relative path and refuses anything outside the store
	GetFullPath(relativePath string) (string, error)
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage keeps assets on the local filesystem
type LocalStorage struct {
	basePath string

	mu   sync.RWMutex
	dirs map[AssetType]string
}

func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBase, err)
	}

	ls := &LocalStorage{basePath: absBase, dirs: make(map[AssetType]string)}
	for assetType, sub := range subDirs {
		dir := filepath.Join(absBase, sub)
		if !ls.within(absBase, dir) {
			return nil, fmt.Errorf("subdirectory '%s' resolves outside base path '%s': %w", sub, absBase, ErrInvalidPath)
		}
		ls.dirs[assetType] = dir
	}

	log.Printf("media.store: initialized LocalStorage at %s", absBase)
	return ls, nil
}

func (ls *LocalStorage) within(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (ls *LocalStorage) assetDir(assetType AssetType) (string, error) {
	ls.mu.RLock()
	dir, ok := ls.dirs[assetType]
	ls.mu.RUnlock()
	if ok {
		return dir, nil
	}

	dir = filepath.Join(ls.basePath, string(assetType))
	if !ls.within(ls.basePath, dir) {
		return "", fmt.Errorf("asset type '%s': %w", assetType, ErrInvalidPath)
	}
	ls.mu.Lock()
	ls.dirs[assetType] = dir
	ls.mu.Unlock()
	return dir, nil
}

func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dir, err := ls.assetDir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dir, err)
	}
	return dir, nil
}

// Save writes to a temporary file first so readers never see a partial asset
func (ls *LocalStorage) Save(assetType AssetType, dirHint string, filename string, data io.Reader) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("filename %q: %w", filename, ErrInvalidPath)
	}

	targetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}
	if dirHint != "" {
		nested := filepath.Join(targetDir, dirHint)
		if !ls.within(targetDir, nested) {
			return "", fmt.Errorf("directory hint %q: %w", dirHint, ErrInvalidPath)
		}
		if err := os.MkdirAll(nested, 0755); err != nil {
			return "", fmt.Errorf("failed to create sub-directory '%s': %w", nested, err)
		}
		targetDir = nested
	}

	tmp, err := os.CreateTemp(targetDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file in '%s': %w", targetDir, err)
	}
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write asset data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to flush asset data: %w", err)
	}

	fullPath := filepath.Join(targetDir, filename)
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move asset into place at '%s': %w", fullPath, err)
	}

	rel, err := filepath.Rel(ls.basePath, fullPath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}
	log.Printf("media.store: saved asset to %s", fullPath)
	return filepath.ToSlash(rel), nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("'%s': %w", relativePath, ErrAssetNotFound)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("'%s' is a directory: %w", relativePath, ErrAssetNotFound)
	}
	return f, info, nil
}

// Delete is idempotent: a missing asset is not an error
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	log.Printf("media.store: deleted asset %s", fullPath)
	return nil
}

func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	if relativePath == "" || filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("'%s': %w", relativePath, ErrInvalidPath)
	}
	fullPath := filepath.Join(ls.basePath, filepath.FromSlash(relativePath))
	if !ls.within(ls.basePath, fullPath) {
		return "", fmt.Errorf("access denied for '%s': %w", relativePath, ErrInvalidPath)
	}
	return fullPath, nil
}
