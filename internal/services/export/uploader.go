package export

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// UploadResult describes a stored snapshot
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// Uploader stores snapshot files
type Uploader interface {
	Upload(ctx context.Context, key string, contentType string, body io.Reader) (*UploadResult, error)
}

// DirUploader writes snapshots under a local directory
type DirUploader struct {
	root string
}

// NewDirUploader creates a DirUploader rooted at dir
func NewDirUploader(dir string) *DirUploader {
	return &DirUploader{root: dir}
}

// Upload writes body to root/key, creating parent directories
func (u *DirUploader) Upload(ctx context.Context, key string, contentType string, body io.Reader) (*UploadResult, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid export key %q", key)
	}
	path := filepath.Join(u.root, clean)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &UploadResult{
		Key:      key,
		Location: (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
	}, nil
}
