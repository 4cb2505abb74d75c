package fileops

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadOptions bounds a ReadFile call.
type ReadOptions struct {
	// BaseDir the file must live in. Defaults to the file's own directory,
	// which still rejects symlinks pointing elsewhere.
	BaseDir string
	// MaxSize in bytes. Required.
	MaxSize int64
}

// ReadFile validates path against opts, reads it and checks the content.
func ReadFile(path string, opts ReadOptions) ([]byte, error) {
	path = ExpandPath(path)

	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(path)
	}

	if err := ValidateFileInDirectory(path, baseDir); err != nil {
		return nil, fmt.Errorf("file containment validation failed: %w", err)
	}

	if err := ValidateFileSizeLimit(path, opts.MaxSize); err != nil {
		return nil, fmt.Errorf("file size check failed: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if err := ValidateContentSecurity(string(data)); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return data, nil
}
