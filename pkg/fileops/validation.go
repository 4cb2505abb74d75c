package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath      = errors.New("path cannot be empty")
	ErrPathTraversal  = errors.New("path traversal not allowed")
	ErrOutsideBaseDir = errors.New("file is not within base directory")
	ErrFileTooLarge   = errors.New("file exceeds size limit")
	ErrUnsafeContent  = errors.New("content failed security validation")
)

// markupPatterns are rejected case-insensitively by ValidateContentSecurity.
var markupPatterns = []string{
	"<script",
	"javascript:",
	"vbscript:",
	"data:text/html",
	"onload=",
	"onerror=",
}

// ValidatePathSecurity rejects empty paths and any ".." component.
// It does not touch the filesystem.
func ValidatePathSecurity(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}

	for _, part := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return ErrPathTraversal
		}
	}

	return nil
}

// ValidateFileInDirectory checks that filePath is a regular file inside
// baseDir. Symlinks are resolved and their target must stay inside too.
func ValidateFileInDirectory(filePath, baseDir string) error {
	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("cannot resolve file path: %w", err)
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("cannot resolve base directory: %w", err)
	}

	if !within(absBaseDir, absFilePath) {
		return ErrOutsideBaseDir
	}

	info, err := os.Stat(absFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", filepath.Base(filePath))
		}
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	isLink, err := IsSymlink(absFilePath)
	if err != nil {
		return err
	}
	if isLink {
		resolved, err := filepath.EvalSymlinks(absFilePath)
		if err != nil {
			return fmt.Errorf("cannot resolve symlink: %w", err)
		}
		resolvedBase, err := filepath.EvalSymlinks(absBaseDir)
		if err != nil {
			resolvedBase = absBaseDir
		}
		if !within(resolvedBase, resolved) {
			return fmt.Errorf("%w: symlink resolves outside base directory", ErrOutsideBaseDir)
		}
	}

	return nil
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateFileSizeLimit fails when filePath is larger than maxSize bytes.
func ValidateFileSizeLimit(filePath string, maxSize int64) error {
	if maxSize <= 0 {
		return fmt.Errorf("invalid size limit: %d", maxSize)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", filepath.Base(filePath))
		}
		return fmt.Errorf("cannot access file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if info.Size() > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds limit %d bytes", ErrFileTooLarge, info.Size(), maxSize)
	}

	return nil
}

// ValidateContentSecurity rejects control characters other than \n, \r and
// \t, and a small set of markup injection patterns.
func ValidateContentSecurity(content string) error {
	for _, r := range content {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return fmt.Errorf("%w: control character %U", ErrUnsafeContent, r)
		}
	}

	lower := strings.ToLower(content)
	for _, pattern := range markupPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: contains %q", ErrUnsafeContent, pattern)
		}
	}

	return nil
}

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// IsSymlink reports whether path itself is a symbolic link.
func IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat path: %w", err)
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}
