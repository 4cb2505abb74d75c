package fileops

import (
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
)

// DefaultMaxDepth limits ScanFiles recursion when maxDepth is not positive.
const DefaultMaxDepth = 20

// FileInfo describes a file found by ScanFiles.
type FileInfo struct {
	// Name is the base filename.
	Name string
	// Path is slash separated and relative to the scan root.
	Path string
	Size int64
}

var skipDirs = []string{
	"node_modules",
	".git",
	"vendor",
	"build",
	"dist",
	".cache",
	"__pycache__",
}

// ScanFiles lists regular files under scanPath in lexical path order.
// Hidden entries and well known build directories are skipped, symlinks are
// not followed, and filter (when non-nil) selects files by base name.
func ScanFiles(scanPath string, filter func(name string) bool, maxDepth int) ([]FileInfo, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	root, err := os.OpenRoot(ExpandPath(scanPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open scan root: %w", err)
	}
	defer root.Close()

	var files []FileInfo
	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == "." {
				return err
			}
			// unreadable entries are skipped
			return nil
		}
		if path == "." {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || slices.Contains(skipDirs, name) {
				return fs.SkipDir
			}
			if strings.Count(path, "/")+1 >= maxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}
		if filter != nil && !filter(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{Name: name, Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory scan failed: %w", err)
	}

	return files, nil
}
