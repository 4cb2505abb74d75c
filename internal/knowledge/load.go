// Package knowledge supplies the ordered question/answer records that the
// server exposes and the matcher scores.
//
// A knowledge base is read once per process from a JSON or YAML file, a
// flattened text blob, or a directory of markdown files with frontmatter,
// optionally cloned from a git repository first (see GitSource).
package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kbmcp/internal/logging"
	"kbmcp/internal/matcher"
	"kbmcp/pkg/fileops"

	"github.com/adrg/frontmatter"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultMaxFileSize applies when Options.MaxFileSize is zero.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var (
	ErrInvalidRecord     = errors.New("invalid knowledge record")
	ErrUnsupportedFormat = errors.New("unsupported knowledge base format")
)

// Options bounds how knowledge files are read.
type Options struct {
	// MaxFileSize per file in bytes.
	MaxFileSize int64
	// BaseDir every file must live in. Defaults to the knowledge path itself
	// for directories and its parent for single files.
	BaseDir string
	Logger  *logging.AppLogger
}

// Entry is the frontmatter of a markdown knowledge file. The body is the
// answer.
type Entry struct {
	Question string `yaml:"question"`
	Order    *int   `yaml:"order,omitempty"`
}

// Load reads a knowledge base with default options.
func Load(path string) (matcher.KnowledgeBase, error) {
	return LoadWithOptions(path, Options{})
}

// LoadWithOptions reads the knowledge base at path. The format follows the
// extension (.json, .jsonc, .yaml, .yml, .txt) or, for a directory, every *.md file
// below it.
func LoadWithOptions(path string, opts Options) (matcher.KnowledgeBase, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefault()
	}

	path = fileops.ExpandPath(path)
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("invalid knowledge path: %w", fileops.ErrEmptyPath)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access knowledge base: %w", err)
	}

	var kb matcher.KnowledgeBase
	if info.IsDir() {
		kb, err = loadMarkdownDir(path, opts)
	} else {
		kb, err = loadFile(path, opts)
	}
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("Knowledge base loaded", "path", path, "records", len(kb))
	return kb, nil
}

func loadFile(path string, opts Options) (matcher.KnowledgeBase, error) {
	data, err := fileops.ReadFile(path, fileops.ReadOptions{
		BaseDir: opts.BaseDir,
		MaxSize: opts.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	var kb matcher.KnowledgeBase
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		// Comments and trailing commas are allowed in hand-maintained files.
		data = jsonc.ToJSON(data)
		if len(bytes.TrimSpace(data)) == 0 {
			return matcher.KnowledgeBase{}, nil
		}
		if err := json.Unmarshal(data, &kb); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &kb); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	case ".txt":
		kb = ParseText(string(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if kb == nil {
		kb = matcher.KnowledgeBase{}
	}
	if err := Validate(kb); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return kb, nil
}

type orderedRecord struct {
	record matcher.Record
	order  *int
	path   string
}

func loadMarkdownDir(dir string, opts Options) (matcher.KnowledgeBase, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = dir
	}

	files, err := fileops.ScanFiles(dir, func(name string) bool {
		return strings.EqualFold(filepath.Ext(name), ".md")
	}, 0)
	if err != nil {
		return nil, err
	}

	entries := make([]orderedRecord, 0, len(files))
	for _, file := range files {
		if err := fileops.ValidatePathSecurity(file.Path); err != nil {
			return nil, fmt.Errorf("%s: %w", file.Path, err)
		}

		data, err := fileops.ReadFile(filepath.Join(dir, filepath.FromSlash(file.Path)), fileops.ReadOptions{
			BaseDir: baseDir,
			MaxSize: opts.MaxFileSize,
		})
		if err != nil {
			return nil, err
		}

		var matter Entry
		body, err := frontmatter.Parse(bytes.NewReader(data), &matter)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad frontmatter: %v", ErrInvalidRecord, file.Path, err)
		}

		rec := matcher.Record{
			Question: strings.TrimSpace(matter.Question),
			Answer:   strings.TrimSpace(string(body)),
		}
		if rec.Question == "" {
			return nil, fmt.Errorf("%w: %s: missing question in frontmatter", ErrInvalidRecord, file.Path)
		}

		opts.Logger.Debug("Parsed knowledge file", "file", file.Path, "question", rec.Question)
		entries = append(entries, orderedRecord{record: rec, order: matter.Order, path: file.Path})
	}

	// explicit order first, then by path
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.order != nil && b.order != nil && *a.order != *b.order:
			return *a.order < *b.order
		case a.order != nil && b.order == nil:
			return true
		case a.order == nil && b.order != nil:
			return false
		}
		return a.path < b.path
	})

	kb := make(matcher.KnowledgeBase, len(entries))
	for i, e := range entries {
		kb[i] = e.record
	}
	return kb, nil
}

// Validate rejects records whose question is blank.
func Validate(kb matcher.KnowledgeBase) error {
	for i, rec := range kb {
		if strings.TrimSpace(rec.Question) == "" {
			return fmt.Errorf("%w: Q%d has an empty question", ErrInvalidRecord, i+1)
		}
	}
	return nil
}
