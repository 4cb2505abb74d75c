package fileops

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePathSecurity(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		expectErr error
	}{
		{name: "valid simple path", path: "faq/benefits.md"},
		{name: "valid absolute path", path: "/srv/kb/kb.json"},
		{name: "dots inside a name are fine", path: "notes..v2/kb.json"},
		{name: "empty path", path: "", expectErr: ErrEmptyPath},
		{name: "whitespace only path", path: "   \t\n  ", expectErr: ErrEmptyPath},
		{name: "leading traversal", path: "../../../etc/passwd", expectErr: ErrPathTraversal},
		{name: "traversal in middle", path: "valid/../../etc/passwd", expectErr: ErrPathTraversal},
		{name: "bare parent", path: "..", expectErr: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathSecurity(tt.path)
			if tt.expectErr == nil {
				if err != nil {
					t.Errorf("Expected no error for %q, got %v", tt.path, err)
				}
				return
			}
			if !errors.Is(err, tt.expectErr) {
				t.Errorf("Expected %v for %q, got %v", tt.expectErr, tt.path, err)
			}
		})
	}
}

func TestValidateFileInDirectory(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()

	inside := filepath.Join(base, "kb.json")
	if err := os.WriteFile(inside, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	external := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(external, []byte("secret"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(base, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("file inside base", func(t *testing.T) {
		if err := ValidateFileInDirectory(inside, base); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("file outside base", func(t *testing.T) {
		err := ValidateFileInDirectory(external, base)
		if !errors.Is(err, ErrOutsideBaseDir) {
			t.Errorf("Expected ErrOutsideBaseDir, got %v", err)
		}
	})

	t.Run("directory rejected", func(t *testing.T) {
		err := ValidateFileInDirectory(filepath.Join(base, "sub"), base)
		if err == nil || !strings.Contains(err.Error(), "directory") {
			t.Errorf("Expected directory error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		err := ValidateFileInDirectory(filepath.Join(base, "nope.json"), base)
		if err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Errorf("Expected missing file error, got %v", err)
		}
	})

	t.Run("symlink inside pointing outside", func(t *testing.T) {
		link := filepath.Join(base, "escape.txt")
		if err := os.Symlink(external, link); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		err := ValidateFileInDirectory(link, base)
		if !errors.Is(err, ErrOutsideBaseDir) {
			t.Errorf("Expected ErrOutsideBaseDir for escaping symlink, got %v", err)
		}
	})

	t.Run("symlink inside pointing inside", func(t *testing.T) {
		link := filepath.Join(base, "alias.json")
		if err := os.Symlink(inside, link); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		if err := ValidateFileInDirectory(link, base); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})
}

func TestValidateFileSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateFileSizeLimit(path, 100); err != nil {
		t.Errorf("Expected file at the limit to pass, got %v", err)
	}
	if err := ValidateFileSizeLimit(path, 99); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Expected ErrFileTooLarge, got %v", err)
	}
	if err := ValidateFileSizeLimit(path, 0); err == nil {
		t.Error("Expected error for non-positive limit")
	}
	if err := ValidateFileSizeLimit(dir, 100); err == nil {
		t.Error("Expected error for directory")
	}
}

func TestValidateContentSecurity(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "plain text", content: "Q1: What is our policy?\nA1: Hybrid.\r\n\tIndented."},
		{name: "unicode", content: "Café prices in €"},
		{name: "empty", content: ""},
		{name: "null byte", content: "abc\x00def", wantErr: true},
		{name: "bell", content: "ring\x07", wantErr: true},
		{name: "script tag", content: "see <SCRIPT>alert(1)</script>", wantErr: true},
		{name: "javascript url", content: "click javascript:void(0)", wantErr: true},
		{name: "event handler", content: `<img onerror="x">`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContentSecurity(tt.content)
			if tt.wantErr && !errors.Is(err, ErrUnsafeContent) {
				t.Errorf("Expected ErrUnsafeContent, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandPath("~/kb/kb.json"); got != filepath.Join(home, "kb", "kb.json") {
		t.Errorf("Expected home expansion, got %s", got)
	}
	if got := ExpandPath("/abs/kb.json"); got != "/abs/kb.json" {
		t.Errorf("Expected unchanged path, got %s", got)
	}
	if got := ExpandPath("~user/kb.json"); got != "~user/kb.json" {
		t.Errorf("Expected unchanged path, got %s", got)
	}
}

func TestIsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.WriteFile(target, nil, 0644); err != nil {
		t.Fatal(err)
	}

	isLink, err := IsSymlink(target)
	if err != nil || isLink {
		t.Errorf("Expected regular file, got link=%v err=%v", isLink, err)
	}

	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	isLink, err = IsSymlink(link)
	if err != nil || !isLink {
		t.Errorf("Expected symlink, got link=%v err=%v", isLink, err)
	}

	if _, err := IsSymlink(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing path")
	}
}
