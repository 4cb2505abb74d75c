package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"kbmcp/internal/logging"
	"kbmcp/internal/matcher"
	"kbmcp/pkg/fileops"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testOptions() Options {
	logger, _ := logging.NewTestLogger()
	return Options{Logger: logger}
}

var sampleKB = matcher.KnowledgeBase{
	{Question: "What is our company's vacation policy?", Answer: "20 days."},
	{Question: "How do I request a new software license?", Answer: "Open an IT ticket."},
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "kb.json"), `[
  {"question": "What is our company's vacation policy?", "answer": "20 days."},
  {"question": "How do I request a new software license?", "answer": "Open an IT ticket."}
]`)

	kb, err := LoadWithOptions(path, testOptions())
	require.NoError(t, err)
	assert.Equal(t, sampleKB, kb)
}

func TestLoad_JSONWithComments(t *testing.T) {
	content := `[
  // HR
  {"question": "What is our company's vacation policy?", "answer": "20 days."},
  /* IT */
  {"question": "How do I request a new software license?", "answer": "Open an IT ticket.",},
]`
	for _, name := range []string{"kb.json", "kb.jsonc"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(t.TempDir(), name), content)
			kb, err := LoadWithOptions(path, testOptions())
			require.NoError(t, err)
			assert.Equal(t, sampleKB, kb)
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	content := `- question: What is our company's vacation policy?
  answer: 20 days.
- question: How do I request a new software license?
  answer: Open an IT ticket.
`
	for _, name := range []string{"kb.yaml", "kb.yml"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(t.TempDir(), name), content)
			kb, err := LoadWithOptions(path, testOptions())
			require.NoError(t, err)
			assert.Equal(t, sampleKB, kb)
		})
	}
}

func TestLoad_Text(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "kb.txt"), Format(sampleKB))

	kb, err := LoadWithOptions(path, testOptions())
	require.NoError(t, err)
	assert.Equal(t, sampleKB, kb)
}

func TestLoad_EmptyFilesGiveEmptyKB(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"empty.json", "list.json", "empty.yaml", "empty.txt"} {
		content := ""
		if name == "list.json" {
			content = "[]"
		}
		path := writeFile(t, filepath.Join(dir, name), content)

		kb, err := LoadWithOptions(path, testOptions())
		require.NoError(t, err, name)
		assert.NotNil(t, kb, name)
		assert.Empty(t, kb, name)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadWithOptions(filepath.Join(dir, "missing.json"), testOptions())
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := LoadWithOptions("  ", testOptions())
		assert.ErrorIs(t, err, fileops.ErrEmptyPath)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "kb.csv"), "q,a")
		_, err := LoadWithOptions(path, testOptions())
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "bad.json"), `[{"question": `)
		_, err := LoadWithOptions(path, testOptions())
		assert.Error(t, err)
	})

	t.Run("empty question", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "blank.json"), `[{"question": "ok?", "answer": "a"}, {"question": " ", "answer": "b"}]`)
		_, err := LoadWithOptions(path, testOptions())
		assert.ErrorIs(t, err, ErrInvalidRecord)
		assert.Contains(t, err.Error(), "Q2")
	})

	t.Run("file too large", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "large.json"), `[{"question": "q", "answer": "aaaaaaaaaaaaaaaa"}]`)
		opts := testOptions()
		opts.MaxFileSize = 8
		_, err := LoadWithOptions(path, opts)
		assert.ErrorIs(t, err, fileops.ErrFileTooLarge)
	})

	t.Run("unsafe content", func(t *testing.T) {
		path := writeFile(t, filepath.Join(dir, "unsafe.json"), `[{"question": "q", "answer": "<script>alert(1)</script>"}]`)
		_, err := LoadWithOptions(path, testOptions())
		assert.ErrorIs(t, err, fileops.ErrUnsafeContent)
	})
}

func TestLoad_MarkdownDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b-expenses.md"), "---\nquestion: How do I submit an expense report?\n---\nUse the expense system.\n")
	writeFile(t, filepath.Join(dir, "a-remote.md"), "---\nquestion: What is our remote work policy?\n---\n\nHybrid.\n")
	writeFile(t, filepath.Join(dir, "policies", "vacation.md"), "---\nquestion: What is our vacation policy?\norder: 1\n---\n20 days.\n")
	writeFile(t, filepath.Join(dir, "policies", "security.md"), "---\nquestion: How do I report a security issue?\norder: 2\n---\nEmail security.\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, ".drafts", "draft.md"), "---\nquestion: Draft?\n---\nignored\n")

	kb, err := LoadWithOptions(dir, testOptions())
	require.NoError(t, err)

	want := matcher.KnowledgeBase{
		{Question: "What is our vacation policy?", Answer: "20 days."},
		{Question: "How do I report a security issue?", Answer: "Email security."},
		{Question: "What is our remote work policy?", Answer: "Hybrid."},
		{Question: "How do I submit an expense report?", Answer: "Use the expense system."},
	}
	assert.Equal(t, want, kb)
}

func TestLoad_MarkdownDirectoryErrors(t *testing.T) {
	t.Run("missing question", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "readme.md"), "# Just a readme\n")
		_, err := LoadWithOptions(dir, testOptions())
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("broken frontmatter", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "bad.md"), "---\nquestion: [unclosed\n---\nbody\n")
		_, err := LoadWithOptions(dir, testOptions())
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("empty directory", func(t *testing.T) {
		kb, err := LoadWithOptions(t.TempDir(), testOptions())
		require.NoError(t, err)
		assert.Empty(t, kb)
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate(sampleKB))
	assert.ErrorIs(t, Validate(matcher.KnowledgeBase{{Question: "", Answer: "x"}}), ErrInvalidRecord)
}
