package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kbmcp/internal/logging"
	"kbmcp/internal/matcher"
	"kbmcp/pkg/fileops"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
)

var (
	ErrDirectoryConflict = errors.New("clone directory holds different content")
	ErrAuthRequired      = errors.New("repository requires authentication")
)

// TokenSource supplies a token for private repositories.
type TokenSource interface {
	GitToken() (string, error)
}

// GitSource is a knowledge base kept in a git repository. The repository is
// cloned into Dir on first use and fetched and hard reset to the remote
// branch afterwards, so Dir behaves as a read-only cache.
type GitSource struct {
	URL string
	// Branch to track, the remote default when empty.
	Branch string
	// Dir is the local clone.
	Dir string
	// Path of the knowledge base inside the clone.
	Path string
	// Tokens is asked for credentials only after anonymous access fails.
	Tokens TokenSource
	Logger *logging.AppLogger
}

func (gs GitSource) logger() *logging.AppLogger {
	if gs.Logger != nil {
		return gs.Logger
	}
	return logging.GetDefault()
}

// Prepare clones or refreshes the repository and returns the absolute path of
// the knowledge base inside it.
func (gs GitSource) Prepare(ctx context.Context) (string, error) {
	if strings.TrimSpace(gs.URL) == "" {
		return "", fmt.Errorf("git source: remote URL cannot be empty")
	}
	if strings.TrimSpace(gs.Dir) == "" {
		return "", fmt.Errorf("git source: local directory cannot be empty")
	}
	if err := fileops.ValidatePathSecurity(gs.Path); err != nil {
		return "", fmt.Errorf("git source: invalid knowledge path: %w", err)
	}
	if filepath.IsAbs(gs.Path) {
		return "", fmt.Errorf("git source: knowledge path must be relative to the repository")
	}

	dir, err := filepath.Abs(fileops.ExpandPath(gs.Dir))
	if err != nil {
		return "", fmt.Errorf("cannot resolve clone directory: %w", err)
	}

	gs.logger().Info("Preparing knowledge repository", "url", gs.URL, "branch", gs.Branch, "dir", dir)

	cloned, err := gs.isClone(dir)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if cloned {
		err = gs.withAuth(func(auth *http.BasicAuth) error { return gs.fetch(ctx, dir, auth) })
	} else {
		err = gs.withAuth(func(auth *http.BasicAuth) error { return gs.clone(ctx, dir, auth) })
	}
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, filepath.FromSlash(gs.Path)), nil
}

// Load prepares the repository and loads the knowledge base from it.
func (gs GitSource) Load(ctx context.Context, maxFileSize int64) (matcher.KnowledgeBase, error) {
	path, err := gs.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(fileops.ExpandPath(gs.Dir))
	if err != nil {
		return nil, err
	}
	return LoadWithOptions(path, Options{
		MaxFileSize: maxFileSize,
		BaseDir:     dir,
		Logger:      gs.Logger,
	})
}

// isClone reports whether dir already holds a clone of gs.URL. A missing or
// empty directory is not a clone; anything else is a conflict.
func (gs GitSource) isClone(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) || (err == nil && len(entries) == 0) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot access clone directory: %w", err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return false, fmt.Errorf("%w: %s is not a git repository", ErrDirectoryConflict, dir)
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return false, fmt.Errorf("%w: %s has no origin remote", ErrDirectoryConflict, dir)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || normalizeURL(urls[0]) != normalizeURL(gs.URL) {
		return false, fmt.Errorf("%w: %s tracks %v, expected %s", ErrDirectoryConflict, dir, urls, gs.URL)
	}
	return true, nil
}

// withAuth tries op anonymously and retries once with a token when the
// remote asks for credentials.
func (gs GitSource) withAuth(op func(*http.BasicAuth) error) error {
	err := op(nil)
	if err == nil || !isAuthError(err) {
		return err
	}

	if gs.Tokens == nil {
		return fmt.Errorf("%w: run `kbmcp auth set git`", ErrAuthRequired)
	}
	token, tokenErr := gs.Tokens.GitToken()
	if tokenErr != nil {
		return fmt.Errorf("%w: %v", ErrAuthRequired, tokenErr)
	}

	gs.logger().Debug("Anonymous access failed, retrying with token")
	return op(&http.BasicAuth{Username: "token", Password: token})
}

func (gs GitSource) clone(ctx context.Context, dir string, auth *http.BasicAuth) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	opts := &git.CloneOptions{URL: gs.URL}
	if auth != nil {
		opts.Auth = auth
	}
	if isNetworkURL(gs.URL) {
		opts.Depth = 1
	}
	if gs.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(gs.Branch)
		opts.SingleBranch = true
	}

	gs.logger().Info("Cloning knowledge repository", "url", gs.URL, "dir", dir)
	if _, err := git.PlainClone(dir, opts); err != nil {
		// a failed clone leaves a partial directory behind
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to clone %s: %w", gs.URL, err)
	}
	return ctx.Err()
}

func (gs GitSource) fetch(ctx context.Context, dir string, auth *http.BasicAuth) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("failed to open existing repository: %w", err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return fmt.Errorf("failed to get origin remote: %w", err)
	}

	fetchOpts := &git.FetchOptions{Force: true}
	if auth != nil {
		fetchOpts.Auth = auth
	}
	err = remote.Fetch(fetchOpts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch %s: %w", gs.URL, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := gs.remoteHead(repo)
	if err != nil {
		return err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get working tree: %w", err)
	}
	if err := worktree.Reset(&git.ResetOptions{Commit: target, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", target, err)
	}

	gs.logger().Info("Knowledge repository synced", "dir", dir, "commit", target.String()[:7])
	return nil
}

// remoteHead resolves the commit the clone should sit on.
func (gs GitSource) remoteHead(repo *git.Repository) (plumbing.Hash, error) {
	branch := gs.Branch
	if branch == "" {
		head, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to read HEAD: %w", err)
		}
		branch = head.Name().Short()
	}

	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("branch %q not found on origin: %w", branch, err)
	}
	return ref.Hash(), nil
}

// IsDirty reports whether the clone at dir has uncommitted changes.
func IsDirty(dir string) (bool, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return false, fmt.Errorf("failed to open repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get working tree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get repository status: %w", err)
	}
	return !status.IsClean(), nil
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"authentication required", "401", "unauthorized", "403", "forbidden"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isNetworkURL(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "ssh://") || strings.HasPrefix(u, "git@")
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")
	if after, ok := strings.CutPrefix(u, "git@"); ok {
		u = strings.Replace(after, ":", "/", 1)
	}
	for _, prefix := range []string{"https://", "http://", "ssh://", "file://"} {
		u = strings.TrimPrefix(u, prefix)
	}
	return u
}
