package buildstamp

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitStamper commits the files written by a full build and optionally tags
// the commit with "v" plus the version text.
type GitStamper struct {
	// Dir is any directory inside the repository.
	Dir         string
	Tag         bool
	AuthorName  string
	AuthorEmail string

	now func() time.Time
}

// Stamp stages paths, commits them with the version text as the message and
// returns the commit hash.
func (g *GitStamper) Stamp(r Record, paths []string) (string, error) {
	dir := g.Dir
	if dir == "" {
		dir = "."
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open git repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("get worktree: %w", err)
	}

	root := worktree.Filesystem.Root()
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path %q: %w", p, err)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("%s is outside the repository at %s", p, root)
		}
		if _, err := worktree.Add(filepath.ToSlash(rel)); err != nil {
			return "", fmt.Errorf("git add %s: %w", rel, err)
		}
	}

	hash, err := worktree.Commit(r.Text(), &git.CommitOptions{Author: g.signature()})
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}

	if g.Tag {
		tag := "v" + r.Text()
		if _, err := repo.CreateTag(tag, hash, nil); err != nil {
			return "", fmt.Errorf("git tag %s: %w", tag, err)
		}
	}
	return hash.String(), nil
}

func (g *GitStamper) signature() *object.Signature {
	name, email := g.AuthorName, g.AuthorEmail
	if name == "" {
		name = defaultAuthorName
	}
	if email == "" {
		email = defaultAuthorEmail
	}
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	return &object.Signature{Name: name, Email: email, When: now()}
}
