// Package gitrepo records changes to a data directory as git commits, using
// go-git so no git binary is needed.
package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit is one entry of the history.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	When    time.Time `json:"when"`
}

// Repo is a git repository rooted at a data directory. It is safe for
// concurrent use.
type Repo struct {
	dir   string
	name  string
	email string

	mu   sync.Mutex
	repo *gogit.Repository
}

// Open opens the repository at dir, initializing it when needed. name and
// email sign the commits.
func Open(dir, name, email string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open git repo: %w", err)
	}
	return &Repo{dir: dir, name: name, email: email, repo: repo}, nil
}

// Dir returns the root of the working tree.
func (r *Repo) Dir() string {
	return r.dir
}

// Commit stages files, relative to the root, and commits them with msg.
// Deleted files are staged as removals. Nothing is committed when the
// files did not change.
func (r *Repo) Commit(msg string, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, f := range files {
		if _, err := w.Add(f); err != nil {
			if _, serr := os.Stat(filepath.Join(r.dir, f)); !os.IsNotExist(serr) {
				return fmt.Errorf("failed to stage %s: %w", f, err)
			}
			if _, err := w.Remove(f); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
				return fmt.Errorf("failed to stage removal of %s: %w", f, err)
			}
		}
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	sig := &object.Signature{Name: r.name, Email: r.email, When: time.Now()}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// History returns up to n commits touching path, newest first. An empty
// path covers the whole tree.
func (r *Repo) History(path string, n int) ([]*Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	opts := &gogit.LogOptions{}
	if path != "" && path != "." {
		opts.FileName = &path
	}
	iter, err := r.repo.Log(opts)
	if err != nil {
		// No commit yet.
		return nil, nil
	}
	defer iter.Close()
	var out []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, &Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			When:    c.Author.When,
		})
	}
	return out, nil
}
