// Package gitops keeps a cashflow workspace under version control so that
// imports, run logs and reports leave an audit trail.
package gitops

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNothingToCommit is returned when the working tree has no changes.
var ErrNothingToCommit = errors.New("nothing to commit")

// Init initializes a new git repository at dir.
func Init(dir string) error {
	if _, err := git(dir, "init", "--quiet"); err != nil {
		return err
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Committer creates commits in one workspace under a fixed author.
type Committer struct {
	Dir   string
	Name  string
	Email string
}

// Commit stages paths (everything when none are given) and commits them.
// It returns the short hash of the new commit, or ErrNothingToCommit when
// the staged tree matches HEAD.
func (c Committer) Commit(message string, paths ...string) (string, error) {
	add := []string{"add", "-A"}
	if len(paths) > 0 {
		add = append(append(add, "--"), paths...)
	}
	if _, err := git(c.Dir, add...); err != nil {
		return "", err
	}

	staged, err := git(c.Dir, "diff", "--cached", "--name-only")
	if err != nil {
		return "", err
	}
	if staged == "" {
		return "", ErrNothingToCommit
	}

	author := fmt.Sprintf("%s <%s>", c.Name, c.Email)
	if _, err := git(c.Dir,
		"-c", "user.name="+c.Name, "-c", "user.email="+c.Email,
		"commit", "--quiet", "-m", message, "--author", author); err != nil {
		return "", err
	}
	return HeadHash(c.Dir)
}

// CommitAll stages all files and creates a commit. Returns the short commit hash.
func CommitAll(dir, message, authorName, authorEmail string) (string, error) {
	return Committer{Dir: dir, Name: authorName, Email: authorEmail}.Commit(message)
}

// HeadHash returns the short hash of HEAD.
func HeadHash(dir string) (string, error) {
	return git(dir, "rev-parse", "--short", "HEAD")
}

func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}
