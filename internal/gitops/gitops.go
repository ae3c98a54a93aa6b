// Package gitops shells out to the git binary for the index working
// copies: fetch/reset to bring the upstream index checkout up to date,
// and add/commit/push to publish the materialized index tree.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/0xa1bed0/cratesmirror/internal/diag"
)

// Repo is a git working copy rooted at Dir.
type Repo struct {
	Dir  string
	Log  *diag.Logger
	Exec func(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// New builds a Repo rooted at dir, invoking the real git binary.
func New(dir string) *Repo {
	return &Repo{Dir: dir, Log: diag.L(), Exec: runGit}
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git %v: %w: %s", args, err, stderr.String())
	}
	return out.Bytes(), nil
}

func (r *Repo) exec(ctx context.Context, args ...string) ([]byte, error) {
	if r.Exec == nil {
		return runGit(ctx, r.Dir, args...)
	}
	return r.Exec(ctx, r.Dir, args...)
}

func (r *Repo) log() *diag.Logger {
	if r.Log != nil {
		return r.Log
	}
	return diag.L()
}

// Update fetches origin and hard-resets the working tree to its
// upstream branch, discarding any local divergence (including local
// commits not yet pushed) so the working tree matches origin's copy of
// the current branch.
func (r *Repo) Update(ctx context.Context) error {
	if _, err := r.exec(ctx, "fetch", "origin"); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	head, err := r.exec(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	branch := trimNewline(string(head))

	if _, err := r.exec(ctx, "reset", "--hard", "origin/"+branch); err != nil {
		return fmt.Errorf("reset to origin/%s: %w", branch, err)
	}

	r.log().Debug("gitops: updated %s to origin/%s", r.Dir, branch)
	return nil
}

// Commit stages every change under Dir and commits it with a
// timestamped message; it returns nil without committing when there is
// nothing staged, matching `git commit`'s own no-op behavior without
// relying on its exit code.
func (r *Repo) Commit(ctx context.Context, message string) error {
	if _, err := r.exec(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("add: %w", err)
	}

	status, err := r.exec(ctx, "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if len(bytes.TrimSpace(status)) == 0 {
		r.log().Debug("gitops: nothing to commit in %s", r.Dir)
		return nil
	}

	if message == "" {
		message = fmt.Sprintf("mirror update %s", time.Now().UTC().Format(time.RFC3339))
	}

	if _, err := r.exec(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.log().Info("gitops: committed %q in %s", message, r.Dir)
	return nil
}

// Push pushes the current branch to origin.
func (r *Repo) Push(ctx context.Context) error {
	if _, err := r.exec(ctx, "push", "origin", "HEAD"); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	r.log().Info("gitops: pushed %s", r.Dir)
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
