// Package gitrepo implements the deploy.Publisher contract over the git CLI
// bound to a working copy path. Remote authentication failures are
// classified so the coordinator can invalidate cached credentials; all other
// git failures surface with the command's trimmed output.
package gitrepo

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

// Repo is a deploy.Publisher bound to one repository working copy.
type Repo struct {
	path   string
	remote string
	log    zerolog.Logger
}

// Option configures a Repo.
type Option func(*Repo)

// WithRemote overrides the remote name (default "origin").
func WithRemote(name string) Option {
	return func(r *Repo) { r.remote = name }
}

// New creates a Repo for the working copy at path.
func New(path string, log zerolog.Logger, opts ...Option) *Repo {
	r := &Repo{
		path:   path,
		remote: "origin",
		log:    log.With().Str("component", "gitrepo").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", r.path}, args...)
	out, err := exec.CommandContext(ctx, "git", full...).CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, classifyGitError(args[0], text, err)
	}
	return text, nil
}

// StageAndCommit stages everything and commits, returning the commit id.
// Returns deploy.ErrNoChanges for a clean tree.
func (r *Repo) StageAndCommit(ctx context.Context, message string) (string, error) {
	if _, err := r.git(ctx, "add", "-A"); err != nil {
		return "", err
	}

	// diff --cached --quiet exits 0 when the index matches HEAD.
	if err := exec.CommandContext(ctx, "git", "-C", r.path, "diff", "--cached", "--quiet").Run(); err == nil {
		return "", deploy.ErrNoChanges
	}

	if _, err := r.git(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	commit, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	r.log.Debug().Str("commit", commit).Msg("changes committed")
	return commit, nil
}

// Push pushes the branch ref to the remote, embedding the credentials into
// the remote URL for HTTPS remotes.
func (r *Repo) Push(ctx context.Context, branch string, creds deploy.Credentials) error {
	dest, err := r.pushURL(ctx, creds)
	if err != nil {
		return err
	}
	refspec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
	if _, err := r.git(ctx, "push", dest, refspec); err != nil {
		return err
	}
	r.log.Info().Str("branch", branch).Msg("branch pushed")
	return nil
}

// CreateBranch creates a local branch at the current head.
func (r *Repo) CreateBranch(ctx context.Context, name string) error {
	_, err := r.git(ctx, "branch", name)
	return err
}

// Checkout switches the working tree to the branch.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "checkout", branch)
	return err
}

// Merge merges sourceBranch into the currently checked out branch.
func (r *Repo) Merge(ctx context.Context, sourceBranch string) error {
	_, err := r.git(ctx, "merge", "--no-edit", sourceBranch)
	return err
}

// DeleteRemoteBranch deletes the branch on the remote. A branch that is
// already gone maps to deploy.ErrNotFound.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, branch string, creds deploy.Credentials) error {
	dest, err := r.pushURL(ctx, creds)
	if err != nil {
		return err
	}
	out, err := r.git(ctx, "push", dest, ":refs/heads/"+branch)
	if err != nil {
		if strings.Contains(out, "remote ref does not exist") {
			return fmt.Errorf("remote branch %s: %w", branch, deploy.ErrNotFound)
		}
		return err
	}
	return nil
}

// DeleteLocalBranch force-deletes the local branch. A branch that does not
// exist maps to deploy.ErrNotFound.
func (r *Repo) DeleteLocalBranch(ctx context.Context, branch string) error {
	out, err := r.git(ctx, "branch", "-D", branch)
	if err != nil {
		if strings.Contains(out, "not found") {
			return fmt.Errorf("local branch %s: %w", branch, deploy.ErrNotFound)
		}
		return err
	}
	return nil
}

// pushURL resolves the remote URL, embedding credentials for HTTP(S)
// remotes. SSH and file remotes are returned untouched; their auth is
// handled by the transport.
func (r *Repo) pushURL(ctx context.Context, creds deploy.Credentials) (string, error) {
	raw, err := r.git(ctx, "remote", "get-url", r.remote)
	if err != nil {
		return "", err
	}
	return embedCredentials(raw, creds), nil
}

func embedCredentials(raw string, creds deploy.Credentials) string {
	if creds.Username == "" && creds.Secret == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return raw
	}
	u.User = url.UserPassword(creds.Username, creds.Secret)
	return u.String()
}

// classifyGitError maps git CLI failures onto the deploy error taxonomy.
// The output of a failed push against an HTTPS remote carries the server's
// status text, which is where credential rejections show up.
func classifyGitError(op, out string, err error) error {
	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "could not read username"),
		strings.Contains(lower, "could not read password"),
		strings.Contains(lower, "invalid username or token"),
		strings.Contains(out, "401"),
		strings.Contains(out, "403"):
		return deploy.NewAuthError("remote rejected credentials", fmt.Errorf("git %s: %s", op, out))
	case strings.Contains(lower, "not a git repository"):
		return &deploy.DeployError{
			Kind:    deploy.KindNoRepository,
			Message: "no working copy",
			Err:     fmt.Errorf("git %s: %s", op, out),
		}
	}
	if out == "" {
		return fmt.Errorf("git %s: %w", op, err)
	}
	return fmt.Errorf("git %s: %s", op, out)
}
