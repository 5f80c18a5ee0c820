package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MergeResult records the outcome of a merge-back publish. Changed is false
// when the merge produced no diff against the target branch; that is a valid
// outcome, distinct from merge failure.
type MergeResult struct {
	CommitID string `json:"commit_id,omitempty"`
	Changed  bool   `json:"changed"`
}

// BranchManager owns the ephemeral branch lifecycle: create, merge back into
// the target, tear down.
type BranchManager struct {
	pub Publisher
	dir JobDirectory
	log zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewBranchManager creates a branch manager over the two adapters.
func NewBranchManager(pub Publisher, dir JobDirectory, log zerolog.Logger) *BranchManager {
	return &BranchManager{pub: pub, dir: dir, log: log, now: time.Now}
}

// CreateEphemeral generates a collision-resistant test branch name from the
// identity, creates the branch, and checks it out.
func (m *BranchManager) CreateEphemeral(ctx context.Context, identity string) (string, error) {
	name := fmt.Sprintf("test-%s-%d", sanitizeBranchComponent(identity), m.now().Unix())

	if err := m.pub.CreateBranch(ctx, name); err != nil {
		return "", NewPublishError("creating test branch failed", err)
	}
	if err := m.pub.Checkout(ctx, name); err != nil {
		return "", NewPublishError("checking out test branch failed", err)
	}

	m.log.Info().Str("branch", name).Msg("created ephemeral test branch")
	return name, nil
}

// MergeBack checks out the target branch, merges the ephemeral branch into
// it, and republishes (commit+push) against the target. A merge producing no
// new commit still pushes the target ref and returns Changed=false.
func (m *BranchManager) MergeBack(ctx context.Context, ephemeral, target, message string, creds Credentials) (MergeResult, error) {
	if err := m.pub.Checkout(ctx, target); err != nil {
		return MergeResult{}, NewMergeError("checking out target branch failed", err)
	}
	if err := m.pub.Merge(ctx, ephemeral); err != nil {
		return MergeResult{}, NewMergeError("merging test branch failed", err)
	}

	commitID, err := m.pub.StageAndCommit(ctx, message)
	changed := true
	if err == ErrNoChanges {
		// The merge either fast-forwarded or produced its own merge
		// commit; nothing left to stage. Still push so the remote
		// target picks up whatever the merge created.
		changed = false
	} else if err != nil {
		return MergeResult{}, NewMergeError("committing merge result failed", err)
	}

	if err := m.pub.Push(ctx, target, creds); err != nil {
		if IsAuthFailure(err) {
			return MergeResult{}, err
		}
		return MergeResult{}, NewMergeError("pushing merged target failed", err)
	}

	m.log.Info().
		Str("ephemeral", ephemeral).
		Str("target", target).
		Bool("changed", changed).
		Msg("merged test branch into target")
	return MergeResult{CommitID: commitID, Changed: changed}, nil
}

// Teardown deletes the ephemeral branch everywhere in four ordered steps:
// CI-side registration, remote branch, local checkout of the restore branch,
// local branch. The returned trail reports the status of every step even
// when one fails; steps after the failure are marked skipped. A step whose
// resource is already gone (ErrNotFound) counts as success, which makes a
// re-triggered teardown idempotent for already-deleted resources.
func (m *BranchManager) Teardown(ctx context.Context, branch, restore string, creds Credentials) ([]CleanupStep, error) {
	steps := []struct {
		name CleanupStepName
		run  func() error
	}{
		{CleanupStepRegistration, func() error { return m.dir.DeleteBranchRegistration(ctx, branch) }},
		{CleanupStepRemoteBranch, func() error { return m.pub.DeleteRemoteBranch(ctx, branch, creds) }},
		{CleanupStepCheckoutTarget, func() error { return m.pub.Checkout(ctx, restore) }},
		{CleanupStepLocalBranch, func() error { return m.pub.DeleteLocalBranch(ctx, branch) }},
	}

	trail := make([]CleanupStep, 0, len(steps))
	var failed *DeployError

	for _, step := range steps {
		if failed != nil {
			trail = append(trail, CleanupStep{Name: step.name, Status: CleanupStepSkipped})
			continue
		}

		err := step.run()
		if err != nil && IsNotFound(err) {
			m.log.Debug().Str("step", string(step.name)).Msg("resource already gone")
			err = nil
		}
		if err != nil {
			failed = NewCleanupStepError(step.name, err)
			trail = append(trail, CleanupStep{Name: step.name, Status: CleanupStepFailed, Error: err.Error()})
			m.log.Warn().Err(err).Str("step", string(step.name)).Msg("teardown step failed")
			continue
		}
		trail = append(trail, CleanupStep{Name: step.name, Status: CleanupStepOK})
	}

	if failed != nil {
		return trail, failed
	}
	m.log.Info().Str("branch", branch).Msg("ephemeral branch torn down")
	return trail, nil
}

// sanitizeBranchComponent strips characters that are not valid inside a git
// ref component.
func sanitizeBranchComponent(s string) string {
	if s == "" {
		return "operator"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}
