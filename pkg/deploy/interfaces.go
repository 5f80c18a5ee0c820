package deploy

import "context"

// Credentials is an opaque credential tuple for remote VCS operations.
type Credentials struct {
	Username string
	Secret   string
}

// Publisher is the change publisher contract: it stages, commits, and pushes
// a working tree and manages branches. Implementations must classify
// authentication failures (401/403/credential-shape errors) as KindAuth so
// the coordinator can invalidate cached credentials; all other failures are
// surfaced verbatim.
type Publisher interface {
	// StageAndCommit stages all pending changes and commits them,
	// returning the new commit id. Returns ErrNoChanges when the working
	// tree is clean.
	StageAndCommit(ctx context.Context, message string) (string, error)

	// Push pushes the branch to the remote using the given credentials.
	Push(ctx context.Context, branch string, creds Credentials) error

	// CreateBranch creates a local branch at the current head.
	CreateBranch(ctx context.Context, name string) error

	// Checkout switches the working tree to the branch.
	Checkout(ctx context.Context, branch string) error

	// Merge merges sourceBranch into the currently checked out branch.
	Merge(ctx context.Context, sourceBranch string) error

	// DeleteRemoteBranch deletes the branch on the remote. Returns
	// ErrNotFound (wrapped) if the remote branch is already gone.
	DeleteRemoteBranch(ctx context.Context, branch string, creds Credentials) error

	// DeleteLocalBranch deletes the local branch. Returns ErrNotFound
	// (wrapped) if the branch does not exist.
	DeleteLocalBranch(ctx context.Context, branch string) error
}

// JobDirectory is the CI control plane contract.
type JobDirectory interface {
	// ListJobs lists jobs for the branch, newest first. A non-empty
	// commitFilter restricts results server-side where supported; the
	// discovery engine still applies its own match selection.
	ListJobs(ctx context.Context, branch, commitFilter string) ([]JobSnapshot, error)

	// GetJob fetches the current snapshot of a job.
	GetJob(ctx context.Context, branch, jobID string) (JobSnapshot, error)

	// StartJob starts a job on the branch. baseJobID is required for
	// TriggerRetry and ignored otherwise.
	StartJob(ctx context.Context, branch string, trigger TriggerType, baseJobID string) (JobSnapshot, error)

	// CreateBranchRegistration registers a branch with the CI system when
	// it is not auto-discovered.
	CreateBranchRegistration(ctx context.Context, branch string) error

	// DeleteBranchRegistration removes the CI-side branch registration.
	// Returns ErrNotFound (wrapped) if the registration is already gone.
	DeleteBranchRegistration(ctx context.Context, branch string) error
}

// CredentialSource supplies remote VCS credentials. Implementations resolve
// from storage first and fall back to an async host prompt, caching the
// result for the session's lifetime.
type CredentialSource interface {
	// Credentials returns the credentials to use for remote operations,
	// prompting the host if none are cached or stored.
	Credentials(ctx context.Context) (Credentials, error)

	// Invalidate discards cached credentials after an authentication
	// failure so the next call re-prompts.
	Invalidate()
}

// Recorder receives orchestration events for metrics. All methods must be
// cheap and non-blocking; a nil Recorder disables recording.
type Recorder interface {
	RecordPublish(scenario Scenario, outcome string)
	RecordDiscovery(outcome string, attempts int)
	RecordPollTick(status JobStatus)
	RecordJobOutcome(status JobStatus)
	RecordCleanupStep(step CleanupStepName, ok bool)
}
