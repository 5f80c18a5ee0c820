package deploy

import (
	"fmt"
	"time"
)

// Scenario selects how pending changes reach the target branch.
type Scenario string

const (
	// ScenarioUnset indicates no scenario has been chosen yet.
	ScenarioUnset Scenario = ""

	// ScenarioDirect pushes pending changes straight to the target branch.
	ScenarioDirect Scenario = "direct"

	// ScenarioTestBranch pushes pending changes to a freshly created
	// ephemeral branch for verification before merging into the target.
	ScenarioTestBranch Scenario = "test-branch"
)

// Validate checks that the scenario is one of the known values.
func (s Scenario) Validate() error {
	switch s {
	case ScenarioDirect, ScenarioTestBranch:
		return nil
	}
	return fmt.Errorf("invalid scenario: %q", string(s))
}

// JobStatus represents the status of a CI build/deploy job.
type JobStatus string

const (
	// JobStatusPending indicates the job is queued but not yet provisioned.
	JobStatusPending JobStatus = "pending"

	// JobStatusProvisioning indicates build resources are being provisioned.
	JobStatusProvisioning JobStatus = "provisioning"

	// JobStatusRunning indicates the job is executing.
	JobStatusRunning JobStatus = "running"

	// JobStatusSucceeded indicates the job completed successfully.
	JobStatusSucceeded JobStatus = "succeeded"

	// JobStatusFailed indicates the job completed with errors.
	JobStatusFailed JobStatus = "failed"

	// JobStatusCancelled indicates the job was cancelled.
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true if no further status transition can occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// IsActive returns true if the job is still in flight.
func (s JobStatus) IsActive() bool {
	return !s.IsTerminal()
}

// TriggerType selects how a job is started in the CI control plane.
type TriggerType string

const (
	// TriggerRelease starts a fresh release job for the branch head.
	TriggerRelease TriggerType = "release"

	// TriggerRetry re-runs a previous job.
	TriggerRetry TriggerType = "retry"

	// TriggerManual starts a manually requested job.
	TriggerManual TriggerType = "manual"
)

// JobRef identifies a job within a branch.
type JobRef struct {
	JobID  string `json:"job_id"`
	Branch string `json:"branch"`
}

// JobSnapshot is an immutable view of a job fetched from the job directory.
type JobSnapshot struct {
	JobID     string     `json:"job_id"`
	CommitID  string     `json:"commit_id"`
	Status    JobStatus  `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Ref returns the job reference for the snapshot on the given branch.
func (j JobSnapshot) Ref(branch string) JobRef {
	return JobRef{JobID: j.JobID, Branch: branch}
}

// PublishState tracks the progress of a commit+push attempt.
type PublishState string

const (
	PublishUnset     PublishState = ""
	PublishPending   PublishState = "pending"
	PublishPublished PublishState = "published"
	PublishFailed    PublishState = "failed"
)

// PublishResult records the outcome of a publish attempt.
type PublishResult struct {
	State PublishState `json:"state"`

	// CommitID is set when a commit was created. Empty when the working
	// tree had no changes to commit.
	CommitID string `json:"commit_id,omitempty"`

	// Changed reports whether the publish produced a new commit.
	Changed bool `json:"changed"`

	// Reason holds the failure message when State is PublishFailed.
	Reason string `json:"reason,omitempty"`
}

// InFlight returns true while the publish has started but not resolved.
func (p PublishResult) InFlight() bool {
	return p.State == PublishPending
}

// Resolved returns true once the publish attempt has a final outcome.
func (p PublishResult) Resolved() bool {
	return p.State == PublishPublished || p.State == PublishFailed
}

// PostVerificationChoice is the operator's decision after the test-branch
// job reached a terminal state.
type PostVerificationChoice string

const (
	// ChoiceUnset indicates no decision has been made yet.
	ChoiceUnset PostVerificationChoice = ""

	// ChoiceMergeToTarget merges the ephemeral branch into the target
	// branch and deploys the result.
	ChoiceMergeToTarget PostVerificationChoice = "merge"

	// ChoiceManualMerge leaves merging to the operator.
	ChoiceManualMerge PostVerificationChoice = "manual"
)

// CleanupStepName identifies one step of the ephemeral branch teardown.
type CleanupStepName string

const (
	// CleanupStepRegistration deletes the CI-side branch registration.
	CleanupStepRegistration CleanupStepName = "ci-registration"

	// CleanupStepRemoteBranch deletes the branch on the remote.
	CleanupStepRemoteBranch CleanupStepName = "remote-branch"

	// CleanupStepCheckoutTarget checks the target branch out locally so
	// the local branch can be deleted.
	CleanupStepCheckoutTarget CleanupStepName = "checkout-target"

	// CleanupStepLocalBranch deletes the local branch.
	CleanupStepLocalBranch CleanupStepName = "local-branch"
)

// CleanupStepStatus is the per-step outcome within a teardown trail.
type CleanupStepStatus string

const (
	CleanupStepOK      CleanupStepStatus = "ok"
	CleanupStepFailed  CleanupStepStatus = "failed"
	CleanupStepSkipped CleanupStepStatus = "skipped"
)

// CleanupStep records the outcome of a single teardown step.
type CleanupStep struct {
	Name   CleanupStepName   `json:"name"`
	Status CleanupStepStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
}

// CleanupStatus tracks the overall state of the ephemeral branch teardown.
type CleanupStatus string

const (
	CleanupNotStarted CleanupStatus = "not-started"
	CleanupInProgress CleanupStatus = "in-progress"
	CleanupDone       CleanupStatus = "done"
	CleanupFailed     CleanupStatus = "failed"
)

// CleanupState is the structured teardown status trail surfaced to the
// operator. A failed teardown keeps the per-step trail so the operator can
// see which steps completed before re-triggering.
type CleanupState struct {
	Status CleanupStatus `json:"status"`
	Steps  []CleanupStep `json:"steps,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Phase is the coordinator's current position in the deployment state
// machine.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseModeSelected      Phase = "mode-selected"
	PhasePublishing        Phase = "publishing"
	PhaseNoChangesCheck    Phase = "no-changes-check"
	PhaseAwaitingJob       Phase = "awaiting-job"
	PhasePolling           Phase = "polling"
	PhaseTerminal          Phase = "terminal"
	PhaseAwaitingChoice    Phase = "awaiting-choice"
	PhaseMergePublishing   Phase = "merge-publishing"
	PhaseMergePolling      Phase = "merge-polling"
	PhaseMergeTerminal     Phase = "merge-terminal"
	PhaseManualMerge       Phase = "manual-merge"
	PhaseCleanupInProgress Phase = "cleanup-in-progress"
	PhaseCleanupDone       Phase = "cleanup-done"
)

// Failure is the serializable projection of a DeployError stored on the
// session for rendering.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// DeploymentSession is the root aggregate for one push attempt. It is owned
// by the host (wizard step or CLI command) and mutated exclusively through
// the Coordinator. The struct serializes to JSON for explicit persistence
// across navigation.
type DeploymentSession struct {
	ID       string   `json:"id"`
	Scenario Scenario `json:"scenario"`
	Phase    Phase    `json:"phase"`

	// TargetBranch is the branch the operator ultimately wants deployed.
	TargetBranch string `json:"target_branch"`

	// WorkingBranch is the branch actually pushed to. Equal to
	// TargetBranch for the direct scenario; a generated ephemeral name
	// for the test-branch scenario. Never changes once publishing has
	// started, except by session reset.
	WorkingBranch string `json:"working_branch,omitempty"`

	Publish PublishResult `json:"publish"`

	// TrackedJob is the job currently tracked for the test/direct phase,
	// with its latest polled snapshot.
	TrackedJob      *JobRef      `json:"tracked_job,omitempty"`
	TrackedSnapshot *JobSnapshot `json:"tracked_snapshot,omitempty"`

	// LastTerminalJob is the last job observed in a terminal state. It is
	// kept separate from TrackedSnapshot so a retry can show "starting"
	// without losing the prior job's info.
	LastTerminalJob *JobSnapshot `json:"last_terminal_job,omitempty"`

	// NoDeploymentChanges is set when the publish found nothing to commit.
	NoDeploymentChanges bool `json:"no_deployment_changes,omitempty"`

	Choice PostVerificationChoice `json:"post_verification_choice,omitempty"`

	// Merge-phase mirror of the publish/job slots (test-branch only).
	MergePublish    PublishResult `json:"merge_publish"`
	MergeJob        *JobRef       `json:"merge_job,omitempty"`
	MergeSnapshot   *JobSnapshot  `json:"merge_snapshot,omitempty"`
	MergeLastTermin *JobSnapshot  `json:"merge_last_terminal,omitempty"`

	Cleanup CleanupState `json:"cleanup"`

	// LastFailure is the most recent failure surfaced to the operator,
	// with a retry action bound to the failed phase.
	LastFailure *Failure `json:"last_failure,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEphemeralBranch reports whether the session created a working branch
// distinct from the target branch. Cleanup is only ever offered when true.
func (s *DeploymentSession) HasEphemeralBranch() bool {
	return s.WorkingBranch != "" && s.WorkingBranch != s.TargetBranch
}
