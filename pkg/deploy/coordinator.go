package deploy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// jobSlot names a tracked job slot. At most one polling subscription exists
// per slot at any time.
type jobSlot string

const (
	slotTracked jobSlot = "tracked"
	slotMerge   jobSlot = "merge"
)

// Config configures a Coordinator.
type Config struct {
	// TargetBranch is the branch the operator wants deployed.
	TargetBranch string

	// Identity is a short operator/app identity used in generated
	// ephemeral branch names.
	Identity string

	// CommitMessage is the message used for the publish commit.
	CommitMessage string

	// PollInterval is the fixed period between job refreshes. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration

	// RetrySettleDelay is the short wait between starting a retry job and
	// re-running discovery. Zero means 3s.
	RetrySettleDelay time.Duration

	// Discovery bounds the job discovery retry loop.
	Discovery DiscoveryConfig
}

func (c Config) withDefaults() Config {
	if c.RetrySettleDelay <= 0 {
		c.RetrySettleDelay = 3 * time.Second
	}
	if c.CommitMessage == "" {
		c.CommitMessage = "Update runtime configuration"
	}
	return c
}

// Deps carries the coordinator's collaborators. Publisher, Directory, and
// Credentials are required; Recorder and OnChange are optional.
type Deps struct {
	Publisher   Publisher
	Directory   JobDirectory
	Credentials CredentialSource

	// Recorder receives orchestration metrics events.
	Recorder Recorder

	// OnChange is invoked with a session copy after every mutation, for
	// rendering or persistence.
	OnChange func(DeploymentSession)

	Logger zerolog.Logger
}

// Coordinator is the top-level deployment state machine. It selects a
// scenario, drives publish, discovery and polling, records the last known
// job and failure, exposes retry actions, and computes whether the session
// may be finished.
//
// The session is owned by the coordinator's host and mutated only here.
// Polling updates arrive on poller goroutines; all session access is
// serialized through the coordinator's mutex.
type Coordinator struct {
	mu      sync.Mutex
	session *DeploymentSession

	cfg   Config
	pub   Publisher
	dir   JobDirectory
	creds CredentialSource

	discoverer *Discoverer
	poller     *Poller
	branches   *BranchManager

	subs map[jobSlot]*Subscription

	rec      Recorder
	onChange func(DeploymentSession)
	log      zerolog.Logger
}

// NewCoordinator creates a coordinator with a fresh idle session.
func NewCoordinator(deps Deps, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	log := deps.Logger.With().Str("component", "coordinator").Logger()

	return &Coordinator{
		session:    newSession(cfg.TargetBranch),
		cfg:        cfg,
		pub:        deps.Publisher,
		dir:        deps.Directory,
		creds:      deps.Credentials,
		discoverer: NewDiscoverer(deps.Directory, cfg.Discovery, deps.Logger),
		poller:     NewPoller(deps.Directory, cfg.PollInterval, deps.Logger),
		branches:   NewBranchManager(deps.Publisher, deps.Directory, deps.Logger),
		subs:       make(map[jobSlot]*Subscription),
		rec:        deps.Recorder,
		onChange:   deps.OnChange,
		log:        log,
	}
}

func newSession(targetBranch string) *DeploymentSession {
	now := time.Now().UTC()
	return &DeploymentSession{
		ID:           uuid.New().String(),
		Phase:        PhaseIdle,
		TargetBranch: targetBranch,
		Cleanup:      CleanupState{Status: CleanupNotStarted},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Session returns a copy of the current session for rendering.
func (c *Coordinator) Session() DeploymentSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.session
}

// CanFinish reports whether the operator may finish the session.
func (c *Coordinator) CanFinish() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SessionCanFinish(c.session)
}

// SelectScenario chooses the deployment scenario. Allowed only before
// publishing has started; it resets all phase-specific state.
func (c *Coordinator) SelectScenario(s Scenario) error {
	if err := s.Validate(); err != nil {
		return NewInvalidTransition("select-scenario", c.Session().Phase)
	}

	c.mu.Lock()
	if c.session.Phase != PhaseIdle && c.session.Phase != PhaseModeSelected {
		phase := c.session.Phase
		c.mu.Unlock()
		return NewInvalidTransition("select-scenario", phase)
	}
	c.cancelAllLocked()
	fresh := newSession(c.session.TargetBranch)
	fresh.ID = c.session.ID
	fresh.CreatedAt = c.session.CreatedAt
	fresh.Scenario = s
	fresh.Phase = PhaseModeSelected
	c.session = fresh
	c.touchLocked()
	c.mu.Unlock()

	c.notify()
	return nil
}

// Push publishes pending changes to the working branch and, when a commit
// was produced, discovers and polls the resulting job. A discovery failure
// is advisory: Push still returns nil and records the failure on the
// session.
func (c *Coordinator) Push(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	if s.Scenario == ScenarioUnset {
		c.mu.Unlock()
		return NewInvalidTransition("push", PhaseIdle)
	}
	switch s.Phase {
	case PhasePublishing, PhaseMergePublishing, PhaseMergePolling, PhaseCleanupInProgress:
		phase := s.Phase
		c.mu.Unlock()
		return NewInvalidTransition("push", phase)
	}
	c.cancelSlotLocked(slotTracked)
	s.Phase = PhasePublishing
	s.Publish = PublishResult{State: PublishPending}
	s.NoDeploymentChanges = false
	s.TrackedJob = nil
	s.TrackedSnapshot = nil
	s.LastFailure = nil
	scenario := s.Scenario
	target := s.TargetBranch
	working := s.WorkingBranch
	c.touchLocked()
	c.mu.Unlock()
	c.notify()

	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return c.failPublish(NewPublishError("resolving credentials failed", err))
	}

	// One working branch per session. The direct scenario publishes to
	// the target; the test-branch scenario creates its ephemeral branch
	// on first push and keeps it for repeated pushes.
	if scenario == ScenarioDirect {
		working = target
	} else if working == "" {
		working, err = c.branches.CreateEphemeral(ctx, c.cfg.Identity)
		if err != nil {
			return c.failPublish(Classify(err))
		}
	}
	c.mu.Lock()
	c.session.WorkingBranch = working
	c.mu.Unlock()

	commitID, err := c.pub.StageAndCommit(ctx, c.cfg.CommitMessage)
	if err == ErrNoChanges {
		return c.publishNoChanges(ctx, scenario, working, creds)
	}
	if err != nil {
		return c.failPublish(Classify(err))
	}

	if err := c.pub.Push(ctx, working, creds); err != nil {
		return c.failPublish(Classify(err))
	}

	c.mu.Lock()
	c.session.Publish = PublishResult{State: PublishPublished, CommitID: commitID, Changed: true}
	c.session.Phase = PhaseAwaitingJob
	c.touchLocked()
	c.mu.Unlock()
	c.notify()
	c.recordPublish(scenario, "published")
	c.log.Info().Str("branch", working).Str("commit", commitID).Msg("changes published")

	return c.discoverAndPoll(ctx, slotTracked, commitID, working, scenario, scenario == ScenarioDirect)
}

// publishNoChanges handles a clean working tree. The test-branch scenario
// still pushes the branch ref so it exists upstream and finishes without
// discovery; the direct scenario checks the branch's most recent job so a
// stale prior failure can be offered for retry.
func (c *Coordinator) publishNoChanges(ctx context.Context, scenario Scenario, working string, creds Credentials) error {
	if scenario == ScenarioTestBranch {
		if err := c.pub.Push(ctx, working, creds); err != nil {
			return c.failPublish(Classify(err))
		}
		c.mu.Lock()
		c.session.Publish = PublishResult{State: PublishPublished, Changed: false}
		c.session.NoDeploymentChanges = true
		c.session.Phase = PhaseTerminal
		c.touchLocked()
		c.mu.Unlock()
		c.notify()
		c.recordPublish(scenario, "no-changes")
		c.log.Info().Str("branch", working).Msg("no deployment changes, empty branch pushed")
		return nil
	}

	c.mu.Lock()
	c.session.Publish = PublishResult{State: PublishPublished, Changed: false}
	c.session.NoDeploymentChanges = true
	c.session.Phase = PhaseNoChangesCheck
	c.touchLocked()
	c.mu.Unlock()
	c.notify()
	c.recordPublish(scenario, "no-changes")

	jobs, err := c.dir.ListJobs(ctx, working, "")
	c.mu.Lock()
	if err != nil {
		c.log.Warn().Err(err).Msg("previous job check failed")
	} else if len(jobs) > 0 {
		recent := mostRecent(jobs)
		if recent.Status.IsTerminal() {
			c.session.LastTerminalJob = &recent
		}
	}
	c.session.Phase = PhaseTerminal
	c.touchLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// failPublish records a publish failure, invalidating cached credentials on
// authentication failures, and returns the session to the mode-selected
// phase for a manual retry.
func (c *Coordinator) failPublish(err *DeployError) error {
	if err.Kind == KindAuth {
		c.creds.Invalidate()
		c.log.Warn().Msg("credentials rejected, cache invalidated")
	}

	c.mu.Lock()
	c.session.Publish = PublishResult{State: PublishFailed, Reason: err.Error()}
	c.session.Phase = PhaseModeSelected
	c.session.LastFailure = failureFrom(err)
	c.touchLocked()
	scenario := c.session.Scenario
	c.mu.Unlock()
	c.notify()

	c.recordPublish(scenario, "failed")
	c.log.Error().Err(err).Msg("publish failed")
	return err
}

// discoverAndPoll runs job discovery for the slot and opens a polling
// subscription on success. Discovery failure is recorded as advisory and
// leaves the slot empty; the session remains finishable.
func (c *Coordinator) discoverAndPoll(ctx context.Context, slot jobSlot, commitID, branch string, scenario Scenario, branchKnown bool) error {
	snap, err := c.discoverer.Discover(ctx, commitID, branch, scenario, branchKnown)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.recordDiscovery("timeout", c.cfg.Discovery.withDefaults().Attempts)
		c.mu.Lock()
		c.session.LastFailure = failureFrom(err)
		if slot == slotMerge {
			// The merge push itself succeeded; without a job to
			// watch the merge phase is no longer mid-flight.
			c.session.Phase = PhaseMergeTerminal
		}
		c.touchLocked()
		c.mu.Unlock()
		c.notify()
		c.log.Warn().Err(err).Str("branch", branch).Msg("job discovery failed")
		return nil
	}

	c.recordDiscovery("found", 0)
	c.startPolling(ctx, slot, snap, branch)
	return nil
}

// startPolling installs snap as the slot's tracked job and opens a polling
// subscription, cancelling any prior subscription for the slot first. A job
// discovered already terminal is handled directly without a subscription.
func (c *Coordinator) startPolling(ctx context.Context, slot jobSlot, snap JobSnapshot, branch string) {
	ref := snap.Ref(branch)

	c.mu.Lock()
	c.cancelSlotLocked(slot)
	sessID := c.session.ID
	if slot == slotTracked {
		c.session.TrackedJob = &ref
		c.session.TrackedSnapshot = &snap
		c.session.Phase = PhasePolling
	} else {
		c.session.MergeJob = &ref
		c.session.MergeSnapshot = &snap
		c.session.Phase = PhaseMergePolling
	}
	c.touchLocked()

	if snap.Status.IsTerminal() {
		c.applyTerminalLocked(slot, snap)
		c.mu.Unlock()
		c.notify()
		return
	}

	sub := c.poller.Subscribe(ctx, ref, func(s JobSnapshot) {
		c.handleUpdate(sessID, slot, s)
	})
	c.subs[slot] = sub
	c.mu.Unlock()
	c.notify()
}

// handleUpdate is the poll callback for a slot. It runs on the poller
// goroutine. Updates belonging to a discarded session are dropped.
func (c *Coordinator) handleUpdate(sessID string, slot jobSlot, snap JobSnapshot) {
	c.recordPollTick(snap.Status)

	c.mu.Lock()
	if c.session.ID != sessID {
		c.mu.Unlock()
		return
	}
	if slot == slotTracked {
		c.session.TrackedSnapshot = &snap
	} else {
		c.session.MergeSnapshot = &snap
	}
	if snap.Status.IsTerminal() {
		c.applyTerminalLocked(slot, snap)
		delete(c.subs, slot)
	}
	c.touchLocked()
	c.mu.Unlock()
	c.notify()
}

// applyTerminalLocked records a terminal snapshot for the slot and advances
// the phase. Caller holds the mutex.
func (c *Coordinator) applyTerminalLocked(slot jobSlot, snap JobSnapshot) {
	c.recordJobOutcome(snap.Status)
	if slot == slotTracked {
		c.session.LastTerminalJob = &snap
		if c.session.Scenario == ScenarioTestBranch {
			c.session.Phase = PhaseAwaitingChoice
		} else {
			c.session.Phase = PhaseTerminal
		}
		return
	}
	c.session.MergeLastTermin = &snap
	c.session.Phase = PhaseMergeTerminal
}

// RetryJob re-runs a terminal job. Valid when the relevant slot's job (or
// the remembered last terminal job) finished as failed or succeeded; the
// latter allows redeploying after out-of-band changes. The terminal slot is
// cleared to signal "starting", then discovery re-runs scoped to the new
// job's commit and polling resumes.
func (c *Coordinator) RetryJob(ctx context.Context, jobID string) error {
	c.mu.Lock()
	s := c.session

	slot := slotTracked
	branch := s.WorkingBranch
	scenario := s.Scenario
	last := s.TrackedSnapshot
	if last == nil || !last.Status.IsTerminal() {
		last = s.LastTerminalJob
	}
	if s.Phase == PhaseMergeTerminal {
		slot = slotMerge
		branch = s.TargetBranch
		scenario = ScenarioDirect
		last = s.MergeSnapshot
		if last == nil || !last.Status.IsTerminal() {
			last = s.MergeLastTermin
		}
	}

	if last == nil || (last.Status != JobStatusFailed && last.Status != JobStatusSucceeded) {
		phase := s.Phase
		c.mu.Unlock()
		return NewInvalidTransition("retry-job", phase)
	}
	if jobID == "" {
		jobID = last.JobID
	}

	if slot == slotTracked {
		s.TrackedJob = nil
		s.TrackedSnapshot = nil
		s.Phase = PhaseAwaitingJob
	} else {
		s.MergeJob = nil
		s.MergeSnapshot = nil
		s.Phase = PhaseMergePublishing
	}
	s.LastFailure = nil
	c.touchLocked()
	c.mu.Unlock()
	c.notify()

	snap, err := c.dir.StartJob(ctx, branch, TriggerRetry, jobID)
	if err != nil {
		retryErr := NewJobRetryError("starting retry job failed", err)
		c.mu.Lock()
		c.session.LastFailure = failureFrom(retryErr)
		if slot == slotMerge {
			c.session.Phase = PhaseMergeTerminal
		} else if c.session.Scenario == ScenarioTestBranch {
			c.session.Phase = PhaseAwaitingChoice
		} else {
			c.session.Phase = PhaseTerminal
		}
		c.touchLocked()
		c.mu.Unlock()
		c.notify()
		c.log.Error().Err(err).Str("job_id", jobID).Msg("retry start failed")
		return retryErr
	}

	c.log.Info().Str("job_id", snap.JobID).Str("base_job_id", jobID).Msg("retry job started")

	if err := sleep(ctx, c.cfg.RetrySettleDelay); err != nil {
		return err
	}

	return c.discoverAndPoll(ctx, slot, snap.CommitID, branch, scenario, true)
}

// ChoosePostVerification records the operator's decision after the
// test-phase job reached a terminal state. ChoiceManualMerge moves directly
// to a finishable state; ChoiceMergeToTarget merges the ephemeral branch
// into the target and mirrors the publish/discover/poll sequence on the
// merge-phase job slot.
func (c *Coordinator) ChoosePostVerification(ctx context.Context, choice PostVerificationChoice) error {
	c.mu.Lock()
	s := c.session
	if s.Scenario != ScenarioTestBranch || s.Phase != PhaseAwaitingChoice {
		phase := s.Phase
		c.mu.Unlock()
		return NewInvalidTransition("choose-post-verification", phase)
	}
	if choice != ChoiceMergeToTarget && choice != ChoiceManualMerge {
		phase := s.Phase
		c.mu.Unlock()
		return NewInvalidTransition("choose-post-verification", phase)
	}

	s.Choice = choice
	if choice == ChoiceManualMerge {
		s.Phase = PhaseManualMerge
		c.touchLocked()
		c.mu.Unlock()
		c.notify()
		c.log.Info().Msg("manual merge accepted")
		return nil
	}

	s.Phase = PhaseMergePublishing
	s.MergePublish = PublishResult{State: PublishPending}
	s.LastFailure = nil
	working := s.WorkingBranch
	target := s.TargetBranch
	c.touchLocked()
	c.mu.Unlock()
	c.notify()

	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return c.failMerge(NewMergeError("resolving credentials failed", err))
	}

	message := fmt.Sprintf("Merge %s into %s", working, target)
	res, err := c.branches.MergeBack(ctx, working, target, message, creds)
	if err != nil {
		return c.failMerge(Classify(err))
	}

	c.mu.Lock()
	c.session.MergePublish = PublishResult{
		State:    PublishPublished,
		CommitID: res.CommitID,
		Changed:  res.Changed,
	}
	if !res.Changed {
		// Nothing new on the target; no job to discover.
		c.session.Phase = PhaseMergeTerminal
		c.touchLocked()
		c.mu.Unlock()
		c.notify()
		return nil
	}
	c.touchLocked()
	c.mu.Unlock()
	c.notify()

	return c.discoverAndPoll(ctx, slotMerge, res.CommitID, target, ScenarioDirect, true)
}

// failMerge records a merge-phase failure and returns the session to the
// post-verification choice so the operator can retry or fall back to a
// manual merge. The gate still opens: a failed merge is not mid-flight.
func (c *Coordinator) failMerge(err *DeployError) error {
	if err.Kind == KindAuth {
		c.creds.Invalidate()
	}

	c.mu.Lock()
	c.session.MergePublish = PublishResult{State: PublishFailed, Reason: err.Error()}
	c.session.Phase = PhaseAwaitingChoice
	c.session.LastFailure = failureFrom(err)
	c.touchLocked()
	c.mu.Unlock()
	c.notify()

	c.log.Error().Err(err).Msg("merge-back failed")
	return err
}

// RequestCleanup reports whether ephemeral branch cleanup may be offered:
// the session is finishable, a working branch distinct from the target
// exists, and no cleanup has run yet (or the previous one failed).
func (c *Coordinator) RequestCleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupEligibleLocked()
}

func (c *Coordinator) cleanupEligibleLocked() error {
	s := c.session
	if !s.HasEphemeralBranch() {
		return NewInvalidTransition("cleanup", s.Phase)
	}
	if !SessionCanFinish(s) {
		return NewInvalidTransition("cleanup", s.Phase)
	}
	switch s.Cleanup.Status {
	case CleanupInProgress, CleanupDone:
		return NewInvalidTransition("cleanup", s.Phase)
	}
	return nil
}

// ConfirmCleanup resolves the cleanup offer. Declining marks cleanup done
// without touching the branch; confirming drives the four-step teardown. A
// failed teardown is retryable and never blocks finishing.
func (c *Coordinator) ConfirmCleanup(ctx context.Context, del bool) error {
	c.mu.Lock()
	if err := c.cleanupEligibleLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	if !del {
		c.session.Cleanup = CleanupState{Status: CleanupDone}
		c.session.Phase = PhaseCleanupDone
		c.touchLocked()
		c.mu.Unlock()
		c.notify()
		c.log.Info().Str("branch", c.Session().WorkingBranch).Msg("cleanup declined, branch kept")
		return nil
	}

	prevPhase := c.session.Phase
	c.session.Cleanup = CleanupState{Status: CleanupInProgress}
	c.session.Phase = PhaseCleanupInProgress
	working := c.session.WorkingBranch
	target := c.session.TargetBranch
	c.touchLocked()
	c.mu.Unlock()
	c.notify()

	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		cleanupErr := NewCleanupStepError(CleanupStepRegistration, err)
		c.mu.Lock()
		c.session.Cleanup = CleanupState{Status: CleanupFailed, Reason: cleanupErr.Error()}
		c.session.Phase = prevPhase
		c.session.LastFailure = failureFrom(cleanupErr)
		c.touchLocked()
		c.mu.Unlock()
		c.notify()
		return cleanupErr
	}

	trail, tdErr := c.branches.Teardown(ctx, working, target, creds)
	for _, step := range trail {
		c.recordCleanupStep(step.Name, step.Status == CleanupStepOK)
	}

	c.mu.Lock()
	if tdErr != nil {
		c.session.Cleanup = CleanupState{
			Status: CleanupFailed,
			Steps:  trail,
			Reason: tdErr.Error(),
		}
		c.session.Phase = prevPhase
		c.session.LastFailure = failureFrom(tdErr)
	} else {
		c.session.Cleanup = CleanupState{Status: CleanupDone, Steps: trail}
		c.session.Phase = PhaseCleanupDone
	}
	c.touchLocked()
	c.mu.Unlock()
	c.notify()
	return tdErr
}

// Reset discards the session, cancelling every live polling subscription,
// and starts over idle. Used when the operator finishes, navigates away, or
// when the upstream identity (app, branch, repository) changes.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.cancelAllLocked()
	c.session = newSession(c.cfg.TargetBranch)
	c.mu.Unlock()
	c.notify()
	c.log.Debug().Msg("session reset")
}

// Restore replaces the idle session with a previously persisted one and
// resumes polling for any slot whose job was still in flight.
func (c *Coordinator) Restore(ctx context.Context, s DeploymentSession) error {
	c.mu.Lock()
	if c.session.Phase != PhaseIdle {
		phase := c.session.Phase
		c.mu.Unlock()
		return NewInvalidTransition("restore", phase)
	}
	restored := s
	c.session = &restored
	c.mu.Unlock()
	c.notify()

	if s.TrackedJob != nil && s.TrackedSnapshot != nil && s.TrackedSnapshot.Status.IsActive() {
		c.startPolling(ctx, slotTracked, *s.TrackedSnapshot, s.TrackedJob.Branch)
	}
	if s.MergeJob != nil && s.MergeSnapshot != nil && s.MergeSnapshot.Status.IsActive() {
		c.startPolling(ctx, slotMerge, *s.MergeSnapshot, s.MergeJob.Branch)
	}
	return nil
}

// cancelSlotLocked cancels the slot's subscription, if any. Caller holds the
// mutex.
func (c *Coordinator) cancelSlotLocked(slot jobSlot) {
	if sub, ok := c.subs[slot]; ok {
		sub.Cancel()
		delete(c.subs, slot)
	}
}

func (c *Coordinator) cancelAllLocked() {
	for slot, sub := range c.subs {
		sub.Cancel()
		delete(c.subs, slot)
	}
}

func (c *Coordinator) touchLocked() {
	c.session.UpdatedAt = time.Now().UTC()
}

func (c *Coordinator) notify() {
	if c.onChange == nil {
		return
	}
	c.mu.Lock()
	snap := *c.session
	c.mu.Unlock()
	c.onChange(snap)
}

func (c *Coordinator) recordPublish(scenario Scenario, outcome string) {
	if c.rec != nil {
		c.rec.RecordPublish(scenario, outcome)
	}
}

func (c *Coordinator) recordDiscovery(outcome string, attempts int) {
	if c.rec != nil {
		c.rec.RecordDiscovery(outcome, attempts)
	}
}

func (c *Coordinator) recordPollTick(status JobStatus) {
	if c.rec != nil {
		c.rec.RecordPollTick(status)
	}
}

func (c *Coordinator) recordJobOutcome(status JobStatus) {
	if c.rec != nil {
		c.rec.RecordJobOutcome(status)
	}
}

func (c *Coordinator) recordCleanupStep(step CleanupStepName, ok bool) {
	if c.rec != nil {
		c.rec.RecordCleanupStep(step, ok)
	}
}
