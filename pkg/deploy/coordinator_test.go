package deploy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// Mock publisher for testing
type mockPublisher struct {
	mu        sync.Mutex
	commitID  string
	commitErr error
	pushErr   error
	mergeErr  error
	createErr error

	checkoutErr     error
	deleteRemoteErr error
	deleteLocalErr  error

	calls []string
}

func (m *mockPublisher) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockPublisher) callList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockPublisher) StageAndCommit(ctx context.Context, message string) (string, error) {
	m.record("commit")
	if m.commitErr != nil {
		return "", m.commitErr
	}
	return m.commitID, nil
}

func (m *mockPublisher) Push(ctx context.Context, branch string, creds Credentials) error {
	m.record("push:" + branch)
	return m.pushErr
}

func (m *mockPublisher) CreateBranch(ctx context.Context, name string) error {
	m.record("create:" + name)
	return m.createErr
}

func (m *mockPublisher) Checkout(ctx context.Context, branch string) error {
	m.record("checkout:" + branch)
	return m.checkoutErr
}

func (m *mockPublisher) Merge(ctx context.Context, sourceBranch string) error {
	m.record("merge:" + sourceBranch)
	return m.mergeErr
}

func (m *mockPublisher) DeleteRemoteBranch(ctx context.Context, branch string, creds Credentials) error {
	m.record("delete-remote:" + branch)
	return m.deleteRemoteErr
}

func (m *mockPublisher) DeleteLocalBranch(ctx context.Context, branch string) error {
	m.record("delete-local:" + branch)
	return m.deleteLocalErr
}

// Mock job directory for testing
type mockDirectory struct {
	mu sync.Mutex

	// listResults are returned in order; the last entry repeats.
	listResults [][]JobSnapshot
	listErrs    []error
	listCalls   []string

	// jobSequence holds successive GetJob snapshots per job id; the last
	// entry repeats.
	jobSequence map[string][]JobSnapshot
	getCalls    map[string]int

	startResult JobSnapshot
	startErr    error
	startCalls  []string

	createRegErr   error
	deleteRegErr   error
	createRegCalls int
	deleteRegCalls int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		jobSequence: make(map[string][]JobSnapshot),
		getCalls:    make(map[string]int),
	}
}

func (m *mockDirectory) ListJobs(ctx context.Context, branch, commitFilter string) ([]JobSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.listCalls)
	m.listCalls = append(m.listCalls, branch+"|"+commitFilter)
	if idx < len(m.listErrs) && m.listErrs[idx] != nil {
		return nil, m.listErrs[idx]
	}
	if len(m.listResults) == 0 {
		return nil, nil
	}
	if idx >= len(m.listResults) {
		idx = len(m.listResults) - 1
	}
	return m.listResults[idx], nil
}

func (m *mockDirectory) GetJob(ctx context.Context, branch, jobID string) (JobSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := m.jobSequence[jobID]
	if len(seq) == 0 {
		return JobSnapshot{}, errors.New("unknown job")
	}
	idx := m.getCalls[jobID]
	m.getCalls[jobID]++
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], nil
}

func (m *mockDirectory) StartJob(ctx context.Context, branch string, trigger TriggerType, baseJobID string) (JobSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls = append(m.startCalls, branch+"|"+string(trigger)+"|"+baseJobID)
	if m.startErr != nil {
		return JobSnapshot{}, m.startErr
	}
	return m.startResult, nil
}

func (m *mockDirectory) CreateBranchRegistration(ctx context.Context, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createRegCalls++
	return m.createRegErr
}

func (m *mockDirectory) DeleteBranchRegistration(ctx context.Context, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteRegCalls++
	return m.deleteRegErr
}

func (m *mockDirectory) listCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listCalls)
}

func (m *mockDirectory) getCallCount(jobID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls[jobID]
}

// Mock credential source with session caching semantics
type mockCreds struct {
	mu          sync.Mutex
	cached      bool
	prompts     int
	invalidated int
	err         error
}

func (m *mockCreds) Credentials(ctx context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Credentials{}, m.err
	}
	if !m.cached {
		m.prompts++
		m.cached = true
	}
	return Credentials{Username: "alice", Secret: "token"}, nil
}

func (m *mockCreds) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = false
	m.invalidated++
}

func testConfig() Config {
	return Config{
		TargetBranch:     "main",
		Identity:         "alice",
		CommitMessage:    "update runtime",
		PollInterval:     15 * time.Millisecond,
		RetrySettleDelay: 2 * time.Millisecond,
		Discovery: DiscoveryConfig{
			Attempts:        3,
			BaseDelay:       2 * time.Millisecond,
			SettleDelay:     2 * time.Millisecond,
			PostCreateDelay: time.Millisecond,
		},
	}
}

func newTestCoordinator(pub *mockPublisher, dir *mockDirectory, creds *mockCreds) *Coordinator {
	return NewCoordinator(Deps{
		Publisher:   pub,
		Directory:   dir,
		Credentials: creds,
		Logger:      zerolog.Nop(),
	}, testConfig())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func runningJob(id, commit string) JobSnapshot {
	now := time.Now()
	return JobSnapshot{JobID: id, CommitID: commit, Status: JobStatusRunning, StartedAt: &now}
}

func doneJob(id, commit string, status JobStatus) JobSnapshot {
	now := time.Now()
	return JobSnapshot{JobID: id, CommitID: commit, Status: status, StartedAt: &now, EndedAt: &now}
}

func TestDirectScenarioWithChanges(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory()
	// Job appears on the second discovery attempt.
	dir.listResults = [][]JobSnapshot{
		nil,
		{runningJob("j1", "abc123")},
	}
	dir.jobSequence["j1"] = []JobSnapshot{doneJob("j1", "abc123", JobStatusSucceeded)}
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if c.CanFinish() {
		t.Fatal("gate open before publish")
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	s := c.Session()
	if s.Phase != PhasePolling && s.Phase != PhaseTerminal {
		t.Fatalf("phase = %s, want polling or terminal", s.Phase)
	}
	if s.WorkingBranch != "main" {
		t.Fatalf("working branch = %q, want main", s.WorkingBranch)
	}
	if s.Publish.CommitID != "abc123" || !s.Publish.Changed {
		t.Fatalf("publish = %+v", s.Publish)
	}

	waitFor(t, "terminal phase", func() bool { return c.Session().Phase == PhaseTerminal })

	s = c.Session()
	if s.TrackedSnapshot == nil || s.TrackedSnapshot.Status != JobStatusSucceeded {
		t.Fatalf("tracked snapshot = %+v", s.TrackedSnapshot)
	}
	if s.LastTerminalJob == nil || s.LastTerminalJob.JobID != "j1" {
		t.Fatalf("last terminal job = %+v", s.LastTerminalJob)
	}
	if !c.CanFinish() {
		t.Fatal("gate closed after terminal job")
	}
}

func TestDirectNoChangesShortCircuit(t *testing.T) {
	pub := &mockPublisher{commitErr: ErrNoChanges}
	dir := newMockDirectory()
	stale := doneJob("old", "def456", JobStatusFailed)
	dir.listResults = [][]JobSnapshot{{stale}}
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	// One ListJobs call for the previous-job check; discovery never ran.
	if got := dir.listCallCount(); got != 1 {
		t.Fatalf("ListJobs calls = %d, want 1", got)
	}
	if len(dir.startCalls) != 0 {
		t.Fatalf("StartJob calls = %v, want none", dir.startCalls)
	}

	s := c.Session()
	if s.Phase != PhaseTerminal {
		t.Fatalf("phase = %s, want %s", s.Phase, PhaseTerminal)
	}
	if !s.NoDeploymentChanges {
		t.Fatal("NoDeploymentChanges not set")
	}
	if s.LastTerminalJob == nil || s.LastTerminalJob.JobID != "old" {
		t.Fatalf("last terminal job = %+v, want stale failed job", s.LastTerminalJob)
	}
	if !c.CanFinish() {
		t.Fatal("gate closed after no-changes check")
	}
}

func TestTestBranchFullWorkflow(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{
		{runningJob("t1", "abc123")}, // test-phase discovery
	}
	dir.jobSequence["t1"] = []JobSnapshot{doneJob("t1", "abc123", JobStatusSucceeded)}
	dir.startResult = runningJob("auto", "HEAD")
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioTestBranch); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	s := c.Session()
	if !strings.HasPrefix(s.WorkingBranch, "test-alice-") {
		t.Fatalf("working branch = %q, want test-alice-<ts>", s.WorkingBranch)
	}
	if dir.createRegCalls != 1 {
		t.Fatalf("branch registrations = %d, want 1", dir.createRegCalls)
	}

	waitFor(t, "awaiting choice", func() bool { return c.Session().Phase == PhaseAwaitingChoice })
	if c.CanFinish() {
		t.Fatal("gate open before post-verification choice")
	}

	// Merge-phase job on the target branch.
	dir.mu.Lock()
	dir.listResults = [][]JobSnapshot{{runningJob("m1", "merge789")}}
	dir.listCalls = nil
	dir.listErrs = nil
	dir.jobSequence["m1"] = []JobSnapshot{doneJob("m1", "merge789", JobStatusSucceeded)}
	dir.mu.Unlock()
	pub.mu.Lock()
	pub.commitID = "merge789"
	pub.mu.Unlock()

	if err := c.ChoosePostVerification(context.Background(), ChoiceMergeToTarget); err != nil {
		t.Fatalf("ChoosePostVerification: %v", err)
	}

	waitFor(t, "merge terminal", func() bool { return c.Session().Phase == PhaseMergeTerminal })
	if !c.CanFinish() {
		t.Fatal("gate closed after merge job succeeded")
	}

	calls := pub.callList()
	var mergeSeen bool
	for _, call := range calls {
		if strings.HasPrefix(call, "merge:test-alice-") {
			mergeSeen = true
		}
	}
	if !mergeSeen {
		t.Fatalf("merge of ephemeral branch not recorded in %v", calls)
	}

	// Cleanup: four ordered steps, all succeeding.
	if err := c.RequestCleanup(); err != nil {
		t.Fatalf("RequestCleanup: %v", err)
	}
	if err := c.ConfirmCleanup(context.Background(), true); err != nil {
		t.Fatalf("ConfirmCleanup: %v", err)
	}

	s = c.Session()
	if s.Cleanup.Status != CleanupDone {
		t.Fatalf("cleanup status = %s, want done", s.Cleanup.Status)
	}
	if len(s.Cleanup.Steps) != 4 {
		t.Fatalf("cleanup steps = %d, want 4", len(s.Cleanup.Steps))
	}
	wantOrder := []CleanupStepName{
		CleanupStepRegistration,
		CleanupStepRemoteBranch,
		CleanupStepCheckoutTarget,
		CleanupStepLocalBranch,
	}
	for i, step := range s.Cleanup.Steps {
		if step.Name != wantOrder[i] || step.Status != CleanupStepOK {
			t.Fatalf("step %d = %+v, want %s ok", i, step, wantOrder[i])
		}
	}
}

func TestCompletionGateMonotonicity(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{{doneJob("t1", "abc123", JobStatusSucceeded)}}
	dir.startResult = runningJob("auto", "HEAD")
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioTestBranch); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	waitFor(t, "awaiting choice", func() bool { return c.Session().Phase == PhaseAwaitingChoice })

	// Job is terminal, but no choice was made: gate stays closed.
	if c.CanFinish() {
		t.Fatal("gate open with unset post-verification choice")
	}

	if err := c.ChoosePostVerification(context.Background(), ChoiceManualMerge); err != nil {
		t.Fatalf("ChoosePostVerification: %v", err)
	}
	if !c.CanFinish() {
		t.Fatal("gate closed immediately after manual merge choice")
	}
}

func TestAuthFailureRecovery(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	pub.pushErr = NewAuthError("remote rejected credentials", errors.New("401 unauthorized"))
	dir := newMockDirectory()
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}

	err := c.Push(context.Background())
	if !IsAuthFailure(err) {
		t.Fatalf("Push error = %v, want auth failure", err)
	}
	if creds.invalidated != 1 {
		t.Fatalf("invalidations = %d, want 1", creds.invalidated)
	}

	s := c.Session()
	if s.LastFailure == nil || s.LastFailure.Kind != KindAuth {
		t.Fatalf("last failure = %+v, want auth", s.LastFailure)
	}
	if s.Publish.State != PublishFailed {
		t.Fatalf("publish state = %s, want failed", s.Publish.State)
	}

	// Second push re-prompts instead of reusing stale credentials.
	pub.mu.Lock()
	pub.pushErr = nil
	pub.mu.Unlock()
	dir.mu.Lock()
	dir.listResults = [][]JobSnapshot{{doneJob("j1", "abc123", JobStatusSucceeded)}}
	dir.mu.Unlock()

	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("second Push: %v", err)
	}
	if creds.prompts != 2 {
		t.Fatalf("prompts = %d, want 2", creds.prompts)
	}
}

func TestAtMostOneSubscriptionPerSlot(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{{runningJob("j1", "abc123")}}
	dir.jobSequence["j1"] = []JobSnapshot{runningJob("j1", "abc123")}
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	waitFor(t, "first poll tick", func() bool { return dir.getCallCount("j1") > 0 })

	// Second push tracks a new job; the first subscription must die.
	pub.mu.Lock()
	pub.commitID = "def456"
	pub.mu.Unlock()
	dir.mu.Lock()
	dir.listResults = [][]JobSnapshot{{runningJob("j2", "def456")}}
	dir.listCalls = nil
	dir.jobSequence["j2"] = []JobSnapshot{runningJob("j2", "def456")}
	dir.mu.Unlock()

	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("second Push: %v", err)
	}
	waitFor(t, "second job polled", func() bool { return dir.getCallCount("j2") > 0 })

	j1Calls := dir.getCallCount("j1")
	time.Sleep(5 * testConfig().PollInterval)
	if got := dir.getCallCount("j1"); got > j1Calls+1 {
		t.Fatalf("first subscription still polling: %d calls after cancel point %d", got, j1Calls)
	}
	if dir.getCallCount("j2") == 0 {
		t.Fatal("second subscription never polled")
	}

	c.Reset()
}

func TestDiscoveryFailureIsAdvisory(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory() // empty job lists: discovery exhausts
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push returned %v, want nil for advisory discovery failure", err)
	}

	s := c.Session()
	if s.Phase != PhaseAwaitingJob {
		t.Fatalf("phase = %s, want %s", s.Phase, PhaseAwaitingJob)
	}
	if s.LastFailure == nil || s.LastFailure.Kind != KindDiscoveryTimeout {
		t.Fatalf("last failure = %+v, want discovery timeout", s.LastFailure)
	}
	if !c.CanFinish() {
		t.Fatal("discovery failure must not block completion")
	}
}

func TestTestBranchDiscoveryFailureIsAdvisory(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory() // empty job lists: discovery exhausts
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioTestBranch); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push returned %v, want nil for advisory discovery failure", err)
	}

	s := c.Session()
	if s.Phase != PhaseAwaitingJob {
		t.Fatalf("phase = %s, want %s", s.Phase, PhaseAwaitingJob)
	}
	if s.LastFailure == nil || s.LastFailure.Kind != KindDiscoveryTimeout {
		t.Fatalf("last failure = %+v, want discovery timeout", s.LastFailure)
	}
	if !c.CanFinish() {
		t.Fatal("discovery failure must not block completion")
	}
}

func TestEphemeralBranchCreateFailureFailsPublish(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123", createErr: errors.New("ref already exists")}
	dir := newMockDirectory()
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioTestBranch); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}

	err := c.Push(context.Background())
	var de *DeployError
	if !errors.As(err, &de) || de.Kind != KindPublish {
		t.Fatalf("Push error = %v, want publish failure", err)
	}

	s := c.Session()
	if s.Phase != PhaseModeSelected {
		t.Fatalf("phase = %s, want %s", s.Phase, PhaseModeSelected)
	}
	if s.Publish.State != PublishFailed {
		t.Fatalf("publish state = %s, want failed", s.Publish.State)
	}
	if s.LastFailure == nil || s.LastFailure.Kind != KindPublish {
		t.Fatalf("last failure = %+v, want publish", s.LastFailure)
	}
	for _, call := range pub.callList() {
		if call == "commit" {
			t.Fatal("commit attempted after branch creation failed")
		}
	}
}

func TestTestBranchNoChangesPushesEmptyRef(t *testing.T) {
	pub := &mockPublisher{commitErr: ErrNoChanges}
	dir := newMockDirectory()
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioTestBranch); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	s := c.Session()
	if s.Phase != PhaseTerminal || !s.NoDeploymentChanges {
		t.Fatalf("session = phase %s, noChanges %v", s.Phase, s.NoDeploymentChanges)
	}
	if dir.listCallCount() != 0 {
		t.Fatal("discovery ran despite no changes")
	}

	var pushed bool
	for _, call := range pub.callList() {
		if strings.HasPrefix(call, "push:test-alice-") {
			pushed = true
		}
	}
	if !pushed {
		t.Fatal("empty branch ref was not pushed")
	}
	if !c.CanFinish() {
		t.Fatal("gate closed for no-changes test branch")
	}
}

func TestRetryRejectedForNonTerminalJob(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{{runningJob("j1", "abc123")}}
	dir.jobSequence["j1"] = []JobSnapshot{runningJob("j1", "abc123")}
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	err := c.RetryJob(context.Background(), "j1")
	if !IsInvalidTransition(err) {
		t.Fatalf("RetryJob on running job = %v, want invalid transition", err)
	}
	c.Reset()
}

func TestRetryFailedJobResumesPolling(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{{doneJob("j1", "abc123", JobStatusFailed)}}
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	waitFor(t, "terminal", func() bool { return c.Session().Phase == PhaseTerminal })

	dir.mu.Lock()
	dir.startResult = runningJob("j2", "abc124")
	dir.listResults = [][]JobSnapshot{{runningJob("j2", "abc124")}}
	dir.listCalls = nil
	dir.jobSequence["j2"] = []JobSnapshot{doneJob("j2", "abc124", JobStatusSucceeded)}
	dir.mu.Unlock()

	if err := c.RetryJob(context.Background(), "j1"); err != nil {
		t.Fatalf("RetryJob: %v", err)
	}

	dir.mu.Lock()
	var retryStarted bool
	for _, call := range dir.startCalls {
		if call == "main|retry|j1" {
			retryStarted = true
		}
	}
	dir.mu.Unlock()
	if !retryStarted {
		t.Fatal("retry trigger not issued for j1")
	}

	waitFor(t, "retried job terminal", func() bool {
		s := c.Session()
		return s.Phase == PhaseTerminal && s.LastTerminalJob != nil && s.LastTerminalJob.JobID == "j2"
	})
}

func TestSelectScenarioRejectedAfterPublish(t *testing.T) {
	pub := &mockPublisher{commitID: "abc123"}
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{{doneJob("j1", "abc123", JobStatusSucceeded)}}
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	err := c.SelectScenario(ScenarioTestBranch)
	if !IsInvalidTransition(err) {
		t.Fatalf("SelectScenario after publish = %v, want invalid transition", err)
	}
}

func TestCleanupRejectedForDirectScenario(t *testing.T) {
	pub := &mockPublisher{commitErr: ErrNoChanges}
	dir := newMockDirectory()
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioDirect); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if err := c.RequestCleanup(); !IsInvalidTransition(err) {
		t.Fatalf("RequestCleanup without ephemeral branch = %v, want invalid transition", err)
	}
}

func TestCleanupRejectedWhileDone(t *testing.T) {
	pub := &mockPublisher{commitErr: ErrNoChanges}
	dir := newMockDirectory()
	creds := &mockCreds{}

	c := newTestCoordinator(pub, dir, creds)
	if err := c.SelectScenario(ScenarioTestBranch); err != nil {
		t.Fatalf("SelectScenario: %v", err)
	}
	if err := c.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := c.ConfirmCleanup(context.Background(), true); err != nil {
		t.Fatalf("ConfirmCleanup: %v", err)
	}
	if err := c.ConfirmCleanup(context.Background(), true); !IsInvalidTransition(err) {
		t.Fatal("re-entrant cleanup was not rejected")
	}
}

func TestSessionRestoreResumesPolling(t *testing.T) {
	dir := newMockDirectory()
	dir.jobSequence["j1"] = []JobSnapshot{doneJob("j1", "abc123", JobStatusSucceeded)}
	creds := &mockCreds{}

	saved := DeploymentSession{
		ID:            "restored",
		Scenario:      ScenarioDirect,
		Phase:         PhasePolling,
		TargetBranch:  "main",
		WorkingBranch: "main",
		Publish:       PublishResult{State: PublishPublished, CommitID: "abc123", Changed: true},
		TrackedJob:    &JobRef{JobID: "j1", Branch: "main"},
	}
	snap := runningJob("j1", "abc123")
	saved.TrackedSnapshot = &snap

	c := newTestCoordinator(&mockPublisher{}, dir, creds)
	if err := c.Restore(context.Background(), saved); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	waitFor(t, "restored session terminal", func() bool { return c.Session().Phase == PhaseTerminal })
	if !c.CanFinish() {
		t.Fatal("gate closed after restored job finished")
	}
}
