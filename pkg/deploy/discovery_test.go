package deploy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		Attempts:        3,
		BaseDelay:       2 * time.Millisecond,
		SettleDelay:     2 * time.Millisecond,
		PostCreateDelay: time.Millisecond,
	}
}

func TestDiscoveryRetryBound(t *testing.T) {
	dir := newMockDirectory() // always returns an empty job list
	d := NewDiscoverer(dir, testDiscoveryConfig(), zerolog.Nop())

	start := time.Now()
	_, err := d.Discover(context.Background(), "abc123", "main", ScenarioDirect, true)
	elapsed := time.Since(start)

	if got := dir.listCallCount(); got != 3 {
		t.Fatalf("ListJobs calls = %d, want exactly 3", got)
	}
	var de *DeployError
	if !errors.As(err, &de) || de.Kind != KindDiscoveryTimeout {
		t.Fatalf("error = %v, want discovery timeout", err)
	}

	// Attempt n waits n*BaseDelay before querying: 2+4+6ms minimum.
	if min := 12 * time.Millisecond; elapsed < min {
		t.Fatalf("elapsed = %v, want >= %v", elapsed, min)
	}
}

func TestDiscoveryExactCommitPreferredOverHead(t *testing.T) {
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{{
		runningJob("head-job", HeadCommitSentinel),
		runningJob("exact-job", "abc123"),
	}}
	d := NewDiscoverer(dir, testDiscoveryConfig(), zerolog.Nop())

	snap, err := d.Discover(context.Background(), "abc123", "main", ScenarioDirect, true)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if snap.JobID != "exact-job" {
		t.Fatalf("matched %q, want exact-job", snap.JobID)
	}
}

func TestDiscoveryHeadSentinelFallback(t *testing.T) {
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{{
		runningJob("other", "zzz999"),
		runningJob("head-job", HeadCommitSentinel),
	}}
	d := NewDiscoverer(dir, testDiscoveryConfig(), zerolog.Nop())

	snap, err := d.Discover(context.Background(), "abc123", "main", ScenarioDirect, true)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if snap.JobID != "head-job" {
		t.Fatalf("matched %q, want head-job", snap.JobID)
	}
}

func TestDiscoveryMostRecentFallbackIsTestBranchOnly(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	jobs := []JobSnapshot{
		{JobID: "old", CommitID: "aaa", Status: JobStatusRunning, StartedAt: &older},
		{JobID: "new", CommitID: "bbb", Status: JobStatusRunning, StartedAt: &newer},
	}

	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{jobs}
	d := NewDiscoverer(dir, testDiscoveryConfig(), zerolog.Nop())

	// Direct scenario: no unconditional fallback.
	_, err := d.Discover(context.Background(), "ccc", "main", ScenarioDirect, true)
	var de *DeployError
	if !errors.As(err, &de) || de.Kind != KindDiscoveryTimeout {
		t.Fatalf("direct scenario error = %v, want discovery timeout", err)
	}

	// Test-branch scenario: most recent job accepted.
	snap, err := d.Discover(context.Background(), "ccc", "test-x-1", ScenarioTestBranch, true)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if snap.JobID != "new" {
		t.Fatalf("matched %q, want most recent job", snap.JobID)
	}
}

func TestDiscoveryRegistersUnknownTestBranch(t *testing.T) {
	dir := newMockDirectory()
	dir.listResults = [][]JobSnapshot{{runningJob("t1", "abc123")}}
	dir.startResult = runningJob("t1", "abc123")
	d := NewDiscoverer(dir, testDiscoveryConfig(), zerolog.Nop())

	snap, err := d.Discover(context.Background(), "abc123", "test-x-1", ScenarioTestBranch, false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if snap.JobID != "t1" {
		t.Fatalf("matched %q, want t1", snap.JobID)
	}
	if dir.createRegCalls != 1 {
		t.Fatalf("registrations = %d, want 1", dir.createRegCalls)
	}
	if len(dir.startCalls) != 1 || dir.startCalls[0] != "test-x-1|release|" {
		t.Fatalf("start calls = %v, want one release start", dir.startCalls)
	}
}

func TestDiscoveryRegistrationFailureIsNotFatal(t *testing.T) {
	dir := newMockDirectory()
	dir.createRegErr = errors.New("branch already registered")
	dir.startErr = errors.New("build already queued")
	dir.listResults = [][]JobSnapshot{{runningJob("t1", "abc123")}}
	d := NewDiscoverer(dir, testDiscoveryConfig(), zerolog.Nop())

	snap, err := d.Discover(context.Background(), "abc123", "test-x-1", ScenarioTestBranch, false)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if snap.JobID != "t1" {
		t.Fatalf("matched %q, want t1", snap.JobID)
	}
}

func TestDiscoveryEarlyErrorsRetriedFinalErrorSurfaced(t *testing.T) {
	dir := newMockDirectory()
	dir.listErrs = []error{errors.New("transient"), nil}
	dir.listResults = [][]JobSnapshot{nil, {runningJob("j1", "abc123")}}
	d := NewDiscoverer(dir, testDiscoveryConfig(), zerolog.Nop())

	snap, err := d.Discover(context.Background(), "abc123", "main", ScenarioDirect, true)
	if err != nil {
		t.Fatalf("Discover after transient error: %v", err)
	}
	if snap.JobID != "j1" {
		t.Fatalf("matched %q, want j1", snap.JobID)
	}

	// Error on every attempt including the final one surfaces.
	dir = newMockDirectory()
	dir.listErrs = []error{errors.New("down"), errors.New("down"), errors.New("down")}
	d = NewDiscoverer(dir, testDiscoveryConfig(), zerolog.Nop())

	_, err = d.Discover(context.Background(), "abc123", "main", ScenarioDirect, true)
	var de *DeployError
	if !errors.As(err, &de) || de.Kind != KindDiscoveryTimeout {
		t.Fatalf("error = %v, want discovery timeout", err)
	}
	if de.Err == nil {
		t.Fatal("final attempt error not wrapped")
	}
}

func TestDiscoveryHonoursContextCancellation(t *testing.T) {
	dir := newMockDirectory()
	cfg := testDiscoveryConfig()
	cfg.BaseDelay = time.Second
	d := NewDiscoverer(dir, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Discover(ctx, "abc123", "main", ScenarioDirect, true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if dir.listCallCount() != 0 {
		t.Fatal("ListJobs called after cancellation")
	}
}
