package deploy

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyPreservesExistingKind(t *testing.T) {
	auth := NewAuthError("rejected", errors.New("401"))
	wrapped := fmt.Errorf("push failed: %w", auth)

	de := Classify(wrapped)
	if de.Kind != KindAuth {
		t.Fatalf("kind = %s, want auth", de.Kind)
	}
	if !IsAuthFailure(wrapped) {
		t.Fatal("IsAuthFailure missed wrapped auth error")
	}
}

func TestClassifyDefaultsToPublish(t *testing.T) {
	de := Classify(errors.New("disk full"))
	if de.Kind != KindPublish {
		t.Fatalf("kind = %s, want publish", de.Kind)
	}
}

func TestAdvisoryKinds(t *testing.T) {
	if !IsAdvisory(NewDiscoveryTimeout("no job", nil)) {
		t.Fatal("discovery timeout should be advisory")
	}
	if !IsAdvisory(NewCleanupStepError(CleanupStepRemoteBranch, errors.New("x"))) {
		t.Fatal("cleanup step failure should be advisory")
	}
	if IsAdvisory(NewPublishError("boom", nil)) {
		t.Fatal("publish failure must not be advisory")
	}
}

func TestErrorsIsMatchesOnKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewMergeError("conflict", nil))
	if !errors.Is(err, &DeployError{Kind: KindMerge}) {
		t.Fatal("errors.Is did not match on kind")
	}
	if errors.Is(err, &DeployError{Kind: KindAuth}) {
		t.Fatal("errors.Is matched the wrong kind")
	}
}

func TestJobStatusTerminality(t *testing.T) {
	terminal := []JobStatus{JobStatusSucceeded, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() || s.IsActive() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	active := []JobStatus{JobStatusPending, JobStatusProvisioning, JobStatusRunning}
	for _, s := range active {
		if s.IsTerminal() || !s.IsActive() {
			t.Fatalf("%s should be active", s)
		}
	}
}
