package deploy

import (
	"errors"
	"fmt"
)

// ErrNoChanges is returned by Publisher.StageAndCommit when the working tree
// has nothing to commit. It is a valid outcome, not a failure.
var ErrNoChanges = errors.New("no changes to commit")

// ErrNotFound is returned by adapters when the referenced resource does not
// exist. Teardown treats it as success-equivalent for already-deleted
// resources.
var ErrNotFound = errors.New("not found")

// ErrorKind classifies a deployment failure for recovery logic.
type ErrorKind string

const (
	// KindAuth indicates rejected credentials. Cached credentials are
	// invalidated and the operator is re-prompted.
	KindAuth ErrorKind = "auth"

	// KindNoRepository indicates a missing precondition such as no
	// working copy.
	KindNoRepository ErrorKind = "no-repository"

	// KindPublish indicates commit/push mechanics failed for a non-auth
	// reason.
	KindPublish ErrorKind = "publish"

	// KindDiscoveryTimeout indicates no job appeared within the retry
	// budget. Advisory: it never blocks completion.
	KindDiscoveryTimeout ErrorKind = "discovery-timeout"

	// KindJobRetry indicates starting a retry job failed.
	KindJobRetry ErrorKind = "job-retry"

	// KindMerge indicates the merge-back into the target branch failed.
	KindMerge ErrorKind = "merge"

	// KindCleanupStep indicates one step of the branch teardown failed.
	// Advisory: cleanup is retryable and never blocks completion.
	KindCleanupStep ErrorKind = "cleanup-step"

	// KindInvalidTransition indicates an event that is not legal in the
	// session's current phase.
	KindInvalidTransition ErrorKind = "invalid-transition"
)

// DeployError is a classified deployment failure. Adapter errors are caught
// at the coordinator boundary and converted to one of these; nothing escapes
// to the host as an unclassified error.
type DeployError struct {
	// Kind is the failure classification for recovery logic.
	Kind ErrorKind

	// Message is the human-readable failure message.
	Message string

	// Step is set for cleanup failures to identify the failed step.
	Step CleanupStepName

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DeployError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s (step=%s): %s", e.Kind, e.Message, e.Step, e.unwrapMessage())
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for chain inspection.
func (e *DeployError) Unwrap() error {
	return e.Err
}

func (e *DeployError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality for errors.Is: two DeployErrors match when
// their kinds match.
func (e *DeployError) Is(target error) bool {
	t, ok := target.(*DeployError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewAuthError creates an authentication failure.
func NewAuthError(message string, err error) *DeployError {
	return &DeployError{Kind: KindAuth, Message: message, Err: err}
}

// NewPublishError creates a non-auth publish failure.
func NewPublishError(message string, err error) *DeployError {
	return &DeployError{Kind: KindPublish, Message: message, Err: err}
}

// NewDiscoveryTimeout creates an advisory discovery failure.
func NewDiscoveryTimeout(message string, err error) *DeployError {
	return &DeployError{Kind: KindDiscoveryTimeout, Message: message, Err: err}
}

// NewJobRetryError creates a job retry failure.
func NewJobRetryError(message string, err error) *DeployError {
	return &DeployError{Kind: KindJobRetry, Message: message, Err: err}
}

// NewMergeError creates a merge-back failure.
func NewMergeError(message string, err error) *DeployError {
	return &DeployError{Kind: KindMerge, Message: message, Err: err}
}

// NewCleanupStepError creates an advisory cleanup failure for a step.
func NewCleanupStepError(step CleanupStepName, err error) *DeployError {
	return &DeployError{
		Kind:    KindCleanupStep,
		Message: "branch teardown step failed",
		Step:    step,
		Err:     err,
	}
}

// NewInvalidTransition creates an invalid transition error for an event
// received in a phase where it is not legal.
func NewInvalidTransition(event string, phase Phase) *DeployError {
	return &DeployError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("%s is not valid in phase %s", event, phase),
	}
}

// Classify returns the DeployError in err's chain, or wraps err as a
// publish failure if it carries no classification.
func Classify(err error) *DeployError {
	if err == nil {
		return nil
	}
	var de *DeployError
	if errors.As(err, &de) {
		return de
	}
	return NewPublishError("operation failed", err)
}

// IsAuthFailure returns true if the error is classified as an
// authentication failure.
func IsAuthFailure(err error) bool {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Kind == KindAuth
	}
	return false
}

// IsAdvisory returns true for failures that never block session completion.
func IsAdvisory(err error) bool {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Kind == KindDiscoveryTimeout || de.Kind == KindCleanupStep
	}
	return false
}

// IsInvalidTransition returns true if the error rejects an illegal event.
func IsInvalidTransition(err error) bool {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Kind == KindInvalidTransition
	}
	return false
}

// IsNotFound returns true if the error chain contains ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// failureFrom projects an error onto the serializable session failure.
func failureFrom(err error) *Failure {
	de := Classify(err)
	if de == nil {
		return nil
	}
	return &Failure{Kind: de.Kind, Message: de.Error()}
}
