package telemetry

import (
	"context"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

// instrument wraps one adapter call with a span, a latency observation, and
// an error counter.
func (t *Telemetry) instrument(ctx context.Context, adapter, operation string, fn func(context.Context) error) error {
	ctx, span := t.Tracer.StartAdapterSpan(ctx, adapter, operation)
	defer span.End()

	timer := NewTimer()
	err := fn(ctx)

	t.Metrics.RecordAdapterCall(adapter, operation, timer.Duration())
	if err != nil {
		t.Metrics.RecordAdapterError(adapter, operation)
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	return err
}

// InstrumentedPublisher decorates a deploy.Publisher with adapter telemetry.
type InstrumentedPublisher struct {
	next deploy.Publisher
	tel  *Telemetry
}

var _ deploy.Publisher = (*InstrumentedPublisher)(nil)

// NewInstrumentedPublisher wraps pub so every call records a span, a latency
// observation, and an error counter under the "git" adapter label.
func NewInstrumentedPublisher(pub deploy.Publisher, tel *Telemetry) *InstrumentedPublisher {
	return &InstrumentedPublisher{next: pub, tel: tel}
}

func (p *InstrumentedPublisher) StageAndCommit(ctx context.Context, message string) (string, error) {
	var commit string
	var err error
	_ = p.tel.instrument(ctx, "git", "stage-and-commit", func(ctx context.Context) error {
		commit, err = p.next.StageAndCommit(ctx, message)
		if err == deploy.ErrNoChanges {
			// A clean tree is a valid outcome, not an adapter failure.
			return nil
		}
		return err
	})
	return commit, err
}

func (p *InstrumentedPublisher) Push(ctx context.Context, branch string, creds deploy.Credentials) error {
	return p.tel.instrument(ctx, "git", "push", func(ctx context.Context) error {
		return p.next.Push(ctx, branch, creds)
	})
}

func (p *InstrumentedPublisher) CreateBranch(ctx context.Context, name string) error {
	return p.tel.instrument(ctx, "git", "create-branch", func(ctx context.Context) error {
		return p.next.CreateBranch(ctx, name)
	})
}

func (p *InstrumentedPublisher) Checkout(ctx context.Context, branch string) error {
	return p.tel.instrument(ctx, "git", "checkout", func(ctx context.Context) error {
		return p.next.Checkout(ctx, branch)
	})
}

func (p *InstrumentedPublisher) Merge(ctx context.Context, sourceBranch string) error {
	return p.tel.instrument(ctx, "git", "merge", func(ctx context.Context) error {
		return p.next.Merge(ctx, sourceBranch)
	})
}

func (p *InstrumentedPublisher) DeleteRemoteBranch(ctx context.Context, branch string, creds deploy.Credentials) error {
	return p.tel.instrument(ctx, "git", "delete-remote-branch", func(ctx context.Context) error {
		return p.next.DeleteRemoteBranch(ctx, branch, creds)
	})
}

func (p *InstrumentedPublisher) DeleteLocalBranch(ctx context.Context, branch string) error {
	return p.tel.instrument(ctx, "git", "delete-local-branch", func(ctx context.Context) error {
		return p.next.DeleteLocalBranch(ctx, branch)
	})
}

// InstrumentedDirectory decorates a deploy.JobDirectory with adapter telemetry.
type InstrumentedDirectory struct {
	next deploy.JobDirectory
	tel  *Telemetry
}

var _ deploy.JobDirectory = (*InstrumentedDirectory)(nil)

// NewInstrumentedDirectory wraps dir so every call records a span, a latency
// observation, and an error counter under the "pipeline" adapter label.
func NewInstrumentedDirectory(dir deploy.JobDirectory, tel *Telemetry) *InstrumentedDirectory {
	return &InstrumentedDirectory{next: dir, tel: tel}
}

func (d *InstrumentedDirectory) ListJobs(ctx context.Context, branch, commitFilter string) ([]deploy.JobSnapshot, error) {
	var jobs []deploy.JobSnapshot
	err := d.tel.instrument(ctx, "pipeline", "list-jobs", func(ctx context.Context) error {
		var err error
		jobs, err = d.next.ListJobs(ctx, branch, commitFilter)
		return err
	})
	return jobs, err
}

func (d *InstrumentedDirectory) GetJob(ctx context.Context, branch, jobID string) (deploy.JobSnapshot, error) {
	var job deploy.JobSnapshot
	err := d.tel.instrument(ctx, "pipeline", "get-job", func(ctx context.Context) error {
		var err error
		job, err = d.next.GetJob(ctx, branch, jobID)
		return err
	})
	return job, err
}

func (d *InstrumentedDirectory) StartJob(ctx context.Context, branch string, trigger deploy.TriggerType, baseJobID string) (deploy.JobSnapshot, error) {
	var job deploy.JobSnapshot
	err := d.tel.instrument(ctx, "pipeline", "start-job", func(ctx context.Context) error {
		var err error
		job, err = d.next.StartJob(ctx, branch, trigger, baseJobID)
		return err
	})
	return job, err
}

func (d *InstrumentedDirectory) CreateBranchRegistration(ctx context.Context, branch string) error {
	return d.tel.instrument(ctx, "pipeline", "create-branch-registration", func(ctx context.Context) error {
		return d.next.CreateBranchRegistration(ctx, branch)
	})
}

func (d *InstrumentedDirectory) DeleteBranchRegistration(ctx context.Context, branch string) error {
	return d.tel.instrument(ctx, "pipeline", "delete-branch-registration", func(ctx context.Context) error {
		return d.next.DeleteBranchRegistration(ctx, branch)
	})
}
