package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// HeadCommitSentinel is the commit id some control planes report for a job
// started against the branch head before the real commit id is resolved.
const HeadCommitSentinel = "HEAD"

// DiscoveryConfig bounds the job discovery retry loop. The zero value is
// replaced by the production schedule: 3 attempts, where attempt n waits
// n*BaseDelay before querying.
type DiscoveryConfig struct {
	// Attempts is the maximum number of ListJobs attempts.
	Attempts int

	// BaseDelay is the delay multiplier: attempt n waits n*BaseDelay
	// before querying, not after.
	BaseDelay time.Duration

	// SettleDelay is the fixed wait before the retry loop begins when the
	// branch had to be registered with the CI system first.
	SettleDelay time.Duration

	// PostCreateDelay is the short wait after a successful branch
	// registration.
	PostCreateDelay time.Duration
}

func (c DiscoveryConfig) withDefaults() DiscoveryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 5 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 5 * time.Second
	}
	if c.PostCreateDelay <= 0 {
		c.PostCreateDelay = 3 * time.Second
	}
	return c
}

// Discoverer finds the CI job corresponding to a just-pushed commit with
// bounded retries and increasing delay.
type Discoverer struct {
	dir JobDirectory
	cfg DiscoveryConfig
	log zerolog.Logger
}

// NewDiscoverer creates a discoverer over the job directory.
func NewDiscoverer(dir JobDirectory, cfg DiscoveryConfig, log zerolog.Logger) *Discoverer {
	return &Discoverer{dir: dir, cfg: cfg.withDefaults(), log: log}
}

// Discover searches for the job matching commitID on the branch.
//
// For the test-branch scenario with a branch not yet known to the CI system,
// the branch is registered first and an explicit release job is started
// best-effort; failures there are logged, not fatal. Adapter errors on
// non-final attempts are swallowed and retried; an error on the final
// attempt is surfaced. When no job matches after all attempts, a
// KindDiscoveryTimeout error is returned.
func (d *Discoverer) Discover(ctx context.Context, commitID, branch string, scenario Scenario, branchKnown bool) (JobSnapshot, error) {
	log := d.log.With().Str("branch", branch).Str("commit", commitID).Logger()

	if scenario == ScenarioTestBranch && !branchKnown {
		if err := d.dir.CreateBranchRegistration(ctx, branch); err != nil {
			log.Warn().Err(err).Msg("branch registration failed, continuing discovery")
		} else {
			if err := sleep(ctx, d.cfg.PostCreateDelay); err != nil {
				return JobSnapshot{}, err
			}
		}

		// Freshly registered branches do not always start a job on
		// their own. Kick one off; the retry loop below will find
		// whichever job the control plane actually created.
		if _, err := d.dir.StartJob(ctx, branch, TriggerRelease, ""); err != nil {
			log.Debug().Err(err).Msg("explicit release start failed, relying on auto-build")
		}

		if err := sleep(ctx, d.cfg.SettleDelay); err != nil {
			return JobSnapshot{}, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		if err := sleep(ctx, time.Duration(attempt)*d.cfg.BaseDelay); err != nil {
			return JobSnapshot{}, err
		}

		jobs, err := d.dir.ListJobs(ctx, branch, commitID)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("job listing failed")
			if attempt == d.cfg.Attempts {
				return JobSnapshot{}, NewDiscoveryTimeout("job listing failed", err)
			}
			continue
		}

		if snap, ok := matchJob(jobs, commitID, scenario); ok {
			log.Info().Str("job_id", snap.JobID).Int("attempt", attempt).Msg("job discovered")
			return snap, nil
		}
		log.Debug().Int("attempt", attempt).Int("jobs", len(jobs)).Msg("no matching job yet")
	}

	return JobSnapshot{}, NewDiscoveryTimeout(
		fmt.Sprintf("no job found for commit %s on %s", commitID, branch), lastErr)
}

// matchJob selects the job for the commit. Preference order: exact commit id
// match, then the HEAD sentinel, then, for the test-branch scenario only,
// the most recent job unconditionally. Freshly created branches may report
// jobs before the commit id is attached to them.
func matchJob(jobs []JobSnapshot, commitID string, scenario Scenario) (JobSnapshot, bool) {
	for _, j := range jobs {
		if j.CommitID == commitID {
			return j, true
		}
	}
	for _, j := range jobs {
		if j.CommitID == HeadCommitSentinel {
			return j, true
		}
	}
	if scenario == ScenarioTestBranch && len(jobs) > 0 {
		return mostRecent(jobs), true
	}
	return JobSnapshot{}, false
}

func mostRecent(jobs []JobSnapshot) JobSnapshot {
	best := jobs[0]
	for _, j := range jobs[1:] {
		if j.StartedAt != nil && (best.StartedAt == nil || j.StartedAt.After(*best.StartedAt)) {
			best = j
		}
	}
	return best
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
