package deploy

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is the fixed period between job status refreshes. Job
// status changes happen on a human/CI cadence, so the period is constant
// rather than congestion-sensitive.
const DefaultPollInterval = 10 * time.Second

// Subscription is a handle to one polling loop. Cancel is safe to call more
// than once and after the loop has already torn itself down.
type Subscription struct {
	cancel   chan struct{}
	done     chan struct{}
	cancelFn sync.Once
}

// Cancel stops the polling loop. It does not wait for an in-flight GetJob
// call to return.
func (s *Subscription) Cancel() {
	s.cancelFn.Do(func() { close(s.cancel) })
}

// Done is closed when the polling loop has exited, either after the job
// reached a terminal state or after cancellation.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Poller refreshes job snapshots on a fixed-period timer, one goroutine per
// subscription. Ticks within a subscription are strictly serialized: the
// next timer is armed only after the previous GetJob call returned.
type Poller struct {
	dir      JobDirectory
	interval time.Duration
	log      zerolog.Logger
}

// NewPoller creates a poller over the job directory. A non-positive interval
// falls back to DefaultPollInterval.
func NewPoller(dir JobDirectory, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{dir: dir, interval: interval, log: log}
}

// Subscribe starts polling the job and invokes onUpdate with every fetched
// snapshot, including ticks where the status did not change. The loop tears
// itself down the first time a terminal snapshot is observed. The caller
// must Cancel the subscription on scenario switch, session reset, or
// teardown to avoid orphaned timers.
func (p *Poller) Subscribe(ctx context.Context, ref JobRef, onUpdate func(JobSnapshot)) *Subscription {
	sub := &Subscription{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	log := p.log.With().Str("branch", ref.Branch).Str("job_id", ref.JobID).Logger()

	go func() {
		defer close(sub.done)

		timer := time.NewTimer(p.interval)
		defer timer.Stop()

		for {
			select {
			case <-sub.cancel:
				log.Debug().Msg("polling cancelled")
				return
			case <-ctx.Done():
				log.Debug().Msg("polling context done")
				return
			case <-timer.C:
			}

			snap, err := p.dir.GetJob(ctx, ref.Branch, ref.JobID)

			// The subscription may have been cancelled while the
			// refresh was in flight; deliver nothing in that case.
			select {
			case <-sub.cancel:
				return
			default:
			}

			if err != nil {
				// Poll failures are advisory; keep trying on the
				// next tick.
				log.Warn().Err(err).Msg("job refresh failed")
				timer.Reset(p.interval)
				continue
			}

			onUpdate(snap)

			if snap.Status.IsTerminal() {
				log.Info().Str("status", string(snap.Status)).Msg("job reached terminal state")
				return
			}
			timer.Reset(p.interval)
		}
	}()

	return sub
}
