package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

func newRetryCommand() *cobra.Command {
	var (
		sessionID string
		jobID     string
	)

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Retry a terminal CI job",
		Long: `Start a retry of a job that has already reached a terminal state and
track the new job to completion. The session returns to its tracking phase;
discovery and polling run exactly as after a fresh push.

Without --job the session's last terminal job is retried.`,
		Example: `  # Retry the latest session's last terminal job
  redeploy retry

  # Retry a specific job in a specific session
  redeploy retry --session 6f1c... --job job-42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			session, err := app.restoreSession(ctx, sessionID)
			if err != nil {
				return err
			}

			target := jobID
			if target == "" {
				switch {
				case session.Phase == deploy.PhaseMergeTerminal && session.MergeLastTermin != nil:
					target = session.MergeLastTermin.JobID
				case session.LastTerminalJob != nil:
					target = session.LastTerminalJob.JobID
				default:
					return fmt.Errorf("session %s has no terminal job to retry", session.ID)
				}
			}

			app.logEvent(ctx, session.ID, "info", "retrying job "+target)
			if err := app.coord.RetryJob(ctx, target); err != nil {
				return err
			}

			session, err = app.waitForSettled(ctx)
			if err != nil {
				return err
			}
			printSession(session)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (defaults to the most recent)")
	cmd.Flags().StringVar(&jobID, "job", "", "job id to retry (defaults to the last terminal job)")

	return cmd
}
