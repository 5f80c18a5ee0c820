package commands

import (
	"github.com/spf13/cobra"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

func newStatusCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a deployment session",
		Long: `Show the persisted state of a deployment session: publish outcome,
tracked job, merge progress, cleanup trail, and the last failure if any.

Without --session the most recently updated session is shown.`,
		Example: `  # Show the latest session
  redeploy status

  # Show a specific session as JSON
  redeploy status --session 6f1c... --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			id := sessionID
			if id == "" {
				summaries, err := app.store.ListSessions(ctx, 1, 0)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					cmd.Println("No deployment sessions recorded.")
					return nil
				}
				id = summaries[0].ID
			}

			session, err := app.store.GetSession(ctx, id)
			if err != nil {
				return err
			}

			printSession(*session)
			if len(session.Cleanup.Steps) > 0 || session.Cleanup.Status != deploy.CleanupNotStarted {
				printCleanup(session.Cleanup)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (defaults to the most recent)")

	return cmd
}
