package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newCleanupCommand() *cobra.Command {
	var (
		sessionID string
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Tear down the session's ephemeral test branch",
		Long: `Remove the CI branch registration, the remote test branch, and the local
test branch, in that order, checking out the target branch in between.
Each step is attempted even if an earlier one fails; the outcome of every
step is recorded on the session.

Declining the confirmation keeps the branch and marks the session done
without deleting anything.`,
		Example: `  # Clean up the latest session, asking for confirmation
  redeploy cleanup

  # Clean up a specific session without prompting
  redeploy cleanup --session 6f1c... --yes`,
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

			if !session.HasEphemeralBranch() {
				fmt.Println("Nothing to clean up: session has no test branch.")
				return nil
			}

			if err := app.coord.RequestCleanup(); err != nil {
				return err
			}

			del := yes
			if !yes {
				fmt.Fprintf(os.Stderr, "Delete test branch %q? [y/N]: ", session.WorkingBranch)
				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				answer := strings.ToLower(strings.TrimSpace(line))
				del = answer == "y" || answer == "yes"
			}

			app.logEvent(ctx, session.ID, "info", fmt.Sprintf("cleanup confirmed (delete=%t)", del))
			if err := app.coord.ConfirmCleanup(ctx, del); err != nil {
				return err
			}

			session = app.coord.Session()
			printCleanup(session.Cleanup)
			if app.coord.CanFinish() {
				fmt.Println("Deployment session complete.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (defaults to the most recent)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete the branch without prompting")

	return cmd
}
