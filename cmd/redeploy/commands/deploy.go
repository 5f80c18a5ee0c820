package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redeployhq/redeploy/pkg/config"
	"github.com/redeployhq/redeploy/pkg/deploy"
)

func newDeployCommand() *cobra.Command {
	var (
		scenario     string
		post         string
		cleanupAfter bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Publish changes and track the resulting CI job",
		Long: `Publish pending working-tree changes and track the CI job the push
triggers to a terminal state.

This command:
  - Commits and pushes pending changes (to the target branch, or to a
    fresh ephemeral test branch with --scenario test-branch)
  - Discovers the CI job matching the pushed commit
  - Polls the job every 10 seconds until it succeeds, fails, or is cancelled
  - For test-branch deployments, optionally merges the verified changes
    back into the target branch (--post merge) and tracks that job too`,
		Example: `  # Deploy directly to the target branch
  redeploy deploy

  # Verify on an ephemeral test branch first, then merge back
  redeploy deploy --scenario test-branch --post merge --cleanup

  # Verify on a test branch, leave the merge for later
  redeploy deploy --scenario test-branch --post manual`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			// A deploy can poll for a long time; pick up config edits
			// made while it runs.
			watcher := config.NewWatcher(app.tel.Logger.Zerolog())
			if err := watcher.Watch(ctx, configPath, app.applyConfigUpdate); err != nil {
				app.tel.Logger.WithError(err).Warn("config watcher disabled")
			} else {
				defer watcher.Close()
			}

			sc := deploy.Scenario(scenario)
			if err := sc.Validate(); err != nil {
				return err
			}
			if err := app.coord.SelectScenario(sc); err != nil {
				return err
			}

			session := app.coord.Session()
			app.logEvent(ctx, session.ID, "info", fmt.Sprintf("deploy started on %s", session.TargetBranch))

			if err := app.coord.Push(ctx); err != nil {
				app.logEvent(ctx, session.ID, "error", "publish failed: "+err.Error())
				return err
			}

			session, err = app.waitForSettled(ctx)
			if err != nil {
				return err
			}
			printSession(session)

			if session.Scenario == deploy.ScenarioTestBranch && session.Phase == deploy.PhaseAwaitingChoice {
				switch post {
				case "merge":
					if err := app.coord.ChoosePostVerification(ctx, deploy.ChoiceMergeToTarget); err != nil {
						return err
					}
					session, err = app.waitForSettled(ctx)
					if err != nil {
						return err
					}
					printSession(session)
				case "manual":
					if err := app.coord.ChoosePostVerification(ctx, deploy.ChoiceManualMerge); err != nil {
						return err
					}
					session = app.coord.Session()
				default:
					fmt.Printf("Verification finished. Re-run with --post merge or --post manual, or use 'redeploy cleanup'.\n")
				}
			}

			if cleanupAfter && session.HasEphemeralBranch() {
				if err := app.coord.RequestCleanup(); err != nil {
					fmt.Printf("Cleanup not possible yet: %v\n", err)
				} else if err := app.coord.ConfirmCleanup(ctx, true); err != nil {
					printCleanup(app.coord.Session().Cleanup)
					return err
				} else {
					printCleanup(app.coord.Session().Cleanup)
				}
			}

			if app.coord.CanFinish() {
				app.logEvent(ctx, session.ID, "info", "session complete")
				fmt.Println("Deployment session complete.")
			} else {
				fmt.Println("Deployment session has unfinished work; see 'redeploy status'.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scenario, "scenario", "s", "direct", "deployment scenario (direct, test-branch)")
	cmd.Flags().StringVar(&post, "post", "", "post-verification action for test-branch deployments (merge, manual)")
	cmd.Flags().BoolVar(&cleanupAfter, "cleanup", false, "tear down the ephemeral test branch after completion")

	return cmd
}
