package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

// printSession renders a session to stdout, honoring the global --json flag.
func printSession(s deploy.DeploymentSession) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
		return
	}

	fmt.Printf("Session:  %s\n", s.ID)
	fmt.Printf("Phase:    %s\n", s.Phase)
	if s.Scenario != deploy.ScenarioUnset {
		fmt.Printf("Scenario: %s\n", s.Scenario)
	}
	fmt.Printf("Target:   %s\n", s.TargetBranch)
	if s.HasEphemeralBranch() {
		fmt.Printf("Working:  %s\n", s.WorkingBranch)
	}
	if s.Publish.State != deploy.PublishUnset {
		fmt.Printf("Publish:  %s", s.Publish.State)
		if s.Publish.CommitID != "" {
			fmt.Printf(" (%s)", shortCommit(s.Publish.CommitID))
		}
		fmt.Println()
	}
	if s.NoDeploymentChanges {
		fmt.Println("No deployment changes were pending.")
	}
	printJob("Job", s.TrackedSnapshot, s.LastTerminalJob)
	if s.Choice != deploy.ChoiceUnset {
		fmt.Printf("Post-verification: %s\n", s.Choice)
	}
	if s.MergePublish.State != deploy.PublishUnset {
		fmt.Printf("Merge publish: %s\n", s.MergePublish.State)
	}
	printJob("Merge job", s.MergeSnapshot, s.MergeLastTermin)
	if s.LastFailure != nil {
		fmt.Printf("Last failure: [%s] %s\n", s.LastFailure.Kind, s.LastFailure.Message)
	}
}

func printJob(label string, snap, lastTerminal *deploy.JobSnapshot) {
	if snap == nil {
		snap = lastTerminal
	}
	if snap == nil {
		return
	}
	fmt.Printf("%s: %s %s", label, snap.JobID, snap.Status)
	if snap.CommitID != "" {
		fmt.Printf(" commit=%s", shortCommit(snap.CommitID))
	}
	fmt.Println()
}

// printCleanup renders the cleanup trail.
func printCleanup(c deploy.CleanupState) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(c)
		return
	}

	fmt.Printf("Cleanup: %s\n", c.Status)
	for _, step := range c.Steps {
		fmt.Printf("  %-16s %s", step.Name, step.Status)
		if step.Error != "" {
			fmt.Printf("  %s", step.Error)
		}
		fmt.Println()
	}
	if c.Reason != "" {
		fmt.Printf("Reason: %s\n", c.Reason)
	}
}

func shortCommit(commit string) string {
	if len(commit) > 10 {
		return commit[:10]
	}
	return commit
}
