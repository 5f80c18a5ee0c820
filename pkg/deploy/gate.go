package deploy

// SessionCanFinish is the completion gate: a pure function over the session
// deciding whether the operator-facing finish action is enabled.
//
// Direct scenario: finishable once the publish is not in flight (published
// or failed) and the tracked job, if any, is terminal or absent. Discovery
// and poll failures are advisory and never block.
//
// Test-branch scenario: finishable only once the test-phase job is terminal
// and a post-verification choice has been made and, when merge-to-target was
// chosen, the merge phase is no longer mid-flight (its job is terminal, or
// the merge reported no changes, or it failed). A publish that found no
// deployment changes finishes immediately: there is nothing to verify or
// merge. A published session whose job was never discovered is likewise
// finishable; discovery timeouts are advisory in both scenarios.
func SessionCanFinish(s *DeploymentSession) bool {
	switch s.Phase {
	case PhasePublishing, PhaseNoChangesCheck, PhasePolling,
		PhaseMergePublishing, PhaseMergePolling, PhaseCleanupInProgress:
		return false
	}

	switch s.Scenario {
	case ScenarioDirect:
		if !s.Publish.Resolved() {
			return false
		}
		if s.TrackedJob != nil {
			if s.TrackedSnapshot == nil || !s.TrackedSnapshot.Status.IsTerminal() {
				return false
			}
		}
		return true

	case ScenarioTestBranch:
		if s.NoDeploymentChanges && s.Publish.State == PublishPublished {
			return true
		}
		test := s.TrackedSnapshot
		if test == nil {
			// A retry in flight clears the tracked slot but keeps
			// the last terminal job for display.
			test = s.LastTerminalJob
		}
		if test == nil {
			// Discovery never attached a job. Advisory: a published
			// session is not held hostage to a job that never
			// appeared.
			return s.TrackedJob == nil &&
				s.Publish.State == PublishPublished &&
				s.LastFailure != nil &&
				s.LastFailure.Kind == KindDiscoveryTimeout
		}
		if !test.Status.IsTerminal() {
			return false
		}
		switch s.Choice {
		case ChoiceManualMerge:
			return true
		case ChoiceMergeToTarget:
			switch s.MergePublish.State {
			case PublishFailed:
				return true
			case PublishPublished:
				if !s.MergePublish.Changed {
					return true
				}
				if s.MergeJob == nil {
					// Discovery never found the merge job;
					// advisory.
					return true
				}
				return s.MergeSnapshot != nil && s.MergeSnapshot.Status.IsTerminal()
			}
			return false
		}
		return false
	}

	return false
}
