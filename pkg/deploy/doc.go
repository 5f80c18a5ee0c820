// Package deploy implements the deployment orchestration core: a state
// machine that publishes pending repository changes to a remote branch,
// discovers the resulting build job in the CI control plane, polls it to a
// terminal state, and optionally drives a test-branch workflow (verify on an
// ephemeral branch, merge back into the target branch, tear the branch down).
//
// The package is a pure orchestration layer. It talks to the outside world
// through two adapter contracts: Publisher (version control: commit, push,
// branch CRUD, merge) and JobDirectory (CI control plane: list, get, start
// jobs and register branches). Concrete adapters live in pkg/gitrepo and
// pkg/pipeline.
//
// The Coordinator owns a DeploymentSession and is the only component that
// mutates it. All phase transitions go through Coordinator methods, which
// reject events that are not legal in the current phase. CanFinish reports
// whether the session has reached a state the operator may finish from; it is
// a pure function of the session value.
package deploy
