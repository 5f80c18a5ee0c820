package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redeployhq/redeploy/pkg/config"
	"github.com/redeployhq/redeploy/pkg/credentials"
	"github.com/redeployhq/redeploy/pkg/deploy"
	"github.com/redeployhq/redeploy/pkg/gitrepo"
	"github.com/redeployhq/redeploy/pkg/pipeline"
	"github.com/redeployhq/redeploy/pkg/stores"
	"github.com/redeployhq/redeploy/pkg/telemetry"
)

// app bundles the wired collaborators every subcommand needs.
type app struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *stores.SQLiteStore
	coord *deploy.Coordinator
}

// newApp loads configuration and wires the store, adapters, telemetry, and
// the coordinator. The coordinator persists every session mutation back to
// the store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := newTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	log := tel.Logger.Zerolog()

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	// Adapter calls are wrapped with spans, latency observations, and error
	// counters under the "git" and "pipeline" labels.
	publisher := telemetry.NewInstrumentedPublisher(
		gitrepo.New(cfg.Repo.Path, log, gitrepo.WithRemote(cfg.Repo.Remote)), tel)
	directory := telemetry.NewInstrumentedDirectory(
		pipeline.NewClient(cfg.Pipeline.BaseURL, cfg.Pipeline.AppID, cfg.Pipeline.Token, log), tel)
	credSource := credentials.NewSource(
		cfg.Repo.CredentialService,
		&credentials.TerminalPrompter{In: os.Stdin, Out: os.Stderr},
		log,
	)

	coord := deploy.NewCoordinator(deploy.Deps{
		Publisher:   publisher,
		Directory:   directory,
		Credentials: credSource,
		Recorder:    tel.Metrics,
		OnChange: func(s deploy.DeploymentSession) {
			// Persistence runs on the mutation path; a short deadline keeps a
			// wedged database from stalling orchestration.
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.SaveSession(saveCtx, &s); err != nil {
				log.Warn().Err(err).Str("session_id", s.ID).Msg("failed to persist session")
			}
		},
		Logger: log,
	}, deploy.Config{
		TargetBranch:  cfg.Repo.TargetBranch,
		Identity:      cfg.Deploy.Identity,
		CommitMessage: cfg.Deploy.CommitMessage,
		PollInterval:  cfg.Deploy.PollInterval,
		Discovery: deploy.DiscoveryConfig{
			Attempts:  cfg.Deploy.DiscoveryAttempts,
			BaseDelay: cfg.Deploy.DiscoveryBaseDelay,
		},
	})

	if cfg.Telemetry.MetricsEnabled {
		if err := tel.StartMetricsServer(); err != nil {
			log.Warn().Err(err).Msg("failed to start metrics server")
		}
	}

	return &app{
		cfg:   cfg,
		tel:   tel,
		store: store,
		coord: coord,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		a.tel.Logger.WithError(err).Warn("failed to close store")
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.tel.Logger.WithError(err).Warn("failed to shut down telemetry")
	}
}

// newTelemetry maps the file configuration and global flags onto a telemetry
// configuration.
func newTelemetry(cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := telemetry.DefaultConfig()
	telCfg.Logging.Level = cfg.Telemetry.LogLevel
	telCfg.Logging.Format = cfg.Telemetry.LogFormat
	telCfg.Metrics.Enabled = cfg.Telemetry.MetricsEnabled
	telCfg.Metrics.ListenAddress = cfg.Telemetry.MetricsListen
	telCfg.Tracing.Enabled = cfg.Telemetry.TracingEnabled
	telCfg.Tracing.Exporter = cfg.Telemetry.TracingExporter
	telCfg.Tracing.Endpoint = cfg.Telemetry.TracingEndpoint

	if verbose {
		telCfg.Logging.Level = "debug"
	}
	if jsonOutput {
		telCfg.Logging.Format = "json"
	}

	return telemetry.NewTelemetry(telCfg)
}

// restoreSession loads a persisted session and hands it to the coordinator,
// resuming polling for any in-flight jobs. An empty id restores the most
// recently updated session.
func (a *app) restoreSession(ctx context.Context, id string) (deploy.DeploymentSession, error) {
	if id == "" {
		summaries, err := a.store.ListSessions(ctx, 1, 0)
		if err != nil {
			return deploy.DeploymentSession{}, err
		}
		if len(summaries) == 0 {
			return deploy.DeploymentSession{}, fmt.Errorf("no persisted sessions")
		}
		id = summaries[0].ID
	}

	session, err := a.store.GetSession(ctx, id)
	if err != nil {
		return deploy.DeploymentSession{}, err
	}
	if err := a.coord.Restore(ctx, *session); err != nil {
		return deploy.DeploymentSession{}, err
	}
	return a.coord.Session(), nil
}

// waitForSettled blocks until no slot is mid-flight: publish resolved, no
// active polling, no cleanup in progress. Returns the settled session.
func (a *app) waitForSettled(ctx context.Context) (deploy.DeploymentSession, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		s := a.coord.Session()
		if sessionSettled(s) {
			return s, nil
		}

		select {
		case <-ctx.Done():
			return a.coord.Session(), ctx.Err()
		case <-ticker.C:
		}
	}
}

func sessionSettled(s deploy.DeploymentSession) bool {
	switch s.Phase {
	case deploy.PhasePublishing, deploy.PhaseNoChangesCheck, deploy.PhasePolling,
		deploy.PhaseMergePublishing, deploy.PhaseMergePolling,
		deploy.PhaseCleanupInProgress:
		return false
	}
	// awaiting-job is settled: discovery runs synchronously inside the push
	// and retry actions, so nothing advances the phase in the background.
	return true
}

// applyConfigUpdate applies the reloadable subset of a changed configuration
// to a running command. Only the log level takes effect live; everything else
// is read once at startup.
func (a *app) applyConfigUpdate(cfg *config.Config) error {
	if cfg.Telemetry.LogLevel != a.cfg.Telemetry.LogLevel {
		telemetry.SetGlobalLevel(cfg.Telemetry.LogLevel)
		a.tel.Logger.Infof("log level changed to %s", cfg.Telemetry.LogLevel)
		a.cfg.Telemetry.LogLevel = cfg.Telemetry.LogLevel
	}
	return nil
}

// logEvent appends an informational event to the session log. Failures are
// logged and ignored; the event log is advisory.
func (a *app) logEvent(ctx context.Context, sessionID, level, message string) {
	event := &stores.Event{
		SessionID: sessionID,
		Level:     stores.EventLevel(level),
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := a.store.AppendEvent(ctx, event); err != nil {
		a.tel.Logger.WithError(err).Warn("failed to append session event")
	}
}
