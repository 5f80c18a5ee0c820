package stores

import (
	"context"
	"time"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

// EventLevel represents the severity level of a session event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// SessionSummary is the listing view of a persisted session. The full
// serialized state lives in the snapshot column and is only materialized by
// GetSession.
type SessionSummary struct {
	ID           string          `json:"id"`
	TargetBranch string          `json:"target_branch"`
	Scenario     deploy.Scenario `json:"scenario"`
	Phase        deploy.Phase    `json:"phase"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Event represents an append-only session log event
type Event struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"session_id"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Session operations
	SaveSession(ctx context.Context, session *deploy.DeploymentSession) error
	GetSession(ctx context.Context, id string) (*deploy.DeploymentSession, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, sessionID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
