// Package bus carries pipeline events from the dispatcher to its
// observers. The history store and the metrics collector subscribe;
// the pipeline publishes and never waits on a subscriber.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a stage outcome in the command pipeline.
type EventType string

const (
	// Intake
	EventCommandReceived   EventType = "command_received"
	EventCommandTranslated EventType = "command_translated"

	// Safety
	EventTierAssigned        EventType = "tier_assigned"
	EventCommandBlocked      EventType = "command_blocked"
	EventValidationRequested EventType = "validation_requested"
	EventValidationVerdict   EventType = "validation_verdict"

	// Execution
	EventCommandExecuted EventType = "command_executed"
	EventCommandFailed   EventType = "command_failed"

	// Administration
	EventTablesReloaded EventType = "tables_reloaded"
)

// Event is one pipeline observation. Only the fields relevant to the
// event type are set.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// Request tracking
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Command context
	Command  string `json:"command,omitempty"`
	Verb     string `json:"verb,omitempty"`
	Tier     string `json:"tier,omitempty"`
	Platform string `json:"platform,omitempty"`

	// Translation context
	Confidence float64 `json:"confidence,omitempty"`
	Suggestion string  `json:"suggestion,omitempty"`

	// Validation context
	Verdict string `json:"verdict,omitempty"`

	// Execution outcome
	ExitCode   int   `json:"exit_code,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Free-form context (block reason, verdict rationale, reload counts)
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewEvent creates an event with a fresh ID and the current timestamp.
func NewEvent(eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}
