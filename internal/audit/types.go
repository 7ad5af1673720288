// Package audit provides a structured event trail for message intake,
// command resolution, and command execution. Events are written
// asynchronously so the resolution path never waits on audit I/O.
package audit

import "time"

// EventType categorizes audit events.
type EventType string

const (
	// Message events
	EventMessageReceived EventType = "message.received"
	EventMessageSent     EventType = "message.sent"

	// Resolution events
	EventResolutionFinished EventType = "resolution.finished"

	// Command events
	EventCommandExecuted EventType = "command.executed"
	EventCommandFailed   EventType = "command.failed"
	EventCommandDenied   EventType = "command.denied"

	// Channel lifecycle events
	EventChannelStarted EventType = "channel.started"
	EventChannelStopped EventType = "channel.stopped"
	EventChannelError   EventType = "channel.error"

	// Gateway lifecycle events
	EventGatewayStartup  EventType = "gateway.startup"
	EventGatewayShutdown EventType = "gateway.shutdown"
)

// Level represents audit log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event represents a single audit log entry.
type Event struct {
	// ID is a unique identifier for this audit event.
	ID string `json:"id"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Level is the severity level.
	Level Level `json:"level"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// ResolutionID correlates events belonging to one message resolution.
	ResolutionID string `json:"resolution_id,omitempty"`

	// Channel identifies the messaging platform.
	Channel string `json:"channel,omitempty"`

	// ChatID identifies the conversation.
	ChatID string `json:"chat_id,omitempty"`

	// UserID identifies the sender.
	UserID string `json:"user_id,omitempty"`

	// Command is the resolved command name, when one was found.
	Command string `json:"command,omitempty"`

	// Alias is the name the sender actually used.
	Alias string `json:"alias,omitempty"`

	// Outcome is the terminal resolution state.
	Outcome string `json:"outcome,omitempty"`

	// Action describes what happened.
	Action string `json:"action"`

	// Details contains event-specific structured data.
	Details map[string]any `json:"details,omitempty"`

	// Duration is the time taken for timed operations.
	Duration time.Duration `json:"duration,omitempty"`

	// Error contains error information if applicable.
	Error string `json:"error,omitempty"`
}

// OutputFormat specifies the audit log output format.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// Config configures the audit logger.
type Config struct {
	// Enabled determines if audit logging is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Level is the minimum level to log.
	Level Level `json:"level" yaml:"level"`

	// Format specifies the output format.
	Format OutputFormat `json:"format" yaml:"format"`

	// Output specifies where to write logs.
	// Supported: "stdout", "stderr", "file:/path/to/file.log"
	Output string `json:"output" yaml:"output"`

	// IncludeMessageContent determines if message text is logged. When
	// false, only a content hash is recorded.
	IncludeMessageContent bool `json:"include_message_content" yaml:"include_message_content"`

	// MaxFieldSize limits the size of logged fields.
	MaxFieldSize int `json:"max_field_size" yaml:"max_field_size"`

	// EventTypes filters which event types to log (empty = all).
	EventTypes []EventType `json:"event_types" yaml:"event_types"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`

	// FlushInterval is how often to flush the buffer.
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// DefaultConfig returns a default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:               false,
		Level:                 LevelInfo,
		Format:                FormatJSON,
		Output:                "stdout",
		IncludeMessageContent: false,
		MaxFieldSize:          1024,
		BufferSize:            1000,
		FlushInterval:         5 * time.Second,
	}
}
