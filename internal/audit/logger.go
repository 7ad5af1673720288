package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/relay/pkg/models"
)

// Logger writes structured audit events. Writes go through a buffered
// channel and a background goroutine; when the buffer is full the caller
// writes directly rather than dropping the event.
type Logger struct {
	config     Config
	output     io.WriteCloser
	slogger    *slog.Logger
	buffer     chan *Event
	wg         sync.WaitGroup
	done       chan struct{}
	eventTypes map[EventType]bool
}

// NewLogger creates an audit logger. A disabled config yields a logger
// whose methods are all no-ops.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}

	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxFieldSize == 0 {
		config.MaxFieldSize = 1024
	}

	var output io.WriteCloser
	switch {
	case config.Output == "stdout" || config.Output == "":
		output = os.Stdout
	case config.Output == "stderr":
		output = os.Stderr
	case strings.HasPrefix(config.Output, "file:"):
		path := strings.TrimPrefix(config.Output, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		output = f
	default:
		return nil, fmt.Errorf("unsupported audit output: %s", config.Output)
	}

	eventTypes := make(map[EventType]bool)
	for _, et := range config.EventTypes {
		eventTypes[et] = true
	}

	l := &Logger{
		config:     config,
		output:     output,
		buffer:     make(chan *Event, config.BufferSize),
		done:       make(chan struct{}),
		eventTypes: eventTypes,
	}

	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: l.slogLevel()})
	default:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: l.slogLevel()})
	}
	l.slogger = slog.New(handler).With("component", "audit")

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// Close flushes remaining events and closes the logger.
func (l *Logger) Close() error {
	if !l.config.Enabled {
		return nil
	}

	close(l.done)
	l.wg.Wait()

	if l.output != os.Stdout && l.output != os.Stderr {
		return l.output.Close()
	}
	return nil
}

// Log writes an audit event.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if !l.config.Enabled {
		return
	}

	if len(l.eventTypes) > 0 && !l.eventTypes[event.Type] {
		return
	}
	if !l.shouldLog(event.Level) {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case l.buffer <- event:
	default:
		// Buffer full, write inline instead of dropping.
		l.writeEvent(event)
	}
}

// LogMessageReceived records an inbound message. Message text is hashed
// unless content logging is enabled.
func (l *Logger) LogMessageReceived(ctx context.Context, resolutionID string, msg *models.Message) {
	if msg == nil {
		return
	}
	details := map[string]any{}
	if l.config.IncludeMessageContent {
		content := msg.Content
		if len(content) > l.config.MaxFieldSize {
			content = content[:l.config.MaxFieldSize] + "...(truncated)"
		}
		details["content"] = content
	} else {
		details["content_hash"] = hashString(msg.Content)
	}

	l.Log(ctx, &Event{
		Type:         EventMessageReceived,
		Level:        LevelDebug,
		ResolutionID: resolutionID,
		Channel:      string(msg.Channel),
		ChatID:       msg.ChatID,
		UserID:       msg.SenderID,
		Action:       "message_received",
		Details:      details,
	})
}

// LogResolution records the terminal state of one resolution.
func (l *Logger) LogResolution(ctx context.Context, resolutionID, outcome, alias, command string, msg *models.Message, duration time.Duration) {
	event := &Event{
		Type:         EventResolutionFinished,
		Level:        LevelInfo,
		ResolutionID: resolutionID,
		Outcome:      outcome,
		Alias:        alias,
		Command:      command,
		Action:       "resolution_finished",
		Duration:     duration,
	}
	if msg != nil {
		event.Channel = string(msg.Channel)
		event.ChatID = msg.ChatID
		event.UserID = msg.SenderID
	}
	l.Log(ctx, event)
}

// LogCommandFailed records a command handler error.
func (l *Logger) LogCommandFailed(ctx context.Context, resolutionID, command, errMsg string) {
	l.Log(ctx, &Event{
		Type:         EventCommandFailed,
		Level:        LevelError,
		ResolutionID: resolutionID,
		Command:      command,
		Action:       "command_failed",
		Error:        errMsg,
	})
}

// LogChannelEvent records a channel adapter lifecycle event.
func (l *Logger) LogChannelEvent(ctx context.Context, eventType EventType, channel string, errMsg string) {
	level := LevelInfo
	if eventType == EventChannelError {
		level = LevelWarn
	}
	l.Log(ctx, &Event{
		Type:    eventType,
		Level:   level,
		Channel: channel,
		Action:  strings.ReplaceAll(string(eventType), ".", "_"),
		Error:   errMsg,
	})
}

// LogGateway records a gateway startup or shutdown event.
func (l *Logger) LogGateway(ctx context.Context, eventType EventType, details map[string]any) {
	l.Log(ctx, &Event{
		Type:    eventType,
		Level:   LevelInfo,
		Action:  strings.ReplaceAll(string(eventType), ".", "_"),
		Details: details,
	})
}

// writeLoop processes buffered events.
func (l *Logger) writeLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		case <-ticker.C:
			l.flushBuffer()
		case <-l.done:
			l.flushBuffer()
			return
		}
	}
}

// flushBuffer drains all buffered events.
func (l *Logger) flushBuffer() {
	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		default:
			return
		}
	}
}

// writeEvent writes a single event to the output.
func (l *Logger) writeEvent(event *Event) {
	attrs := []any{
		"audit_id", event.ID,
		"audit_type", event.Type,
		"action", event.Action,
		"timestamp", event.Timestamp.Format(time.RFC3339Nano),
	}

	if event.ResolutionID != "" {
		attrs = append(attrs, "resolution_id", event.ResolutionID)
	}
	if event.Channel != "" {
		attrs = append(attrs, "channel", event.Channel)
	}
	if event.ChatID != "" {
		attrs = append(attrs, "chat_id", event.ChatID)
	}
	if event.UserID != "" {
		attrs = append(attrs, "user_id", event.UserID)
	}
	if event.Command != "" {
		attrs = append(attrs, "command", event.Command)
	}
	if event.Alias != "" {
		attrs = append(attrs, "alias", event.Alias)
	}
	if event.Outcome != "" {
		attrs = append(attrs, "outcome", event.Outcome)
	}
	if event.Duration > 0 {
		attrs = append(attrs, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	for k, v := range event.Details {
		attrs = append(attrs, k, v)
	}

	switch event.Level {
	case LevelDebug:
		l.slogger.Debug("audit", attrs...)
	case LevelWarn:
		l.slogger.Warn("audit", attrs...)
	case LevelError:
		l.slogger.Error("audit", attrs...)
	default:
		l.slogger.Info("audit", attrs...)
	}
}

// shouldLog checks if an event at the given level should be logged.
func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	return levels[level] >= levels[l.config.Level]
}

// slogLevel converts audit level to slog level.
func (l *Logger) slogLevel() slog.Level {
	switch l.config.Level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// hashString creates a SHA256 hash of a string (first 16 hex chars).
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:16]
}
