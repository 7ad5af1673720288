// Package slack implements the channel adapter for Slack using Socket
// Mode, so no public HTTP endpoint is needed.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/haasonsaas/relay/internal/channels"
	"github.com/haasonsaas/relay/pkg/models"
)

// apiClient is the slice of slack.Client the adapter uses; tests
// substitute a fake.
type apiClient interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Config holds configuration for the Slack adapter.
type Config struct {
	// BotToken is the xoxb- token for API calls (required).
	BotToken string

	// AppToken is the xapp- token for Socket Mode (required).
	AppToken string

	// RateLimit is the API rate in messages per second. Slack recommends
	// roughly one message per second per channel.
	RateLimit float64

	// RateBurst is the burst capacity for rate limiting.
	RateBurst int

	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return channels.ErrConfig("slack: bot_token is required", nil)
	}
	if c.AppToken == "" {
		return channels.ErrConfig("slack: app_token is required", nil)
	}
	if c.RateLimit == 0 {
		c.RateLimit = 1
	}
	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter implements channels.Adapter for Slack.
type Adapter struct {
	config      Config
	api         apiClient
	events      chan socketmode.Event
	ack         func(req socketmode.Request)
	runSocket   func(ctx context.Context) error
	messages    chan *models.Message
	rateLimiter *channels.RateLimiter
	logger      *slog.Logger

	mu        sync.RWMutex
	status    channels.Status
	botUserID string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewAdapter creates a Slack adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		config:      config,
		messages:    make(chan *models.Message, 100),
		rateLimiter: channels.NewRateLimiter(config.RateLimit, config.RateBurst),
		logger:      config.Logger.With("adapter", "slack"),
	}, nil
}

// Start authenticates, opens the Socket Mode connection, and begins
// delivering inbound messages.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status.Connected {
		return channels.ErrInternal("adapter already started", nil)
	}

	if a.api == nil {
		client := slack.New(a.config.BotToken, slack.OptionAppLevelToken(a.config.AppToken))
		socketClient := socketmode.New(client)
		a.api = client
		a.events = socketClient.Events
		a.ack = func(req socketmode.Request) { socketClient.Ack(req) }
		a.runSocket = socketClient.RunContext
	}

	authResp, err := a.api.AuthTestContext(ctx)
	if err != nil {
		return channels.ErrAuthentication("failed to authenticate with Slack", err)
	}
	a.botUserID = authResp.UserID

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.status = channels.Status{Connected: true, LastPing: time.Now().Unix()}

	a.wg.Add(1)
	go a.handleEvents(ctx)

	if a.runSocket != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.runSocket(ctx); err != nil && ctx.Err() == nil {
				a.mu.Lock()
				a.status.Connected = false
				a.status.Error = err.Error()
				a.mu.Unlock()
				a.logger.Error("socket mode terminated", "error", err)
			}
		}()
	}

	a.logger.Info("slack adapter started", "bot_user_id", authResp.UserID)
	return nil
}

// Stop cancels the Socket Mode connection and closes the inbound
// message channel.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	connected := a.status.Connected
	a.mu.Unlock()

	if !connected {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return channels.ErrTimeout("stop timeout", ctx.Err())
	}

	a.mu.Lock()
	a.status.Connected = false
	close(a.messages)
	a.mu.Unlock()

	a.logger.Info("slack adapter stopped")
	return nil
}

// Send delivers a reply to the channel named by msg.ChatID.
func (a *Adapter) Send(ctx context.Context, msg *models.Message) error {
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return channels.ErrTimeout("rate limit wait cancelled", err)
	}

	a.mu.RLock()
	api := a.api
	a.mu.RUnlock()
	if api == nil {
		return channels.ErrUnavailable("adapter not started", nil)
	}
	if msg.ChatID == "" {
		return channels.ErrInvalidInput("message has no chat id", nil)
	}

	if _, _, err := api.PostMessageContext(ctx, msg.ChatID, slack.MsgOptionText(msg.Content, false)); err != nil {
		a.logger.Error("failed to send message", "chat_id", msg.ChatID, "error", err)
		return channels.ErrInternal("failed to send message", err)
	}
	return nil
}

// Messages returns the channel of inbound messages.
func (a *Adapter) Messages() <-chan *models.Message {
	return a.messages
}

// Type returns the channel type.
func (a *Adapter) Type() models.ChannelType {
	return models.ChannelSlack
}

// Status returns the current connection status.
func (a *Adapter) Status() channels.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// HealthCheck reports whether the Socket Mode connection is up.
func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()

	a.mu.RLock()
	connected := a.status.Connected
	a.mu.RUnlock()

	health := channels.HealthStatus{
		Healthy:   connected,
		Latency:   time.Since(start),
		LastCheck: start,
	}
	if connected {
		health.Message = "healthy"
	} else {
		health.Message = "adapter not connected"
	}
	return health
}

// handleEvents processes Socket Mode events until the context is done.
func (a *Adapter) handleEvents(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-a.events:
			if !ok {
				return
			}

			a.mu.Lock()
			a.status.LastPing = time.Now().Unix()
			a.mu.Unlock()

			switch event.Type {
			case socketmode.EventTypeConnectionError:
				a.logger.Warn("socket mode connection error", "data", event.Data)
			case socketmode.EventTypeEventsAPI:
				a.handleEventsAPI(ctx, event)
			case socketmode.EventTypeSlashCommand, socketmode.EventTypeInteractive:
				if event.Request != nil && a.ack != nil {
					a.ack(*event.Request)
				}
			}
		}
	}
}

// handleEventsAPI processes Events API callbacks.
func (a *Adapter) handleEventsAPI(ctx context.Context, event socketmode.Event) {
	eventsAPIEvent, ok := event.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	if event.Request != nil && a.ack != nil {
		a.ack(*event.Request)
	}

	if eventsAPIEvent.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		a.deliver(ctx, &slackevents.MessageEvent{
			Type:            "message",
			User:            ev.User,
			Text:            ev.Text,
			Channel:         ev.Channel,
			TimeStamp:       ev.TimeStamp,
			ThreadTimeStamp: ev.ThreadTimeStamp,
		})
	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.SubType != "" {
			return
		}
		a.deliver(ctx, ev)
	}
}

// deliver converts a message event and hands it to the gateway.
func (a *Adapter) deliver(ctx context.Context, event *slackevents.MessageEvent) {
	msg := a.convertMessage(event)

	select {
	case a.messages <- msg:
	case <-ctx.Done():
	default:
		a.logger.Warn("messages channel full, dropping message", "chat_id", event.Channel)
	}
}

// convertMessage converts a Slack message event to the unified format.
// Bot mentions are stripped so "@bot !ping" resolves like "!ping".
func (a *Adapter) convertMessage(event *slackevents.MessageEvent) *models.Message {
	createdAt := time.Now()
	if ts, err := parseSlackTimestamp(event.TimeStamp); err == nil {
		createdAt = ts
	}

	return &models.Message{
		ID:        fmt.Sprintf("%s:%s", event.Channel, event.TimeStamp),
		Channel:   models.ChannelSlack,
		ChannelID: event.TimeStamp,
		ChatID:    event.Channel,
		SenderID:  event.User,
		Direction: models.DirectionInbound,
		Content:   stripMentions(event.Text),
		IsDirect:  strings.HasPrefix(event.Channel, "D"),
		CreatedAt: createdAt,
	}
}

// stripMentions removes <@USERID> mentions from message text.
func stripMentions(text string) string {
	for {
		start := strings.Index(text, "<@")
		if start == -1 {
			break
		}
		end := strings.Index(text[start:], ">")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}
	return strings.TrimSpace(text)
}

// parseSlackTimestamp converts a Slack "1234567890.123456" timestamp.
func parseSlackTimestamp(ts string) (time.Time, error) {
	var sec, usec int64
	if _, err := fmt.Sscanf(ts, "%d.%d", &sec, &usec); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return time.Unix(sec, usec*1000), nil
}
