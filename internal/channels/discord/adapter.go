// Package discord implements the channel adapter for Discord using the
// discordgo gateway client.
package discord

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/relay/internal/channels"
	"github.com/haasonsaas/relay/pkg/models"
)

// session is the slice of discordgo.Session the adapter uses; tests
// substitute a fake.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// Config holds configuration for the Discord adapter.
type Config struct {
	// Token is the bot token from the Discord Developer Portal (required).
	Token string

	// RateLimit is the general API rate in operations per second.
	RateLimit float64

	// RateBurst is the burst capacity for rate limiting.
	RateBurst int

	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return channels.ErrConfig("discord: token is required", nil)
	}
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
	if c.RateBurst == 0 {
		c.RateBurst = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter implements channels.Adapter for Discord.
type Adapter struct {
	config      Config
	session     session
	status      channels.Status
	messages    chan *models.Message
	rateLimiter *channels.RateLimiter
	logger      *slog.Logger

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAdapter creates a Discord adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		config:      config,
		messages:    make(chan *models.Message, 100),
		rateLimiter: channels.NewRateLimiter(config.RateLimit, config.RateBurst),
		logger:      config.Logger.With("adapter", "discord"),
	}, nil
}

// Start opens the Discord gateway connection and begins delivering
// inbound messages.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status.Connected {
		return channels.ErrInternal("adapter already started", nil)
	}

	if a.session == nil {
		dg, err := discordgo.New("Bot " + a.config.Token)
		if err != nil {
			return channels.ErrAuthentication("failed to create Discord session", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
		a.session = dg
	}

	a.session.AddHandler(a.handleMessageCreate)

	if err := a.session.Open(); err != nil {
		return channels.ErrConnection("failed to connect to Discord", err)
	}

	a.ctx, a.cancel = context.WithCancel(ctx)
	a.status = channels.Status{Connected: true, LastPing: time.Now().Unix()}
	a.logger.Info("discord adapter started")
	return nil
}

// Stop closes the gateway connection and the inbound message channel.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.status.Connected {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}
	if err := a.session.Close(); err != nil {
		a.status.Error = err.Error()
		return channels.ErrConnection("failed to close Discord session", err)
	}

	a.status.Connected = false
	close(a.messages)
	a.logger.Info("discord adapter stopped")
	return nil
}

// Send delivers a reply to the conversation named by msg.ChatID.
func (a *Adapter) Send(ctx context.Context, msg *models.Message) error {
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return channels.ErrTimeout("rate limit wait cancelled", err)
	}

	a.mu.RLock()
	connected := a.status.Connected
	a.mu.RUnlock()
	if !connected {
		return channels.ErrUnavailable("adapter not connected", nil)
	}
	if msg.ChatID == "" {
		return channels.ErrInvalidInput("message has no chat id", nil)
	}

	if _, err := a.session.ChannelMessageSend(msg.ChatID, msg.Content); err != nil {
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
	return models.ChannelDiscord
}

// Status returns the current connection status.
func (a *Adapter) Status() channels.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// HealthCheck reports whether the gateway connection is up.
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

func (a *Adapter) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	msg := &models.Message{
		ID:         m.ID,
		Channel:    models.ChannelDiscord,
		ChannelID:  m.ID,
		ChatID:     m.ChannelID,
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
		Direction:  models.DirectionInbound,
		Content:    m.Content,
		IsDirect:   m.GuildID == "",
		CreatedAt:  time.Now(),
	}

	select {
	case a.messages <- msg:
	case <-a.ctx.Done():
	default:
		a.logger.Warn("messages channel full, dropping message", "chat_id", m.ChannelID)
	}
}
