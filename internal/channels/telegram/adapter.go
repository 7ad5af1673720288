// Package telegram implements the channel adapter for Telegram using
// the go-telegram bot client in long polling mode.
package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/haasonsaas/relay/internal/channels"
	"github.com/haasonsaas/relay/pkg/models"
)

// botClient is the slice of bot.Bot the adapter uses; tests substitute
// a fake.
type botClient interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// Config holds configuration for the Telegram adapter.
type Config struct {
	// Token is the bot token from @BotFather (required).
	Token string

	// RateLimit is the API rate in messages per second. Telegram allows
	// roughly 30 per second bot-wide.
	RateLimit float64

	// RateBurst is the burst capacity for rate limiting.
	RateBurst int

	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return channels.ErrConfig("telegram: token is required", nil)
	}
	if c.RateLimit == 0 {
		c.RateLimit = 30
	}
	if c.RateBurst == 0 {
		c.RateBurst = 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter implements channels.Adapter for Telegram.
type Adapter struct {
	config      Config
	client      botClient
	messages    chan *models.Message
	rateLimiter *channels.RateLimiter
	logger      *slog.Logger

	mu     sync.RWMutex
	status channels.Status
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter creates a Telegram adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		config:      config,
		messages:    make(chan *models.Message, 100),
		rateLimiter: channels.NewRateLimiter(config.RateLimit, config.RateBurst),
		logger:      config.Logger.With("adapter", "telegram"),
	}, nil
}

// Start connects the bot and begins long polling for updates.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status.Connected {
		return channels.ErrInternal("adapter already started", nil)
	}

	if a.client == nil {
		b, err := bot.New(a.config.Token, bot.WithDefaultHandler(a.handleUpdate))
		if err != nil {
			return channels.ErrAuthentication("failed to create bot", err)
		}
		a.client = b
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.status = channels.Status{Connected: true, LastPing: time.Now().Unix()}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.messages)

		// Blocks until the context is cancelled.
		a.client.Start(ctx)

		a.mu.Lock()
		a.status.Connected = false
		a.mu.Unlock()
	}()

	a.logger.Info("telegram adapter started")
	return nil
}

// Stop cancels long polling and waits for the update loop to finish.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

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
		a.logger.Info("telegram adapter stopped")
		return nil
	case <-ctx.Done():
		return channels.ErrTimeout("stop timeout", ctx.Err())
	}
}

// Send delivers a reply to the chat named by msg.ChatID.
func (a *Adapter) Send(ctx context.Context, msg *models.Message) error {
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return channels.ErrTimeout("rate limit wait cancelled", err)
	}

	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()
	if client == nil {
		return channels.ErrUnavailable("adapter not started", nil)
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return channels.ErrInvalidInput("message has no numeric chat id", err)
	}

	if _, err := client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   msg.Content,
	}); err != nil {
		a.logger.Error("failed to send message", "chat_id", chatID, "error", err)
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
	return models.ChannelTelegram
}

// Status returns the current connection status.
func (a *Adapter) Status() channels.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// HealthCheck reports whether the update loop is running.
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

func (a *Adapter) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if update.Message.From.IsBot {
		return
	}

	m := update.Message
	msg := &models.Message{
		ID:         strconv.Itoa(m.ID),
		Channel:    models.ChannelTelegram,
		ChannelID:  strconv.Itoa(m.ID),
		ChatID:     strconv.FormatInt(m.Chat.ID, 10),
		SenderID:   strconv.FormatInt(m.From.ID, 10),
		SenderName: m.From.Username,
		Direction:  models.DirectionInbound,
		Content:    m.Text,
		IsDirect:   m.Chat.Type == "private",
		CreatedAt:  time.Now(),
	}

	select {
	case a.messages <- msg:
	case <-ctx.Done():
	default:
		a.logger.Warn("messages channel full, dropping message", "chat_id", m.Chat.ID)
	}
}
