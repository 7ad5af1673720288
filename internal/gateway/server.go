// Package gateway wires the channel adapters to the command resolution
// pipeline: inbound messages fan in from every adapter, run through the
// pipeline, and replies go back out on the adapter they arrived on.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/relay/internal/audit"
	"github.com/haasonsaas/relay/internal/channels"
	"github.com/haasonsaas/relay/internal/channels/discord"
	"github.com/haasonsaas/relay/internal/channels/slack"
	"github.com/haasonsaas/relay/internal/channels/telegram"
	"github.com/haasonsaas/relay/internal/cmdctx"
	"github.com/haasonsaas/relay/internal/commands"
	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/internal/convert"
	"github.com/haasonsaas/relay/internal/history"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/params"
	"github.com/haasonsaas/relay/internal/pattern"
	"github.com/haasonsaas/relay/internal/pipeline"
	"github.com/haasonsaas/relay/internal/workers"
	"github.com/haasonsaas/relay/pkg/models"
)

// Server is the relay gateway. It owns the adapter registry, the command
// registry, and the resolution pipeline, and implements the pipeline's
// Responder so results route back to the originating conversation.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	channels *channels.Registry
	registry *commands.Registry
	pipeline *pipeline.Pipeline
	metrics  *observability.Metrics
	audit    *audit.Logger
	history  history.Store
	workers  *workers.Pool
	converts *convert.Registry

	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	wg             sync.WaitGroup
}

// NewServer builds a fully wired gateway from configuration. Declared
// commands are compiled at construction, so a bad usage string fails here
// rather than on the first message. Pass prometheus.DefaultRegisterer as
// reg in production; tests use a fresh registry.
func NewServer(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := observability.NewMetrics(reg)
	cache := pattern.NewCache(metrics.PatternCacheLookup)
	converts := convert.NewRegistry(logger)
	registry := commands.NewRegistry(cache, logger)

	var store history.Store
	var err error
	switch cfg.History.Backend {
	case "sqlite":
		store, err = history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
	default:
		store = history.NewMemoryStore()
	}

	if err := commands.RegisterBuiltins(registry, store); err != nil {
		return nil, fmt.Errorf("register builtin commands: %w", err)
	}
	for _, cc := range cfg.Commands {
		cmd, err := buildCommand(cc)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(cmd); err != nil {
			return nil, fmt.Errorf("register command %q: %w", cc.Name, err)
		}
	}

	auditLogger, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("create audit logger: %w", err)
	}

	var tracer *observability.Tracer
	tracerShutdown := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		tracer, tracerShutdown, err = observability.NewTracer(observability.TraceConfig{
			ServiceName:    "relay",
			Endpoint:       cfg.Tracing.Endpoint,
			SamplingRate:   cfg.Tracing.SampleRate,
			EnableInsecure: cfg.Tracing.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("create tracer: %w", err)
		}
	}

	s := &Server{
		config:         cfg,
		logger:         logger.With("component", "gateway"),
		channels:       channels.NewRegistry(),
		registry:       registry,
		metrics:        metrics,
		audit:          auditLogger,
		history:        store,
		workers:        workers.NewPool(cfg.Workers.PoolSize, cfg.Workers.QueueDepth, logger),
		converts:       converts,
		tracerShutdown: tracerShutdown,
	}
	s.pipeline = pipeline.New(pipeline.Config{
		Prefix:    cfg.Gateway.Prefix,
		Registry:  registry,
		Parser:    params.NewTypedParser(cache, converts, logger),
		Responder: s,
		Workers:   s.workers,
		Logger:    logger,
		Metrics:   metrics,
		Tracer:    tracer,
	})

	if err := s.registerAdapters(); err != nil {
		return nil, err
	}
	return s, nil
}

// Channels exposes the adapter registry so callers can add adapters the
// configuration does not know about (the CLI adapter, test fakes).
func (s *Server) Channels() *channels.Registry { return s.channels }

// Commands exposes the command registry for programmatic registration.
func (s *Server) Commands() *commands.Registry { return s.registry }

// Converters exposes the parameter conversion registry.
func (s *Server) Converters() *convert.Registry { return s.converts }

// History exposes the invocation history store.
func (s *Server) History() history.Store { return s.history }

// Pipeline exposes the resolution pipeline for interceptor registration.
// Interceptors must be added before Start.
func (s *Server) Pipeline() *pipeline.Pipeline { return s.pipeline }

// registerAdapters constructs an adapter for every channel enabled in
// the configuration.
func (s *Server) registerAdapters() error {
	if c := s.config.Channels.Telegram; c.Enabled {
		a, err := telegram.NewAdapter(telegram.Config{
			Token:     c.BotToken,
			RateLimit: c.RateLimit,
			RateBurst: c.RateBurst,
			Logger:    s.logger,
		})
		if err != nil {
			return fmt.Errorf("telegram adapter: %w", err)
		}
		if err := s.channels.Register(a); err != nil {
			return err
		}
	}
	if c := s.config.Channels.Discord; c.Enabled {
		a, err := discord.NewAdapter(discord.Config{
			Token:     c.BotToken,
			RateLimit: c.RateLimit,
			RateBurst: c.RateBurst,
			Logger:    s.logger,
		})
		if err != nil {
			return fmt.Errorf("discord adapter: %w", err)
		}
		if err := s.channels.Register(a); err != nil {
			return err
		}
	}
	if c := s.config.Channels.Slack; c.Enabled {
		a, err := slack.NewAdapter(slack.Config{
			BotToken:  c.BotToken,
			AppToken:  c.AppToken,
			RateLimit: c.RateLimit,
			RateBurst: c.RateBurst,
			Logger:    s.logger,
		})
		if err != nil {
			return fmt.Errorf("slack adapter: %w", err)
		}
		if err := s.channels.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// Start starts the channel adapters, the message loop, and the metrics
// endpoint. It does not block; Stop shuts everything down.
func (s *Server) Start(ctx context.Context) error {
	s.audit.LogGateway(ctx, audit.EventGatewayStartup, map[string]any{
		"adapters": len(s.channels.All()),
		"commands": len(s.registry.List()),
	})

	if err := s.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}
	for _, a := range s.channels.All() {
		s.audit.LogChannelEvent(ctx, audit.EventChannelStarted, string(a.Type()), "")
	}

	s.wg.Add(1)
	go s.processMessages(ctx)

	s.startMetricsServer()
	s.logger.Info("gateway started", "adapters", len(s.channels.All()))
	return nil
}

// Stop gracefully shuts the gateway down: adapters first so the message
// loop drains, then the worker pool, then the observability plumbing.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping gateway")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown", "error", err)
		}
	}

	if err := s.channels.StopAll(ctx); err != nil {
		s.logger.Error("error stopping channels", "error", err)
	}
	for _, a := range s.channels.All() {
		s.audit.LogChannelEvent(ctx, audit.EventChannelStopped, string(a.Type()), "")
	}
	s.wg.Wait()

	if err := s.workers.Stop(ctx); err != nil {
		s.logger.Error("error stopping worker pool", "error", err)
	}

	s.audit.LogGateway(ctx, audit.EventGatewayShutdown, nil)
	if err := s.audit.Close(); err != nil {
		s.logger.Error("error closing audit logger", "error", err)
	}
	if err := s.history.Close(); err != nil {
		s.logger.Error("error closing history store", "error", err)
	}
	return s.tracerShutdown(ctx)
}

// startMetricsServer serves /metrics and /healthz.
func (s *Server) startMetricsServer() {
	if s.config.Server.MetricsPort <= 0 {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.MetricsPort)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		s.logger.Info("starting metrics server", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	healthy := true
	for _, a := range s.channels.All() {
		if !a.HealthCheck(r.Context()).Healthy {
			healthy = false
			break
		}
	}
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "degraded")
		return
	}
	fmt.Fprintln(w, "ok")
}

// processMessages handles incoming messages from all channels. It exits
// when every adapter has closed its message channel.
func (s *Server) processMessages(ctx context.Context) {
	defer s.wg.Done()
	messages := s.channels.AggregateMessages(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			go s.handleMessage(ctx, msg)
		}
	}
}

// handleMessage runs one inbound message through the pipeline and records
// the outcome.
func (s *Server) handleMessage(ctx context.Context, msg *models.Message) {
	if msg == nil {
		return
	}
	s.metrics.MessageReceived(string(msg.Channel))

	start := time.Now()
	res := s.pipeline.Dispatch(ctx, msg)
	duration := time.Since(start)

	cc := res.Context
	alias, _ := cc.Alias()
	command := ""
	if cmd := cc.Command(); cmd != nil {
		command = cmd.CommandName()
	}

	s.audit.LogMessageReceived(ctx, cc.ID(), msg)
	s.audit.LogResolution(ctx, cc.ID(), string(res.Outcome), alias, command, msg, duration)

	// Only resolutions that matched a prefixed invocation are worth
	// remembering; plain chatter is not.
	if alias != "" {
		err := s.history.Record(ctx, history.Entry{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			UserID:  msg.SenderID,
			Alias:   alias,
			Outcome: string(res.Outcome),
		})
		if err != nil {
			s.logger.Error("failed to record history", "error", err)
		}
	}
}

// Respond implements pipeline.Responder.
func (s *Server) Respond(ctx context.Context, cc *cmdctx.CommandContext, res *commands.Result) {
	msg := cc.Message()
	if msg == nil {
		return
	}
	text := res.Text
	if res.Error != "" {
		text = res.Error
	}
	s.send(ctx, msg.Reply(text))
}

// CommandNotFound implements pipeline.Responder. Only messages that
// carried a prefixed invocation get a reply; everything else stays
// silent so the bot does not answer ordinary conversation.
func (s *Server) CommandNotFound(ctx context.Context, cc *cmdctx.CommandContext) {
	alias, ok := cc.Alias()
	if !ok || alias == "" {
		return
	}
	msg := cc.Message()
	if msg == nil {
		return
	}

	prefix, _ := cc.Prefix()
	s.send(ctx, msg.Reply(fmt.Sprintf("Unknown command %q. Try %shelp.", alias, prefix)))
}

func (s *Server) send(ctx context.Context, out *models.Message) {
	adapter, ok := s.channels.Get(out.Channel)
	if !ok {
		s.logger.Error("no adapter for outbound message", "channel", out.Channel)
		return
	}
	if err := adapter.Send(ctx, out); err != nil {
		s.logger.Error("failed to send reply", "channel", out.Channel, "error", err)
		s.audit.LogChannelEvent(ctx, audit.EventChannelError, string(out.Channel), err.Error())
		return
	}
	s.metrics.MessageSent(string(out.Channel))
}
