package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/relay/internal/cmdctx"
	"github.com/haasonsaas/relay/internal/commands"
	"github.com/haasonsaas/relay/internal/convert"
	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/params"
	"github.com/haasonsaas/relay/pkg/models"
)

// Responder delivers resolution output back to the channel a message
// came from. The gateway implements it; tests substitute a recorder.
type Responder interface {
	// Respond sends a command result to the originating conversation.
	Respond(ctx context.Context, cc *cmdctx.CommandContext, res *commands.Result)

	// CommandNotFound notifies the sender that nothing matched their
	// message.
	CommandNotFound(ctx context.Context, cc *cmdctx.CommandContext)
}

// Submitter hands a task to a background executor. Implemented by
// workers.Pool.
type Submitter interface {
	Submit(task func()) bool
}

// Config configures a resolution pipeline.
type Config struct {
	// Prefix is the default command prefix used when no interceptor
	// supplies one. Nil disables the default computation entirely. The
	// empty string is a legal prefix but routes every incoming message
	// through the full pipeline.
	Prefix *string

	// Registry resolves aliases to commands.
	Registry *commands.Registry

	// Parser parses and converts parameter strings before execution.
	Parser *params.TypedParser

	// Responder receives results and not-found notifications. Nil means
	// resolution output is discarded.
	Responder Responder

	// Workers runs async command handlers. Nil makes async commands run
	// inline.
	Workers Submitter

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// EmptyPrefixWarn runs once, on the first resolution under an empty
	// prefix. Defaults to a log warning.
	EmptyPrefixWarn func()
}

// Pipeline resolves incoming messages to command executions. One
// interceptor may be registered per phase; everything else is the
// default computation chain.
type Pipeline struct {
	prefix       *string
	registry     *commands.Registry
	parser       *params.TypedParser
	responder    Responder
	workers      Submitter
	logger       *slog.Logger
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	interceptors map[Phase]Interceptor

	emptyPrefixWarn func()
	warnOnce        sync.Once
}

// New creates a pipeline. A nil registry or parser is replaced with an
// empty default so the pipeline is always safe to dispatch on.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")

	registry := cfg.Registry
	if registry == nil {
		registry = commands.NewRegistry(nil, logger)
	}
	parser := cfg.Parser
	if parser == nil {
		parser = params.NewTypedParser(nil, nil, logger)
	}

	p := &Pipeline{
		prefix:          cfg.Prefix,
		registry:        registry,
		parser:          parser,
		responder:       cfg.Responder,
		workers:         cfg.Workers,
		logger:          logger,
		metrics:         cfg.Metrics,
		tracer:          cfg.Tracer,
		interceptors:    make(map[Phase]Interceptor),
		emptyPrefixWarn: cfg.EmptyPrefixWarn,
	}
	if p.emptyPrefixWarn == nil {
		p.emptyPrefixWarn = func() {
			logger.Warn("empty prefix configured: every incoming message runs the full resolution pipeline")
		}
	}
	return p
}

// Intercept registers custom logic for one phase. Each phase accepts at
// most one interceptor; a second registration is rejected. Interceptors
// must be registered before the first dispatch.
func (p *Pipeline) Intercept(phase Phase, ic Interceptor) error {
	if !phase.valid() {
		return errors.New("pipeline: unknown phase")
	}
	if ic == nil {
		return errors.New("pipeline: interceptor is nil")
	}
	if _, exists := p.interceptors[phase]; exists {
		return errors.New("pipeline: phase " + phase.String() + " already has an interceptor")
	}
	p.interceptors[phase] = ic
	return nil
}

// Result is the terminal state of one dispatch.
type Result struct {
	Outcome Outcome

	// Context is the command context as it stood when resolution ended.
	Context *cmdctx.CommandContext

	// Response is the handler's result for synchronous executions. Nil
	// for async commands and for every non-executed outcome.
	Response *commands.Result
}

// Dispatch resolves one incoming message. It always returns a terminal
// result; resolution failures surface as not-found or ignored, never as
// an error to the caller.
func (p *Pipeline) Dispatch(ctx context.Context, msg *models.Message) *Result {
	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "pipeline.dispatch")
		defer span.End()
	}

	cc := cmdctx.New(msg)
	res := p.resolve(ctx, cc)

	if span != nil {
		alias, _ := res.Context.Alias()
		span.SetAttributes(
			attribute.String("relay.outcome", string(res.Outcome)),
			attribute.String("relay.alias", alias),
		)
	}
	return res
}

func (p *Pipeline) resolve(ctx context.Context, cc *cmdctx.CommandContext) *Result {
	cc, done := p.prefixPhases(ctx, cc)
	if done != nil {
		return done
	}
	cc, done = p.aliasPhases(ctx, cc)
	if done != nil {
		return done
	}
	return p.commandPhases(ctx, cc)
}

// prefixPhases establishes the prefix. Both phases are skipped when an
// earlier step already produced a prefix or an alias.
func (p *Pipeline) prefixPhases(ctx context.Context, cc *cmdctx.CommandContext) (*cmdctx.CommandContext, *Result) {
	if _, ok := cc.Alias(); ok {
		return cc, nil
	}
	if _, ok := cc.Prefix(); ok {
		return cc, nil
	}

	cc, done := p.runPhase(ctx, BeforePrefix, cc)
	if done != nil {
		return cc, done
	}
	if _, ok := cc.Prefix(); !ok && p.prefix != nil {
		cc = cc.WithPrefix(*p.prefix)
	}
	cc, done = p.runPhase(ctx, AfterPrefix, cc)
	if done != nil {
		return cc, done
	}

	if _, ok := cc.Prefix(); !ok {
		if _, aliasSet := cc.Alias(); !aliasSet {
			return cc, p.finishNotFound(ctx, cc)
		}
	}
	return cc, nil
}

// aliasPhases splits the alias and parameter string out of the message
// text. Skipped entirely when an alias is already present.
func (p *Pipeline) aliasPhases(ctx context.Context, cc *cmdctx.CommandContext) (*cmdctx.CommandContext, *Result) {
	if _, ok := cc.Alias(); ok {
		return cc, nil
	}

	cc, done := p.runPhase(ctx, BeforeAliasAndParams, cc)
	if done != nil {
		return cc, done
	}
	if _, ok := cc.Alias(); !ok {
		prefix, ok := cc.Prefix()
		if !ok {
			return cc, p.finishNotFound(ctx, cc)
		}
		if !strings.HasPrefix(cc.Text(), prefix) {
			return cc, p.finishIgnored(cc)
		}
		if prefix == "" {
			p.warnOnce.Do(p.emptyPrefixWarn)
		}
		cc = splitAliasAndParams(cc, prefix)
	}

	cc, done = p.runPhase(ctx, AfterAliasAndParams, cc)
	if done != nil {
		return cc, done
	}
	if _, ok := cc.Alias(); !ok {
		return cc, p.finishNotFound(ctx, cc)
	}
	return cc, nil
}

// commandPhases looks the alias up in the registry and executes. The
// AfterCommand interceptor only runs when the lookup found nothing; it
// is the last chance to supply a command before not-found.
func (p *Pipeline) commandPhases(ctx context.Context, cc *cmdctx.CommandContext) *Result {
	cc, done := p.runPhase(ctx, BeforeCommand, cc)
	if done != nil {
		return done
	}
	if _, ok := cc.Alias(); !ok {
		return p.finishNotFound(ctx, cc)
	}

	if cc.Command() == nil {
		alias, _ := cc.Alias()
		if cmd, ok := p.registry.Get(alias); ok {
			cc = cc.WithCommand(cmd)
		}
	}
	if cc.Command() != nil {
		return p.execute(ctx, cc)
	}

	cc, failed := p.intercept(ctx, AfterCommand, cc)
	if failed || cc.Command() == nil {
		return p.finishNotFound(ctx, cc)
	}
	return p.execute(ctx, cc)
}

// runPhase runs the interceptor registered for a phase, if any, then
// applies the fast-forward rule: a command set this early skips every
// remaining phase and executes immediately.
func (p *Pipeline) runPhase(ctx context.Context, phase Phase, cc *cmdctx.CommandContext) (*cmdctx.CommandContext, *Result) {
	cc, failed := p.intercept(ctx, phase, cc)
	if failed {
		return cc, p.finishNotFound(ctx, cc)
	}
	if cc.Command() != nil {
		return cc, p.execute(ctx, cc)
	}
	return cc, nil
}

// intercept runs the interceptor for a phase. An interceptor error
// aborts the resolution; the bool reports that failure.
func (p *Pipeline) intercept(ctx context.Context, phase Phase, cc *cmdctx.CommandContext) (*cmdctx.CommandContext, bool) {
	ic, ok := p.interceptors[phase]
	if !ok {
		return cc, false
	}
	next, err := ic(ctx, cc)
	if err != nil {
		p.logger.Error("interceptor failed",
			"phase", phase.String(),
			"id", cc.ID(),
			"error", err)
		return cc, true
	}
	if next == nil {
		p.logger.Warn("interceptor returned nil context, keeping previous", "phase", phase.String())
		return cc, false
	}
	return next, false
}

// splitAliasAndParams strips the prefix from the message text and splits
// the remainder at the first whitespace run. The first token, lowercased,
// becomes the alias; the rest becomes the parameter string. A bare prefix
// produces neither.
func splitAliasAndParams(cc *cmdctx.CommandContext, prefix string) *cmdctx.CommandContext {
	rest := strings.TrimSpace(strings.TrimPrefix(cc.Text(), prefix))
	if rest == "" {
		return cc
	}

	alias := rest
	paramStr := ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		alias = rest[:i]
		paramStr = strings.TrimSpace(rest[i:])
	}
	return cc.WithAlias(strings.ToLower(alias)).WithParamString(paramStr)
}

func (p *Pipeline) execute(ctx context.Context, cc *cmdctx.CommandContext) *Result {
	cmd, ok := cc.Command().(*commands.Command)
	if !ok {
		p.logger.Error("context carries an unknown command implementation",
			"id", cc.ID(),
			"command", cc.Command().CommandName())
		return p.finishNotFound(ctx, cc)
	}

	for _, restrict := range cmd.Restrictions {
		if !restrict(ctx, cc) {
			return p.finishDenied(ctx, cc, cmd)
		}
	}

	p.observe(cc, OutcomeExecuted)

	if cmd.Async {
		if p.workers != nil {
			bg := context.WithoutCancel(ctx)
			if !p.workers.Submit(func() { p.runHandler(bg, cmd, cc) }) {
				p.logger.Warn("worker pool rejected async command", "command", cmd.Name, "id", cc.ID())
			}
			return &Result{Outcome: OutcomeExecuted, Context: cc}
		}
		p.logger.Warn("no worker pool configured, running async command inline", "command", cmd.Name)
	}

	res := p.runHandler(ctx, cmd, cc)
	return &Result{Outcome: OutcomeExecuted, Context: cc, Response: res}
}

func (p *Pipeline) runHandler(ctx context.Context, cmd *commands.Command, cc *cmdctx.CommandContext) *commands.Result {
	alias, ok := cc.Alias()
	if !ok {
		alias = cmd.Name
	}

	parsed, err := p.parser.Parse(cmd.Usage, cc)
	if err != nil {
		res := p.parseFailure(cmd, cc, err)
		p.reply(ctx, cc, res)
		return res
	}

	start := time.Now()
	res, err := cmd.Handler(ctx, &commands.Invocation{
		Command: cmd,
		Context: cc,
		Alias:   alias,
		Params:  parsed,
	})
	if p.metrics != nil {
		p.metrics.ObserveExecution(cmd.Name, cmd.Async, time.Since(start))
	}
	if err != nil {
		p.logger.Error("command failed", "command", cmd.Name, "id", cc.ID(), "error", err)
		res = &commands.Result{Error: "The command failed unexpectedly."}
	}

	p.reply(ctx, cc, res)
	return res
}

// parseFailure converts a parameter parsing error into the result sent
// back to the user. Parse errors carry user-safe messages; anything else
// is a configuration fault that stays in the logs.
func (p *Pipeline) parseFailure(cmd *commands.Command, cc *cmdctx.CommandContext, err error) *commands.Result {
	var parseErr *params.ParseError
	if errors.As(err, &parseErr) {
		var formatErr *convert.FormatError
		if errors.As(err, &formatErr) && p.metrics != nil {
			p.metrics.ConversionError(formatErr.Type)
		}
		return &commands.Result{Error: parseErr.Error()}
	}

	p.logger.Error("parameter parsing hit a configuration fault",
		"command", cmd.Name,
		"id", cc.ID(),
		"error", err)
	return &commands.Result{Error: "This command is misconfigured. Please contact an administrator."}
}

func (p *Pipeline) reply(ctx context.Context, cc *cmdctx.CommandContext, res *commands.Result) {
	if res == nil || res.Suppress || p.responder == nil {
		return
	}
	if res.Text == "" && res.Error == "" {
		return
	}
	p.responder.Respond(ctx, cc, res)
}

func (p *Pipeline) finishNotFound(ctx context.Context, cc *cmdctx.CommandContext) *Result {
	if prefix, ok := cc.Prefix(); ok && prefix == "" && p.metrics != nil {
		p.metrics.EmptyPrefixMisses.Inc()
	}
	p.observe(cc, OutcomeNotFound)

	alias, _ := cc.Alias()
	p.logger.Debug("no command matched", "id", cc.ID(), "alias", alias)
	if p.responder != nil {
		p.responder.CommandNotFound(ctx, cc)
	}
	return &Result{Outcome: OutcomeNotFound, Context: cc}
}

func (p *Pipeline) finishIgnored(cc *cmdctx.CommandContext) *Result {
	p.observe(cc, OutcomeIgnored)
	p.logger.Debug("message ignored", "id", cc.ID())
	return &Result{Outcome: OutcomeIgnored, Context: cc}
}

func (p *Pipeline) finishDenied(ctx context.Context, cc *cmdctx.CommandContext, cmd *commands.Command) *Result {
	p.observe(cc, OutcomeDenied)
	p.logger.Info("command denied by restriction", "command", cmd.Name, "id", cc.ID())
	p.reply(ctx, cc, &commands.Result{
		Error:   "You are not permitted to use this command.",
		Private: true,
	})
	return &Result{Outcome: OutcomeDenied, Context: cc}
}

func (p *Pipeline) observe(cc *cmdctx.CommandContext, outcome Outcome) {
	if p.metrics == nil {
		return
	}
	channel := "unknown"
	if msg := cc.Message(); msg != nil && msg.Channel != "" {
		channel = string(msg.Channel)
	}
	p.metrics.ResolutionFinished(channel, string(outcome))
}
