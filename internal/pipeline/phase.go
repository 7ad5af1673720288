// Package pipeline implements command resolution: the phased state
// machine that turns an incoming message into a command execution, a
// not-found notification, or silence.
//
// Resolution walks six phases in order. Between phases the pipeline
// fills in whatever the context is still missing (prefix, alias and
// parameter string, command), and an interceptor registered for a phase
// may pre-compute any of those fields to skip the default computation
// or fast-forward past later phases entirely.
package pipeline

import (
	"context"

	"github.com/haasonsaas/relay/internal/cmdctx"
)

// Phase identifies one interception point in the resolution pipeline.
type Phase int

const (
	// BeforePrefix runs before the prefix is computed.
	BeforePrefix Phase = iota

	// AfterPrefix runs after the prefix is computed.
	AfterPrefix

	// BeforeAliasAndParams runs before the alias and parameter string
	// are split out of the message text.
	BeforeAliasAndParams

	// AfterAliasAndParams runs after the alias and parameter string are
	// set.
	AfterAliasAndParams

	// BeforeCommand runs before the alias is looked up in the registry.
	BeforeCommand

	// AfterCommand runs only when the registry lookup found nothing,
	// immediately before execution. A successful lookup fast-forwards
	// past it, so it behaves as a fallback hook for resolving commands
	// the registry does not know.
	AfterCommand
)

var phaseNames = map[Phase]string{
	BeforePrefix:         "before_prefix",
	AfterPrefix:          "after_prefix",
	BeforeAliasAndParams: "before_alias_and_params",
	AfterAliasAndParams:  "after_alias_and_params",
	BeforeCommand:        "before_command",
	AfterCommand:         "after_command",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// valid reports whether p names a real phase.
func (p Phase) valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// Outcome is the terminal state of one resolution.
type Outcome string

const (
	// OutcomeExecuted means a command was found and its handler ran (or
	// was handed to the worker pool for async commands).
	OutcomeExecuted Outcome = "executed"

	// OutcomeNotFound means the message addressed the bot but no command
	// matched; the sender is notified.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeIgnored means the message was not addressed to the bot and
	// is dropped silently.
	OutcomeIgnored Outcome = "ignored"

	// OutcomeDenied means a command matched but a restriction refused
	// the invocation.
	OutcomeDenied Outcome = "denied"
)

// Interceptor is custom logic hooked into one phase. It receives the
// current context and returns the context to continue with; returning
// the input unchanged is the no-op. An error aborts the resolution as
// not found.
type Interceptor func(ctx context.Context, cc *cmdctx.CommandContext) (*cmdctx.CommandContext, error)
