// Package commands defines text commands and their registry. A command
// declares its arguments with a usage grammar that is compiled at
// registration time, so malformed usage strings fail at startup rather
// than on the first invocation.
package commands

import (
	"context"

	"github.com/haasonsaas/relay/internal/cmdctx"
	"github.com/haasonsaas/relay/internal/params"
)

// Command represents a registered text command.
type Command struct {
	// Name is the primary alias (e.g. "ping").
	Name string `json:"name"`

	// Aliases are alternative names for the command.
	Aliases []string `json:"aliases,omitempty"`

	// Description is a short description of what the command does.
	// Defaults to the title-cased name at registration when unset.
	Description string `json:"description,omitempty"`

	// Usage declares the command's arguments in the usage grammar.
	// Empty means the command takes no arguments.
	Usage string `json:"usage,omitempty"`

	// Async executes the handler on the worker pool instead of the
	// message-delivery goroutine. The pipeline does not wait for it.
	Async bool `json:"async,omitempty"`

	// Hidden hides the command from help listings.
	Hidden bool `json:"hidden,omitempty"`

	// Restrictions gate execution. All must allow the invocation; they
	// are evaluated after command lookup, immediately before execution.
	Restrictions []Restriction `json:"-"`

	// Handler is the function that executes the command.
	Handler Handler `json:"-"`
}

// CommandName implements cmdctx.Command so a resolved command can ride
// the command context between pipeline phases.
func (c *Command) CommandName() string { return c.Name }

// Handler processes a command invocation.
type Handler func(ctx context.Context, inv *Invocation) (*Result, error)

// Restriction decides whether an invocation may execute.
type Restriction func(ctx context.Context, cc *cmdctx.CommandContext) bool

// Invocation is a fully resolved command call.
type Invocation struct {
	// Command is the matched command definition.
	Command *Command

	// Context is the command context at the end of resolution.
	Context *cmdctx.CommandContext

	// Alias is the actual name used to invoke the command.
	Alias string

	// Params holds the named, typed parameter values.
	Params *params.Parameters
}

// Result is the output of a command execution.
type Result struct {
	// Text is the response message to send.
	Text string `json:"text,omitempty"`

	// Private indicates the response should only be visible to the invoker.
	Private bool `json:"private,omitempty"`

	// Suppress indicates no response should be sent.
	Suppress bool `json:"suppress,omitempty"`

	// Error is a user-safe message set when the command failed.
	Error string `json:"error,omitempty"`
}
