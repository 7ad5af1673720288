// Package cmdctx defines the command context: the record an incoming
// message accumulates while it moves through the resolution pipeline.
//
// A context is immutable. Every With* method returns a copy, so each
// pipeline phase produces a new value and concurrent resolutions never
// contend on shared state. Mutation bugs from cross-phase aliasing are
// ruled out by construction.
package cmdctx

import (
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/relay/pkg/models"
)

// Command is the resolved command carried by a context. The concrete
// type lives in the commands package; the context only transports it
// between phases.
type Command interface {
	CommandName() string
}

// CommandContext tracks the resolution state for one incoming message.
type CommandContext struct {
	id        string
	message   *models.Message
	text      string
	prefix    string
	prefixSet bool
	alias     string
	aliasSet  bool
	params    string
	paramsSet bool
	command   Command
	createdAt time.Time
	data      map[string]any
}

// New creates a context for an incoming message. The message text is the
// starting point for prefix and alias computation.
func New(msg *models.Message) *CommandContext {
	text := ""
	if msg != nil {
		text = msg.Content
	}
	return &CommandContext{
		id:        uuid.NewString(),
		message:   msg,
		text:      text,
		createdAt: time.Now(),
	}
}

// ID returns the unique identifier of this resolution.
func (c *CommandContext) ID() string { return c.id }

// Message returns the raw message handle. The pipeline never interprets
// it beyond reading its text.
func (c *CommandContext) Message() *models.Message { return c.message }

// Text returns the message text under resolution.
func (c *CommandContext) Text() string { return c.text }

// Prefix returns the recognized command prefix, if one has been set.
func (c *CommandContext) Prefix() (string, bool) { return c.prefix, c.prefixSet }

// Alias returns the recognized command alias, if one has been set.
func (c *CommandContext) Alias() (string, bool) { return c.alias, c.aliasSet }

// ParamString returns the raw parameter string, if one has been set.
func (c *CommandContext) ParamString() (string, bool) { return c.params, c.paramsSet }

// Command returns the resolved command, or nil before command lookup.
func (c *CommandContext) Command() Command { return c.command }

// CreatedAt returns when resolution of this message began.
func (c *CommandContext) CreatedAt() time.Time { return c.createdAt }

// Get reads a value from the additional-data store.
func (c *CommandContext) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// WithText returns a copy with the message text replaced.
func (c *CommandContext) WithText(text string) *CommandContext {
	cp := c.clone()
	cp.text = text
	return cp
}

// WithPrefix returns a copy carrying the given prefix. The empty string
// is a legal prefix.
func (c *CommandContext) WithPrefix(prefix string) *CommandContext {
	cp := c.clone()
	cp.prefix = prefix
	cp.prefixSet = true
	return cp
}

// WithAlias returns a copy carrying the given alias.
func (c *CommandContext) WithAlias(alias string) *CommandContext {
	cp := c.clone()
	cp.alias = alias
	cp.aliasSet = true
	return cp
}

// WithParamString returns a copy carrying the given parameter string.
func (c *CommandContext) WithParamString(params string) *CommandContext {
	cp := c.clone()
	cp.params = params
	cp.paramsSet = true
	return cp
}

// WithCommand returns a copy carrying the resolved command.
func (c *CommandContext) WithCommand(cmd Command) *CommandContext {
	cp := c.clone()
	cp.command = cmd
	return cp
}

// WithData returns a copy with a value set in the additional-data store.
func (c *CommandContext) WithData(key string, value any) *CommandContext {
	cp := c.clone()
	data := make(map[string]any, len(c.data)+1)
	for k, v := range c.data {
		data[k] = v
	}
	data[key] = value
	cp.data = data
	return cp
}

func (c *CommandContext) clone() *CommandContext {
	cp := *c
	return &cp
}
