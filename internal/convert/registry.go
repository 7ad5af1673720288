// Package convert maps declared parameter types to converter functions.
//
// Converters are scoped to a consuming channel: a "user" parameter can
// convert differently on Discord than on Telegram. Built-in converters
// cover the primitive types and may be overridden by exactly one
// user-supplied converter per (type, channel) pair; a second candidate
// for the same pair is a configuration error, detected eagerly rather
// than silently picking one.
package convert

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/relay/internal/cmdctx"
	"github.com/haasonsaas/relay/pkg/models"
)

// AnyChannel registers a converter for all channels.
const AnyChannel models.ChannelType = "*"

// Converter turns a captured string into a typed value. It receives the
// type name it was invoked under, so one converter can serve several
// aliases, and the command context for channel-specific lookups.
// Failures must be FormatErrors whose messages are safe to show to the
// end user verbatim.
type Converter func(value, typeName string, cc *cmdctx.CommandContext) (any, error)

// FormatError reports a value that does not parse as its declared type.
// The message is end-user-safe.
type FormatError struct {
	Type  string
	Value string
	Msg   string
}

func (e *FormatError) Error() string { return e.Msg }

// ConfigError reports a converter registration or resolution fault:
// duplicate registration, ambiguous candidates, or an unknown type.
// Configuration errors abort startup rather than surfacing to end users.
type ConfigError struct {
	Type    string
	Channel models.ChannelType
	Msg     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("converter configuration error for type %q: %s", e.Type, e.Msg)
}

type converterKey struct {
	typeName string
	channel  models.ChannelType
}

// Registry resolves (type, channel) pairs to converters. Lookups are
// read-mostly after startup and safe for concurrent use; registration
// publishes under the write lock.
type Registry struct {
	mu     sync.RWMutex
	user   map[converterKey]Converter
	logger *slog.Logger
}

// NewRegistry creates a registry with the built-in converters available
// as fallbacks.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		user:   make(map[converterKey]Converter),
		logger: logger.With("component", "convert"),
	}
}

// Register installs a user converter for a type on one channel, or on
// all channels via AnyChannel. Type names are case-sensitive. A second
// registration for the same (type, channel) pair is a ConfigError.
func (r *Registry) Register(typeName string, channel models.ChannelType, fn Converter) error {
	if typeName == "" {
		return &ConfigError{Type: typeName, Channel: channel, Msg: "type name is required"}
	}
	if fn == nil {
		return &ConfigError{Type: typeName, Channel: channel, Msg: "converter is nil"}
	}

	key := converterKey{typeName: typeName, channel: channel}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.user[key]; exists {
		return &ConfigError{
			Type:    typeName,
			Channel: channel,
			Msg:     fmt.Sprintf("converter already registered for channel %q", channel),
		}
	}
	r.user[key] = fn

	r.logger.Debug("registered converter", "type", typeName, "channel", channel)
	return nil
}

// Resolve returns the single applicable converter for a type on a
// channel. A channel-specific and an any-channel user converter for the
// same type are both applicable, which is a configuration error: the
// registry never picks one. With no user converter, the built-in for the
// type applies; none at all is also a configuration error.
func (r *Registry) Resolve(typeName string, channel models.ChannelType) (Converter, error) {
	r.mu.RLock()
	specific, hasSpecific := r.user[converterKey{typeName: typeName, channel: channel}]
	generic, hasGeneric := r.user[converterKey{typeName: typeName, channel: AnyChannel}]
	r.mu.RUnlock()

	if channel == AnyChannel {
		hasSpecific = false
	}

	switch {
	case hasSpecific && hasGeneric:
		return nil, &ConfigError{
			Type:    typeName,
			Channel: channel,
			Msg:     fmt.Sprintf("ambiguous: converters registered for both channel %q and all channels", channel),
		}
	case hasSpecific:
		return specific, nil
	case hasGeneric:
		return generic, nil
	}

	if builtin, ok := builtins[typeName]; ok {
		return builtin, nil
	}
	return nil, &ConfigError{
		Type:    typeName,
		Channel: channel,
		Msg:     "no converter registered",
	}
}

// Convert resolves and applies the converter for a type in one step.
func (r *Registry) Convert(value, typeName string, channel models.ChannelType, cc *cmdctx.CommandContext) (any, error) {
	fn, err := r.Resolve(typeName, channel)
	if err != nil {
		return nil, err
	}
	return fn(value, typeName, cc)
}
