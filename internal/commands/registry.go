package commands

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/relay/internal/pattern"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Registry manages command registrations and alias lookup. It is safe
// for concurrent use; registration normally happens at startup and
// lookups dominate afterwards.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command // primary name -> command
	aliases  map[string]string   // alias -> primary name
	cache    *pattern.Cache
	logger   *slog.Logger
}

// NewRegistry creates a command registry. The pattern cache is shared
// with the parameter parser so usage grammars compiled at registration
// are warm when the first message arrives.
func NewRegistry(cache *pattern.Cache, logger *slog.Logger) *Registry {
	if cache == nil {
		cache = pattern.NewCache(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
		cache:    cache,
		logger:   logger.With("component", "commands"),
	}
}

var titleCaser = cases.Title(language.English)

// applyDefaults fills the registration-time defaults: the normalized
// name and a title-cased description. These are plain string transforms
// resolved once, not reflection.
func applyDefaults(cmd *Command) {
	cmd.Name = strings.ToLower(strings.TrimSpace(cmd.Name))
	if cmd.Description == "" {
		cmd.Description = titleCaser.String(cmd.Name) + " command"
	}
}

// Register adds a command. The usage grammar, if declared, is compiled
// immediately: a syntax error aborts registration so configuration
// faults surface at startup.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("command is nil")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return fmt.Errorf("command name is required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q: handler is required", cmd.Name)
	}

	applyDefaults(cmd)

	if cmd.Usage != "" {
		if _, err := r.cache.Get(cmd.Usage); err != nil {
			return fmt.Errorf("command %q: invalid usage: %w", cmd.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("command %q already registered", cmd.Name)
	}
	if owner, exists := r.aliases[cmd.Name]; exists {
		return fmt.Errorf("command name %q conflicts with an alias of %q", cmd.Name, owner)
	}

	for _, alias := range cmd.Aliases {
		a := strings.ToLower(strings.TrimSpace(alias))
		if a == "" || a == cmd.Name {
			continue
		}
		if _, exists := r.commands[a]; exists {
			return fmt.Errorf("command %q: alias %q conflicts with a command name", cmd.Name, a)
		}
		if owner, exists := r.aliases[a]; exists {
			return fmt.Errorf("command %q: alias %q already registered for %q", cmd.Name, a, owner)
		}
	}

	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		a := strings.ToLower(strings.TrimSpace(alias))
		if a == "" || a == cmd.Name {
			continue
		}
		r.aliases[a] = cmd.Name
	}

	r.logger.Debug("registered command",
		"name", cmd.Name,
		"aliases", cmd.Aliases,
		"usage", cmd.Usage,
		"async", cmd.Async)
	return nil
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(alias string) (*Command, bool) {
	alias = strings.ToLower(strings.TrimSpace(alias))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if cmd, ok := r.commands[alias]; ok {
		return cmd, true
	}
	if name, ok := r.aliases[alias]; ok {
		return r.commands[name], true
	}
	return nil, false
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListVisible returns the commands shown in help output.
func (r *Registry) ListVisible() []*Command {
	all := r.List()
	visible := make([]*Command, 0, len(all))
	for _, cmd := range all {
		if !cmd.Hidden {
			visible = append(visible, cmd)
		}
	}
	return visible
}
