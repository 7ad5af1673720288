package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/relay/internal/history"
)

// RegisterBuiltins adds the stock commands: ping, help, and, when a
// history store is available, history.
func RegisterBuiltins(reg *Registry, store history.Store) error {
	builtins := []*Command{
		{
			Name:        "ping",
			Description: "Check that the bot is alive",
			Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
				return &Result{Text: "pong"}, nil
			},
		},
		{
			Name:        "help",
			Aliases:     []string{"commands"},
			Description: "List available commands",
			Usage:       "[<command>]",
			Handler:     helpHandler(reg),
		},
	}

	if store != nil {
		builtins = append(builtins, &Command{
			Name:        "history",
			Description: "Show recently executed commands",
			Usage:       "[<count:int>]",
			Handler:     historyHandler(store),
		})
	}

	for _, cmd := range builtins {
		if err := reg.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func helpHandler(reg *Registry) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		if name, ok := inv.Params.Get("command"); ok {
			cmd, found := reg.Get(name)
			if !found || cmd.Hidden {
				return &Result{Error: fmt.Sprintf("Unknown command %q", name)}, nil
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "%s - %s", cmd.Name, cmd.Description)
			if cmd.Usage != "" {
				fmt.Fprintf(&sb, "\nUsage: %s %s", cmd.Name, cmd.Usage)
			}
			if len(cmd.Aliases) > 0 {
				fmt.Fprintf(&sb, "\nAliases: %s", strings.Join(cmd.Aliases, ", "))
			}
			return &Result{Text: sb.String()}, nil
		}

		var sb strings.Builder
		sb.WriteString("Available commands:")
		for _, cmd := range reg.ListVisible() {
			fmt.Fprintf(&sb, "\n%s - %s", cmd.Name, cmd.Description)
		}
		return &Result{Text: sb.String()}, nil
	}
}

func historyHandler(store history.Store) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		limit := 10
		if v, ok := inv.Params.Typed("count"); ok {
			// A host may rebind the int converter to another concrete
			// type; keep the default limit when the value is not int64.
			if n, ok := v.(int64); ok {
				limit = int(n)
			}
		}

		entries, err := store.Recent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		if len(entries) == 0 {
			return &Result{Text: "No commands executed yet."}, nil
		}

		var sb strings.Builder
		sb.WriteString("Recent commands:")
		for _, e := range entries {
			fmt.Fprintf(&sb, "\n%s %s (%s)", e.CreatedAt.Format("15:04:05"), e.Alias, e.Outcome)
		}
		return &Result{Text: sb.String()}, nil
	}
}
