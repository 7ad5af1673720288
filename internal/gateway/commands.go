package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/relay/internal/cmdctx"
	"github.com/haasonsaas/relay/internal/commands"
	"github.com/haasonsaas/relay/internal/config"
	"github.com/haasonsaas/relay/pkg/models"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z][a-zA-Z0-9_]*)\}`)

// buildCommand turns a declared command from the configuration file into
// a registered command whose handler renders the response template.
func buildCommand(cc config.CommandConfig) (*commands.Command, error) {
	var restrictions []commands.Restriction
	if len(cc.Channels) > 0 {
		allowed := make(map[models.ChannelType]bool, len(cc.Channels))
		for _, name := range cc.Channels {
			ct, ok := models.ParseChannelType(name)
			if !ok {
				return nil, fmt.Errorf("command %q: unknown channel type %q", cc.Name, name)
			}
			allowed[ct] = true
		}
		restrictions = append(restrictions, channelRestriction(allowed))
	}
	if len(cc.Users) > 0 {
		allowed := make(map[string]bool, len(cc.Users))
		for _, id := range cc.Users {
			allowed[id] = true
		}
		restrictions = append(restrictions, userRestriction(allowed))
	}

	template := cc.Response
	return &commands.Command{
		Name:         cc.Name,
		Aliases:      cc.Aliases,
		Description:  cc.Description,
		Usage:        cc.Usage,
		Async:        cc.Async,
		Hidden:       cc.Hidden,
		Restrictions: restrictions,
		Handler: func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
			return &commands.Result{Text: renderResponse(template, inv)}, nil
		},
	}, nil
}

// renderResponse substitutes {name} placeholders with parameter values.
// Repeated parameters join with spaces; unknown names stay literal so a
// stray brace pair in the response text is harmless.
func renderResponse(template string, inv *commands.Invocation) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if name == "alias" {
			return inv.Alias
		}
		values := inv.Params.All(name)
		if len(values) == 0 {
			return match
		}
		return strings.Join(values, " ")
	})
}

// channelRestriction limits a command to the given channel types.
func channelRestriction(allowed map[models.ChannelType]bool) commands.Restriction {
	return func(ctx context.Context, cc *cmdctx.CommandContext) bool {
		msg := cc.Message()
		return msg != nil && allowed[msg.Channel]
	}
}

// userRestriction limits a command to the given sender IDs.
func userRestriction(allowed map[string]bool) commands.Restriction {
	return func(ctx context.Context, cc *cmdctx.CommandContext) bool {
		msg := cc.Message()
		return msg != nil && allowed[msg.SenderID]
	}
}
