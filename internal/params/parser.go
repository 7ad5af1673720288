package params

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/relay/internal/cmdctx"
	"github.com/haasonsaas/relay/internal/convert"
	"github.com/haasonsaas/relay/internal/pattern"
)

// ParseError reports input that does not satisfy a command's declared
// usage. Its message is safe to show to the end user verbatim; when a
// usage grammar is declared it is embedded unmodified so the user sees
// exactly what the command author wrote.
type ParseError struct {
	Usage string // declared usage, "" when the command takes no parameters
	Msg   string
	Err   error
}

func (e *ParseError) Error() string { return e.Msg }

func (e *ParseError) Unwrap() error { return e.Err }

// Parser matches parameter strings against declared usage grammars and
// returns untyped string parameters.
type Parser struct {
	cache  *pattern.Cache
	logger *slog.Logger
}

// NewParser creates an untyped parameter parser backed by a shared
// pattern cache.
func NewParser(cache *pattern.Cache, logger *slog.Logger) *Parser {
	if cache == nil {
		cache = pattern.NewCache(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{cache: cache, logger: logger.With("component", "params")}
}

// Parse matches the context's parameter string against the declared
// usage. An empty usage means the command takes no structured parameters
// and only an empty parameter string succeeds.
func (p *Parser) Parse(usageStr string, cc *cmdctx.CommandContext) (*Parameters, error) {
	captures, err := p.match(usageStr, cc)
	if err != nil {
		return nil, err
	}

	result := newParameters()
	for _, c := range captures {
		result.add(c.Slot.Name, c.Value, c.Value)
	}
	return result, nil
}

func (p *Parser) match(usageStr string, cc *cmdctx.CommandContext) ([]pattern.Capture, error) {
	paramString, _ := cc.ParamString()

	if usageStr == "" {
		if strings.TrimSpace(paramString) != "" {
			return nil, &ParseError{Msg: "this command does not expect arguments"}
		}
		return nil, nil
	}

	compiled, err := p.cache.Get(usageStr)
	if err != nil {
		// A malformed usage string is a configuration fault; registration
		// should have rejected it long before a message got here.
		return nil, err
	}

	captures, ok := compiled.Match(paramString)
	if !ok {
		return nil, &ParseError{
			Usage: usageStr,
			Msg:   fmt.Sprintf("input does not match expected usage: %s", usageStr),
		}
	}
	return captures, nil
}

// TypedParser matches like Parser and additionally converts every
// captured value through the registered converter for its declared type.
type TypedParser struct {
	parser   *Parser
	registry *convert.Registry
}

// NewTypedParser creates a typed parameter parser.
func NewTypedParser(cache *pattern.Cache, registry *convert.Registry, logger *slog.Logger) *TypedParser {
	if registry == nil {
		registry = convert.NewRegistry(logger)
	}
	return &TypedParser{
		parser:   NewParser(cache, logger),
		registry: registry,
	}
}

// Parse matches the context's parameter string and converts each value.
// Placeholders without a declared type convert as strings. Conversion
// format errors become ParseErrors; converter configuration errors
// propagate unchanged so startup faults stay loud.
func (p *TypedParser) Parse(usageStr string, cc *cmdctx.CommandContext) (*Parameters, error) {
	captures, err := p.parser.match(usageStr, cc)
	if err != nil {
		return nil, err
	}

	channel := convert.AnyChannel
	if msg := cc.Message(); msg != nil && msg.Channel != "" {
		channel = msg.Channel
	}

	result := newParameters()
	for _, c := range captures {
		typeName := c.Slot.Type
		if typeName == "" {
			typeName = convert.DefaultType
		}

		converted, err := p.registry.Convert(c.Value, typeName, channel, cc)
		if err != nil {
			var formatErr *convert.FormatError
			if errors.As(err, &formatErr) {
				return nil, &ParseError{Usage: usageStr, Msg: formatErr.Msg, Err: err}
			}
			return nil, err
		}
		result.add(c.Slot.Name, c.Value, converted)
	}
	return result, nil
}
