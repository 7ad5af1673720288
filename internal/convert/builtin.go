package convert

import (
	"fmt"
	"strconv"
	"time"

	"github.com/haasonsaas/relay/internal/cmdctx"
)

// DefaultType is assumed for placeholders that declare no type.
const DefaultType = "string"

// builtins are the converters available without registration. User
// converters registered under the same type name take precedence.
var builtins = map[string]Converter{
	"string":   convertString,
	"int":      convertInt,
	"integer":  convertInt,
	"number":   convertNumber,
	"decimal":  convertNumber,
	"bool":     convertBool,
	"boolean":  convertBool,
	"duration": convertDuration,
}

func convertString(value, _ string, _ *cmdctx.CommandContext) (any, error) {
	return value, nil
}

func convertInt(value, typeName string, _ *cmdctx.CommandContext) (any, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, &FormatError{
			Type:  typeName,
			Value: value,
			Msg:   fmt.Sprintf("%q is not a whole number", value),
		}
	}
	return n, nil
}

func convertNumber(value, typeName string, _ *cmdctx.CommandContext) (any, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, &FormatError{
			Type:  typeName,
			Value: value,
			Msg:   fmt.Sprintf("%q is not a number", value),
		}
	}
	return f, nil
}

func convertBool(value, typeName string, _ *cmdctx.CommandContext) (any, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, &FormatError{
			Type:  typeName,
			Value: value,
			Msg:   fmt.Sprintf("%q is not true or false", value),
		}
	}
	return b, nil
}

func convertDuration(value, typeName string, _ *cmdctx.CommandContext) (any, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, &FormatError{
			Type:  typeName,
			Value: value,
			Msg:   fmt.Sprintf("%q is not a duration like 30s or 5m", value),
		}
	}
	return d, nil
}
