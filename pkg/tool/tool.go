package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/loom/pkg/llm"
)

// Fn is the function signature every tool implements. The returned value is
// serialized for the model: strings pass through, everything else is JSON
// encoded.
type Fn func(ctx context.Context, args map[string]interface{}) (interface{}, error)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Tool is one named capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON schema for the arguments object. Nil means any
	// object is accepted.
	Parameters map[string]interface{}

	fn     Fn
	schema *gojsonschema.Schema
}

// New builds a tool, compiling its parameter schema. The name must match
// [A-Za-z0-9_-]+.
func New(name, description string, parameters map[string]interface{}, fn Fn) (*Tool, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid tool name %q: must match %s", name, namePattern)
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %q: function cannot be nil", name)
	}

	t := &Tool{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		fn:          fn,
	}

	if parameters != nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(parameters))
		if err != nil {
			return nil, fmt.Errorf("tool %q: invalid parameter schema: %w", name, err)
		}
		t.schema = schema
	}

	return t, nil
}

// ValidateArgs checks args against the tool's schema.
func (t *Tool) ValidateArgs(args map[string]interface{}) error {
	if t.schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := t.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &llm.ValidationError{Tool: t.Name, Message: err.Error()}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return &llm.ValidationError{Tool: t.Name, Message: fmt.Sprintf("%v", msgs)}
	}
	return nil
}

// Execute validates args and runs the tool function. Failures come back as
// *llm.ValidationError or *llm.ToolExecutionError; a panic inside the
// function is captured as an execution error.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) (result interface{}, err error) {
	if err := t.ValidateArgs(args); err != nil {
		log.Error().Str("tool", t.Name).Err(err).Msg("Argument validation failed")
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("tool", t.Name).Interface("panic", r).Msg("Tool panicked")
			result = nil
			err = &llm.ToolExecutionError{Tool: t.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err := t.fn(ctx, args)
	if err != nil {
		var execErr *llm.ToolExecutionError
		if !errors.As(err, &execErr) {
			err = &llm.ToolExecutionError{Tool: t.Name, Err: err}
		}
		return nil, err
	}
	return out, nil
}

// Schema exports the wire-level descriptor sent to providers.
func (t *Tool) Schema() llm.ToolSchema {
	params := t.Parameters
	if params == nil {
		params = map[string]interface{}{"type": "object"}
	}
	return llm.ToolSchema{
		Type: "function",
		Function: llm.FunctionSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		},
	}
}

// ObjectSchema is a convenience builder for the common object-with-properties
// parameter shape.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
