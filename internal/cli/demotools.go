package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/harun/loom/pkg/tool"
)

// demoRegistry builds the registry of built-in tools offered to agent runs.
func demoRegistry() (*tool.Registry, error) {
	registry, err := tool.NewRegistry()
	if err != nil {
		return nil, err
	}

	builders := []func() (*tool.Tool, error){
		currentTimeTool,
		calculateTool,
	}
	for _, build := range builders {
		t, err := build()
		if err != nil {
			return nil, err
		}
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", t.Name, err)
		}
	}
	return registry, nil
}

func currentTimeTool() (*tool.Tool, error) {
	params := tool.ObjectSchema(map[string]interface{}{
		"timezone": map[string]interface{}{
			"type":        "string",
			"description": "IANA timezone name (default UTC)",
		},
		"format": map[string]interface{}{
			"type":        "string",
			"description": "rfc3339, unix or kitchen (default rfc3339)",
		},
	})

	return tool.New("current_time", "Report the current date and time.", params,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			loc := time.UTC
			if name, ok := args["timezone"].(string); ok && name != "" {
				parsed, err := time.LoadLocation(name)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", name)
				}
				loc = parsed
			}
			now := time.Now().In(loc)

			format, _ := args["format"].(string)
			var rendered string
			switch format {
			case "", "rfc3339":
				rendered = now.Format(time.RFC3339)
			case "unix":
				rendered = strconv.FormatInt(now.Unix(), 10)
			case "kitchen":
				rendered = now.Format(time.Kitchen)
			default:
				return nil, fmt.Errorf("unknown format %q", format)
			}

			return map[string]interface{}{
				"time":     rendered,
				"timezone": loc.String(),
			}, nil
		})
}

func calculateTool() (*tool.Tool, error) {
	params := tool.ObjectSchema(map[string]interface{}{
		"expression": map[string]interface{}{
			"type":        "string",
			"description": "Arithmetic expression, e.g. (2+3)*4",
		},
	}, "expression")

	return tool.New("calculate", "Evaluate a basic arithmetic expression.", params,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			expr, _ := args["expression"].(string)
			value, err := evalExpression(expr)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"expression": expr,
				"value":      value,
			}, nil
		})
}

// evalExpression evaluates +, -, *, / with parentheses and unary minus over
// float64 values.
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() (byte, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *exprParser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '+' && c != '-') {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if c == '+' {
			value += rhs
		} else {
			value -= rhs
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '*' && c != '/') {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if c == '*' {
			value *= rhs
		} else {
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			value /= rhs
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	if c == '-' {
		p.pos++
		value, err := p.parseFactor()
		return -value, err
	}
	if c == '(' {
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if c, ok := p.peek(); !ok || c != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected a number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}
