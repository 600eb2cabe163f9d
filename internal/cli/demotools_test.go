package cli

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/loom/pkg/llm"
)

func TestDemoRegistry(t *testing.T) {
	registry, err := demoRegistry()
	require.NoError(t, err)

	assert.Equal(t, 2, registry.Len())
	assert.Contains(t, registry.Names(), "current_time")
	assert.Contains(t, registry.Names(), "calculate")
}

func TestCurrentTimeTool(t *testing.T) {
	tl, err := currentTimeTool()
	require.NoError(t, err)

	t.Run("should default to UTC rfc3339", func(t *testing.T) {
		out, err := tl.Execute(context.Background(), map[string]interface{}{})
		require.NoError(t, err)

		result := out.(map[string]interface{})
		assert.Equal(t, "UTC", result["timezone"])
		_, err = time.Parse(time.RFC3339, result["time"].(string))
		assert.NoError(t, err)
	})

	t.Run("should render unix seconds", func(t *testing.T) {
		out, err := tl.Execute(context.Background(), map[string]interface{}{"format": "unix"})
		require.NoError(t, err)

		result := out.(map[string]interface{})
		_, err = strconv.ParseInt(result["time"].(string), 10, 64)
		assert.NoError(t, err)
	})

	t.Run("should reject an unknown timezone", func(t *testing.T) {
		_, err := tl.Execute(context.Background(), map[string]interface{}{"timezone": "Mars/Olympus"})
		require.Error(t, err)
	})

	t.Run("should reject an unknown format", func(t *testing.T) {
		_, err := tl.Execute(context.Background(), map[string]interface{}{"format": "stardate"})
		require.Error(t, err)
	})
}

func TestCalculateTool(t *testing.T) {
	tl, err := calculateTool()
	require.NoError(t, err)

	t.Run("should evaluate an expression", func(t *testing.T) {
		out, err := tl.Execute(context.Background(), map[string]interface{}{"expression": "(2+3)*4"})
		require.NoError(t, err)

		result := out.(map[string]interface{})
		assert.InDelta(t, 20.0, result["value"], 1e-9)
	})

	t.Run("should require the expression argument", func(t *testing.T) {
		_, err := tl.Execute(context.Background(), map[string]interface{}{})
		require.Error(t, err)

		var verr *llm.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("should surface division by zero", func(t *testing.T) {
		_, err := tl.Execute(context.Background(), map[string]interface{}{"expression": "1/0"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "division by zero")
	})
}

func TestEvalExpression(t *testing.T) {
	t.Run("should evaluate arithmetic", func(t *testing.T) {
		cases := []struct {
			expr string
			want float64
		}{
			{"2+3", 5},
			{"2+3*4", 14},
			{"(2+3)*4", 20},
			{"-5+3", -2},
			{"10/4", 2.5},
			{" 1.5 * 2 ", 3},
			{"2*(3-(1+1))", 2},
			{"--4", 4},
		}
		for _, tc := range cases {
			got, err := evalExpression(tc.expr)
			require.NoError(t, err, tc.expr)
			assert.InDelta(t, tc.want, got, 1e-9, tc.expr)
		}
	})

	t.Run("should reject malformed expressions", func(t *testing.T) {
		for _, expr := range []string{"", "2+", "(2+3", "2//3", "abc", "1..2"} {
			_, err := evalExpression(expr)
			assert.Error(t, err, expr)
		}
	})
}
