package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrail(t *testing.T) {
	t.Run("should write one JSON line per event", func(t *testing.T) {
		var buf bytes.Buffer
		trail := NewTrail(&buf)

		trail.Record(context.Background(), AuditEvent{
			Type:   "tool",
			Actor:  "run-1",
			Action: "execute:current_time",
			Status: "success",
		})
		trail.Record(context.Background(), AuditEvent{
			Type:     "agent",
			Actor:    "run-1",
			Action:   "run",
			Status:   "failure",
			Metadata: map[string]interface{}{"iterations": 3},
		})

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.Len(t, lines, 2)

		var first map[string]interface{}
		require.NoError(t, json.Unmarshal(lines[0], &first))
		assert.Equal(t, "tool", first["type"])
		assert.Equal(t, "run-1", first["actor"])
		assert.Equal(t, "execute:current_time", first["action"])
		assert.Equal(t, "success", first["status"])
		assert.NotEmpty(t, first["time"])
		assert.NotContains(t, first, "metadata")

		var second map[string]interface{}
		require.NoError(t, json.Unmarshal(lines[1], &second))
		assert.Equal(t, "failure", second["status"])
		metadata, ok := second["metadata"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(3), metadata["iterations"])
	})

	t.Run("should append to the trail file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.jsonl")

		trail, err := OpenTrail(path)
		require.NoError(t, err)
		t.Cleanup(func() {
			trail.Close()
			trailMu.Lock()
			defaultTrail = nil
			trailMu.Unlock()
		})

		RecordToolAudit(context.Background(), "calculate", "run-2", "success", nil)
		RecordRunAudit(context.Background(), "run-2", "completed", map[string]interface{}{"iterations": 1})

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "execute:calculate")
		assert.Contains(t, string(raw), `"actor":"run-2"`)
		assert.Contains(t, string(raw), `"action":"run"`)
	})

	t.Run("should tolerate recording without an open trail", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordRunAudit(context.Background(), "run-3", "completed", nil)
		})
	})
}
