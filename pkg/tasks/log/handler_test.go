package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/protocol"
)

func TestExecuteRendersMessage(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := New()

	mutations, err := handler.Execute(t.Context(), protocol.TaskInput{
		ExecutionID: "exec-1",
		NodeID:      "announce",
		Variables:   map[string]any{"customer": "acme"},
		Config:      map[string]any{"message": "serving {{.vars.customer}}"},
		Logger:      logger,
	})
	require.NoError(t, err)
	assert.Nil(t, mutations)
	assert.Contains(t, buf.String(), "serving acme")
	assert.Contains(t, buf.String(), "announce")
}

func TestExecuteHonorsLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := New()

	_, err := handler.Execute(t.Context(), protocol.TaskInput{
		Config: map[string]any{"message": "disk almost full", "level": "warn"},
		Logger: logger,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
}
