package transform

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/protocol"
)

func TestExecuteStoresResult(t *testing.T) {
	handler := New()

	mutations, err := handler.Execute(t.Context(), protocol.TaskInput{
		Variables: map[string]any{"first": "Ada", "last": "Lovelace"},
		Config: map[string]any{
			"expression": "{{.vars.first}} {{.vars.last}}",
			"output":     "full_name",
		},
		Logger: slog.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", mutations["full_name"])
}

func TestExecuteDefaultOutputVariable(t *testing.T) {
	handler := New()

	mutations, err := handler.Execute(t.Context(), protocol.TaskInput{
		Variables: map[string]any{"count": 2},
		Config:    map[string]any{"expression": "{{.vars.count}}"},
		Logger:    slog.Default(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, mutations["transform_result"])
}

func TestExecuteRequiresExpression(t *testing.T) {
	handler := New()

	_, err := handler.Execute(t.Context(), protocol.TaskInput{Config: map[string]any{}})
	assert.Error(t, err)
}
