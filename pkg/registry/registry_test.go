package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/protocol"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.Default())
}

func TestRegistry_RegisterAndDispatch(t *testing.T) {
	reg := newTestRegistry()

	err := reg.Register("echo", protocol.TaskHandlerFunc(
		func(_ context.Context, input protocol.TaskInput) (map[string]any, error) {
			return map[string]any{"echoed": input.Variables["message"]}, nil
		}))
	require.NoError(t, err)

	mutations, err := reg.Dispatch(t.Context(), "echo", protocol.TaskInput{
		Variables: map[string]any{"message": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", mutations["echoed"])
}

func TestRegistry_Dispatch_TaskNotFound(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.Dispatch(t.Context(), "missing", protocol.TaskInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := newTestRegistry()
	noop := protocol.TaskHandlerFunc(
		func(_ context.Context, _ protocol.TaskInput) (map[string]any, error) {
			return nil, nil
		})

	require.NoError(t, reg.Register("noop", noop))
	assert.Error(t, reg.Register("noop", noop))
}

func TestRegistry_Register_EmptyName(t *testing.T) {
	reg := newTestRegistry()

	err := reg.Register("", protocol.TaskHandlerFunc(
		func(_ context.Context, _ protocol.TaskInput) (map[string]any, error) {
			return nil, nil
		}))
	assert.Error(t, err)
}

func TestRegistry_Names(t *testing.T) {
	reg := newTestRegistry()
	noop := protocol.TaskHandlerFunc(
		func(_ context.Context, _ protocol.TaskInput) (map[string]any, error) {
			return nil, nil
		})

	require.NoError(t, reg.Register("b", noop))
	require.NoError(t, reg.Register("a", noop))

	assert.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestRegistry_HealthCheck(t *testing.T) {
	reg := newTestRegistry()

	_, ok := reg.HealthCheck()
	assert.False(t, ok)

	require.NoError(t, reg.Register("noop", protocol.TaskHandlerFunc(
		func(_ context.Context, _ protocol.TaskInput) (map[string]any, error) {
			return nil, nil
		})))

	_, ok = reg.HealthCheck()
	assert.True(t, ok)
}
