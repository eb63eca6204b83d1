package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardInterpreter_Evaluate(t *testing.T) {
	variables := map[string]any{
		"attempts":  float64(2),
		"approved":  true,
		"tier":      "gold",
		"remaining": 0,
	}

	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{"empty expression is true", "", true},
		{"boolean literal true", "true", true},
		{"boolean literal false", "false", false},
		{"bare variable truthy", "approved", true},
		{"bare variable zero is false", "remaining", false},
		{"missing variable is false", "unknown", false},
		{"negation", "!approved", false},
		{"numeric less than", "attempts < 3", true},
		{"numeric greater or equal", "attempts >= 3", false},
		{"numeric equality", "attempts == 2", true},
		{"string equality", `tier == "gold"`, true},
		{"string inequality", `tier != "silver"`, true},
		{"literal comparison", "1 < 2", true},
		{"loop-back counter bound", "attempts < 1", false},
		{"one literal is numeric not boolean", "attempts >= 1", true},
		{"bare one literal is truthy", "1", true},
		{"bare zero literal is false", "0", false},
	}

	interpreter := GuardInterpreter{}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := interpreter.Evaluate(tt.expression, variables)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGuardInterpreter_Evaluate_OrderedComparisonOnStrings(t *testing.T) {
	interpreter := GuardInterpreter{}

	_, err := interpreter.Evaluate(`tier < "gold"`, map[string]any{"tier": "silver"})
	assert.Error(t, err)
}

func TestExecutionContext_SnapshotVariables(t *testing.T) {
	execution := &ExecutionContext{Variables: map[string]any{"a": 1}}

	snapshot := execution.SnapshotVariables()
	snapshot["a"] = 99
	snapshot["b"] = 2

	assert.Equal(t, 1, execution.Variables["a"])
	assert.NotContains(t, execution.Variables, "b")
}

func TestExecutionContext_ApplyMutations(t *testing.T) {
	execution := &ExecutionContext{}

	execution.ApplyMutations(map[string]any{"a": 1})
	execution.ApplyMutations(map[string]any{"a": 2, "b": "x"})

	assert.Equal(t, 2, execution.Variables["a"])
	assert.Equal(t, "x", execution.Variables["b"])
}

func TestExecutionStatus_Terminal(t *testing.T) {
	assert.True(t, ExecutionStatusCompleted.Terminal())
	assert.True(t, ExecutionStatusFailed.Terminal())
	assert.True(t, ExecutionStatusAborted.Terminal())
	assert.False(t, ExecutionStatusRunning.Terminal())
	assert.False(t, ExecutionStatusAwaitingInput.Terminal())
}
