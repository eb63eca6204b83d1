// Package transform provides the builtin data transformation task handler.
package transform

import (
	"context"
	"fmt"

	"github.com/regenera-io/regenera/pkg/protocol"
	"github.com/regenera-io/regenera/pkg/template"
)

const TaskName = "transform"

// Handler evaluates a template expression over the variable bag and stores
// the coerced result under the configured output variable.
type Handler struct{}

func New() *Handler {
	return &Handler{}
}

func (h *Handler) Execute(_ context.Context, input protocol.TaskInput) (map[string]any, error) {
	expression, _ := input.Config["expression"].(string)
	if expression == "" {
		return nil, fmt.Errorf("transform task requires an expression")
	}

	result, err := template.RenderWithInput(expression, input)
	if err != nil {
		return nil, err
	}

	output, _ := input.Config["output"].(string)
	if output == "" {
		output = "transform_result"
	}

	return map[string]any{output: result}, nil
}
