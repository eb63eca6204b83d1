// Package template renders node configuration strings against the
// execution's variable bag.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/regenera-io/regenera/pkg/protocol"
)

// RenderWithInput renders against the standard task context: the variable
// bag (as both .variables and .vars), execution identity, and environment.
func RenderWithInput(input string, task protocol.TaskInput) (any, error) {
	data := map[string]any{
		"variables": task.Variables,
		"vars":      task.Variables,
		"env":       envVars(),
		"execution": map[string]any{
			"id":      task.ExecutionID,
			"process": task.ProcessName,
			"node":    task.NodeID,
		},
	}

	return Render(input, data)
}

// Render executes the template and coerces the output: JSON objects and
// arrays are decoded, then numbers, then booleans, otherwise the raw string
// is returned.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("node_config").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", templateStr, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %q: %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var decoded any
		if err := json.Unmarshal([]byte(result), &decoded); err == nil {
			return decoded, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderString is Render without output coercion.
func RenderString(templateStr string, data any) (string, error) {
	rendered, err := Render(templateStr, data)
	if err != nil {
		return "", err
	}

	if s, ok := rendered.(string); ok {
		return s, nil
	}

	encoded, err := json.Marshal(rendered)
	if err != nil {
		return "", fmt.Errorf("failed to encode rendered value: %w", err)
	}

	return string(encoded), nil
}

func envVars() map[string]any {
	vars := make(map[string]any)

	for _, env := range os.Environ() {
		if key, value, ok := strings.Cut(env, "="); ok {
			vars[key] = value
		}
	}

	return vars
}
