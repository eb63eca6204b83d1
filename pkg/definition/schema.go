package definition

// documentSchema is the JSON schema every process definition document must
// satisfy before structural validation runs.
var documentSchema = map[string]any{
	"type":     "object",
	"required": []any{"name", "nodes"},
	"properties": map[string]any{
		"name": map[string]any{
			"type":      "string",
			"minLength": 1,
		},
		"description": map[string]any{
			"type": "string",
		},
		"version": map[string]any{
			"type": "string",
		},
		"nodes": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "kind"},
				"properties": map[string]any{
					"id":   map[string]any{"type": "string", "minLength": 1},
					"kind": map[string]any{
						"type": "string",
						"enum": []any{
							"task",
							"exclusive_gateway",
							"parallel_gateway",
							"timer_event",
							"boundary_event",
							"start_event",
							"end_event",
						},
					},
					"name":        map[string]any{"type": "string"},
					"task_name":   map[string]any{"type": "string"},
					"timeout":     map[string]any{"type": "string"},
					"duration":    map[string]any{"type": "string"},
					"attached_to": map[string]any{"type": "string"},
					"config":      map[string]any{"type": "object"},
				},
			},
		},
		"edges": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "from", "to"},
				"properties": map[string]any{
					"id":      map[string]any{"type": "string", "minLength": 1},
					"from":    map[string]any{"type": "string", "minLength": 1},
					"to":      map[string]any{"type": "string", "minLength": 1},
					"guard":   map[string]any{"type": "string"},
					"default": map[string]any{"type": "boolean"},
				},
			},
		},
	},
}
