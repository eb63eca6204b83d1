package web

// StartExecutionRequest kicks off a new execution of a loaded process.
type StartExecutionRequest struct {
	ProcessName string         `json:"process_name" validate:"required,min=1"`
	Variables   map[string]any `json:"variables"`
}

// ResumeExecutionRequest feeds external input into a suspended execution.
type ResumeExecutionRequest struct {
	Input map[string]any `json:"input"`
}

// AbortExecutionRequest cancels a running execution.
type AbortExecutionRequest struct {
	Reason string `json:"reason"`
}
