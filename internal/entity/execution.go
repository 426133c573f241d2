package entity

// ExecutionResult is the outcome of one run-code submission. Not persisted;
// only the most recent result is held client-side.
type ExecutionResult struct {
	Output          string `json:"output"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}
