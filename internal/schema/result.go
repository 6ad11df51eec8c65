package schema

// Result is the uniform envelope every tool invocation resolves to.
// Exactly one of Data / Err is set.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Err     *Error         `json:"error,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Fail wraps a typed error in a failed Result.
func Fail(err *Error) Result {
	return Result{Success: false, Err: err}
}

// ExecuteRequest is one entry of an executeBatch call.
type ExecuteRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}
