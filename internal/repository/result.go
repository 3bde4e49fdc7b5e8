package repository

// Result is the outcome of a repository operation. Failures carry a human readable
// Message and the underlying error; the payload is the zero value.
type Result[T any] struct {
	Success bool   `json:"result"`
	Message string `json:"message"`
	Payload T      `json:"payload"`

	err error
}

func ok[T any](message string, payload T) Result[T] {
	return Result[T]{Success: true, Message: message, Payload: payload}
}

func fail[T any](message string, err error) Result[T] {
	return Result[T]{Success: false, Message: message, err: err}
}

// Err returns the error behind a failed result, or nil on success.
func (r Result[T]) Err() error {
	return r.err
}
