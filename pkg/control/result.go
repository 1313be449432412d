package control

import "fmt"

// Result is the outcome of one submitted command. Success is exactly the
// absence of Err; on failure Data holds the partial payload.
type Result struct {
	Data []byte
	Err  error
}

func succeeded(data []byte) Result { return Result{Data: data} }

func failed(data []byte, err error) Result {
	if data == nil {
		data = []byte{}
	}
	return Result{Data: data, Err: err}
}

func (r Result) Success() bool { return r.Err == nil }

func (r Result) String() string {
	if !r.Success() {
		return fmt.Sprintf("Result FAIL: %d bytes: %v -> %v", len(r.Data), head(r.Data), r.Err)
	}
	return fmt.Sprintf("Result SUCCESS: %d bytes: %v", len(r.Data), head(r.Data))
}
