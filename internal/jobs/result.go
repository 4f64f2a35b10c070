package jobs

import "fmt"

// Result is the outcome of one job: either a value or the error that
// prevented it. Callers must check OK before using Value.
type Result struct {
	Key   string
	Value float64
	Err   error
}

// Success returns a successful result.
func Success(key string, v float64) Result {
	return Result{Key: key, Value: v}
}

// Failure returns a failed result.
func Failure(key string, err error) Result {
	if err == nil {
		err = fmt.Errorf("job %s failed without error", key)
	}
	return Result{Key: key, Err: err}
}

// OK reports whether the job produced a value.
func (r Result) OK() bool {
	return r.Err == nil
}

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("%s=%v", r.Key, r.Value)
	}
	return fmt.Sprintf("%s: %v", r.Key, r.Err)
}
