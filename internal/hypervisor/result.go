package hypervisor

import "errors"

// Outcome classifies a lookup.
type Outcome int

const (
	Found Outcome = iota
	NotFound
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	default:
		return "failed"
	}
}

// Result is a typed lookup result. Handle is only meaningful when Outcome is
// Found, Err only when it is NotFound or Failed.
type Result[H any] struct {
	Handle  H
	Outcome Outcome
	Err     error
}

// Classify turns a (handle, error) pair from a Conn or Pool lookup into a Result.
func Classify[H any](h H, err error) Result[H] {
	switch {
	case err == nil:
		return Result[H]{Handle: h, Outcome: Found}
	case errors.Is(err, ErrNotFound):
		return Result[H]{Outcome: NotFound, Err: err}
	default:
		return Result[H]{Outcome: Failed, Err: err}
	}
}

// Ok reports whether the lookup found the object.
func (r Result[H]) Ok() bool {
	return r.Outcome == Found
}
