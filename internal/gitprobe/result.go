package gitprobe

// Outcome classifies how a probe finished.
type Outcome int

// Probe outcomes. OK carries a value, Absent means the queried condition
// legitimately does not apply (e.g. no upstream configured), Errored means
// the probe failed unexpectedly (non-zero exit, timeout, bad output shape).
const (
	OK Outcome = iota
	Absent
	Errored
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Absent:
		return "absent"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// Result is the tagged outcome of a single probe. The invalid combination
// "value present but errored" is unrepresentable: the value is only
// reachable through Value, which reports false for Absent and Errored.
type Result[T any] struct {
	value   T
	outcome Outcome
}

// Ok returns a successful Result carrying v.
func Ok[T any](v T) Result[T] { return Result[T]{value: v, outcome: OK} }

// AbsentResult returns a soft-absence Result.
func AbsentResult[T any]() Result[T] { return Result[T]{outcome: Absent} }

// ErroredResult returns a hard-error Result.
func ErroredResult[T any]() Result[T] { return Result[T]{outcome: Errored} }

// Value returns the probed value and whether one is present.
func (r Result[T]) Value() (T, bool) {
	if r.outcome != OK {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Outcome returns the result classification.
func (r Result[T]) Outcome() Outcome { return r.outcome }

// Errored reports whether the probe hit a hard error.
func (r Result[T]) Errored() bool { return r.outcome == Errored }
