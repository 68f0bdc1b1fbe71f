package classify

import "fmt"

// Status is the outcome code of a single classification call.
type Status uint8

// Status values.
const (
	// StatusOK means the classification itself succeeded, whatever the
	// decision was.
	StatusOK Status = iota

	// StatusNotInitialized means the service or an engine was not ready to
	// classify.
	StatusNotInitialized

	// StatusInvalidArg means the request snapshot was malformed or
	// incomplete.
	StatusInvalidArg
)

// type check
var _ fmt.Stringer = StatusOK

// String implements the [fmt.Stringer] interface for Status.
func (s Status) String() (str string) {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotInitialized:
		return "not_initialized"
	case StatusInvalidArg:
		return "invalid_arg"
	default:
		return fmt.Sprintf("!bad_status_%d", s)
	}
}

// Result is the decision of one classification call.  The zero value is
// a successful result with no decision.  Intermediate accumulation happens on
// a local value; a Result is never mutated after being returned to a caller.
type Result struct {
	status    Status
	matched   bool
	exception bool
	important bool
}

// newResult returns a failed result with the given non-ok status.
func newResult(status Status) (r Result) {
	return Result{
		status: status,
	}
}

// Status returns the outcome code of the classification call.
func (r Result) Status() (s Status) {
	return r.status
}

// OK is true if the classification call itself succeeded.
func (r Result) OK() (ok bool) {
	return r.status == StatusOK
}

// Matched is true if the classification succeeded and some rule matched the
// request, even if an exception later defeated the match.
func (r Result) Matched() (ok bool) {
	return r.OK() && r.matched
}

// Hit is true if the classification succeeded, some rule matched, and no
// exception defeated the match.  A hit is what callers act on.
func (r Result) Hit() (ok bool) {
	return r.OK() && r.matched && !r.exception
}

// Exception is true if the classification succeeded and an allow-listing rule
// defeated the match.
func (r Result) Exception() (ok bool) {
	return r.OK() && r.exception
}

// Important is true if the classification succeeded and the decision is
// locked in, so contributions of further engines must be ignored.
func (r Result) Important() (ok bool) {
	return r.OK() && r.important
}

// Accumulate folds other into r.  Failed sub-results never contribute.  Once
// an important decision has been accumulated, further sub-results are
// ignored.  A sub-result that neither matched nor hit an exception leaves r
// unchanged.
func (r *Result) Accumulate(other Result) {
	if other.status != StatusOK || r.important {
		return
	}

	if other.matched || other.exception {
		r.matched = other.matched
		r.exception = other.exception
		r.important = other.important
	}
}
