package classify

import "context"

// Mode distinguishes the two decision paths of the service.
type Mode string

// Mode values.
const (
	// ModeCancel is the blocking decision path.
	ModeCancel Mode = "cancel"

	// ModeAnnotate is the flag-but-allow decision path.
	ModeAnnotate Mode = "annotate"
)

// Metrics is an interface for collecting classification statistics.
type Metrics interface {
	// ObserveListUpdate records the outcome of loading and compiling one
	// filter list.  rulesCount is zero when err is not nil.
	ObserveListUpdate(ctx context.Context, listURL string, rulesCount int, err error)

	// ObserveClassification records the result of one classification call on
	// the given decision path.
	ObserveClassification(ctx context.Context, mode Mode, res Result)
}

// EmptyMetrics is a [Metrics] implementation that does nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveListUpdate implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveListUpdate(_ context.Context, _ string, _ int, _ error) {}

// ObserveClassification implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveClassification(_ context.Context, _ Mode, _ Result) {}
