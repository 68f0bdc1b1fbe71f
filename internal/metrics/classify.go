package metrics

import (
	"context"

	"github.com/contentshield/contentshield/internal/classify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// listRulesTotal is a gauge with the number of rules loaded by each
	// filter list.
	listRulesTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "list_rules_total",
		Subsystem: subsystemClassify,
		Namespace: namespace,
		Help:      "The number of rules loaded by filter lists.",
	}, []string{"list"})

	// listUpdatedTime is a gauge with the last time when each filter list
	// was updated.
	listUpdatedTime = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "list_updated_time",
		Subsystem: subsystemClassify,
		Namespace: namespace,
		Help:      "Time when the filter list was last time updated.",
	}, []string{"list"})

	// listUpdateStatus is a gauge with the status of the last update of each
	// filter list.  "0" means error, "1" means success.
	listUpdateStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "list_update_status",
		Subsystem: subsystemClassify,
		Namespace: namespace,
		Help:      "Status of the filter list update. 1 means success.",
	}, []string{"list"})

	// resultsTotal is a counter with the total number of classification
	// calls partitioned by decision path and outcome.
	resultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "results_total",
		Subsystem: subsystemClassify,
		Namespace: namespace,
		Help:      "Total number of classification results by mode and outcome.",
	}, []string{"mode", "result"})
)

// Classify is the prometheus-based implementation of the [classify.Metrics]
// interface.
type Classify struct{}

// type check
var _ classify.Metrics = Classify{}

// ObserveListUpdate implements the [classify.Metrics] interface for
// Classify.
func (Classify) ObserveListUpdate(
	_ context.Context,
	listURL string,
	rulesCount int,
	err error,
) {
	SetStatusGauge(listUpdateStatus.WithLabelValues(listURL), err)
	if err != nil {
		return
	}

	listRulesTotal.WithLabelValues(listURL).Set(float64(rulesCount))
	listUpdatedTime.WithLabelValues(listURL).SetToCurrentTime()
}

// ObserveClassification implements the [classify.Metrics] interface for
// Classify.
func (Classify) ObserveClassification(_ context.Context, mode classify.Mode, res classify.Result) {
	resultsTotal.WithLabelValues(string(mode), resultLabel(res)).Inc()
}

// resultLabel converts a classification result into a metrics label value.
func resultLabel(res classify.Result) (label string) {
	switch {
	case !res.OK():
		return "error"
	case res.Hit():
		return "hit"
	case res.Exception():
		return "exception"
	default:
		return "none"
	}
}
