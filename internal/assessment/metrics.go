package assessment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "learncheck",
		Subsystem: "assessment",
		Name:      "request_outcomes_total",
		Help:      "Assessment requests by orchestrator decision.",
	},
	[]string{"outcome"},
)
