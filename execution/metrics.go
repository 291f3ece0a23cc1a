package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome labels.
const (
	outcomeCompleted    = "completed"
	outcomeFailed       = "failed"
	outcomeTaskNotFound = "task_not_found"
)

var (
	metricExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pressdesk",
		Name:      "executions_total",
		Help:      "Task executions reaching a terminal state, by outcome.",
	}, []string{"outcome"})

	metricRefinements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pressdesk",
		Name:      "refinements_total",
		Help:      "Refinement attempts, by outcome.",
	}, []string{"outcome"})
)
