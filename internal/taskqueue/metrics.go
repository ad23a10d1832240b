package taskqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSettled = "settled"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
	outcomeCleared = "cleared"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orbit",
		Subsystem: "taskqueue",
		Name:      "tasks_total",
		Help:      "Tasks that left the queue, by outcome.",
	}, []string{"queue", "outcome"})

	pendingTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "orbit",
		Subsystem: "taskqueue",
		Name:      "pending_tasks",
		Help:      "Tasks currently queued, including the one being performed.",
	}, []string{"queue"})

	performDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orbit",
		Subsystem: "taskqueue",
		Name:      "perform_duration_seconds",
		Help:      "Time spent in the performer per task.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"queue"})
)
