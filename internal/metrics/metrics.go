// Package metrics exposes task engine metrics in the Prometheus format.
// The Collector consumes task events and samples admission and task-state
// gauges on every scrape.
package metrics

import (
	"context"
	"net/http"

	"github.com/phrazzld/carbonstats/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carbonstats"

// AdmissionStats is the read side of the admission controller.
type AdmissionStats interface {
	InFlight() int
	Capacity() int
}

// TaskCounter reports the number of tasks per status.
type TaskCounter interface {
	StatusCounts() map[string]int
}

// TaskCounterFunc adapts a function to TaskCounter.
type TaskCounterFunc func() map[string]int

// StatusCounts calls f.
func (f TaskCounterFunc) StatusCounts() map[string]int { return f() }

// Collector holds the service's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	tasksCreated   prometheus.Counter
	tasksRejected  prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    *prometheus.CounterVec
	stageChanges   prometheus.Counter
	taskDuration   *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them, together with
// scrape-time gauges for admission and task state.
func NewCollector(admission AdmissionStats, tasks TaskCounter) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Total number of admitted submissions",
		}),
		tasksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of submissions rejected as overloaded",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks completed successfully",
		}),
		tasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Total number of failed tasks by error kind",
		}, []string{"kind"}),
		stageChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_stage_transitions_total",
			Help:      "Total number of pipeline stages entered",
		}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from task creation to its terminal state",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"status"}),
	}

	c.registry.MustRegister(
		c.tasksCreated,
		c.tasksRejected,
		c.tasksCompleted,
		c.tasksFailed,
		c.stageChanges,
		c.taskDuration,
		collectors.NewGoCollector(),
	)

	if admission != nil {
		c.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "admission_in_flight",
				Help:      "Pipeline executions currently holding an admission slot",
			}, func() float64 { return float64(admission.InFlight()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "admission_capacity",
				Help:      "Maximum number of concurrent pipeline executions",
			}, func() float64 { return float64(admission.Capacity()) }),
		)
	}
	if tasks != nil {
		c.registry.MustRegister(&taskStateCollector{
			counts: tasks,
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", "tasks"),
				"Number of tasks known to the manager by status",
				[]string{"status"}, nil,
			),
		})
	}

	return c
}

// HandleEvent implements events.EventHandler.
func (c *Collector) HandleEvent(_ context.Context, event *events.TaskEvent) error {
	switch event.Type {
	case events.TaskCreated:
		c.tasksCreated.Inc()
	case events.TaskRejected:
		c.tasksRejected.Inc()
	case events.TaskStage:
		c.stageChanges.Inc()
	case events.TaskCompleted:
		c.tasksCompleted.Inc()
		c.taskDuration.WithLabelValues("completed").Observe(event.Elapsed.Seconds())
	case events.TaskFailed:
		c.tasksFailed.WithLabelValues(event.ErrorKind).Inc()
		c.taskDuration.WithLabelValues("failed").Observe(event.Elapsed.Seconds())
	}
	return nil
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// taskStateCollector samples task counts on every scrape.
type taskStateCollector struct {
	counts TaskCounter
	desc   *prometheus.Desc
}

func (t *taskStateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- t.desc
}

func (t *taskStateCollector) Collect(ch chan<- prometheus.Metric) {
	for status, n := range t.counts.StatusCounts() {
		ch <- prometheus.MustNewConstMetric(t.desc, prometheus.GaugeValue, float64(n), status)
	}
}
