package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs partitioned by workflow and outcome code.",
	}, []string{"workflow", "outcome"})

	pipelineLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end pipeline duration in seconds.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"workflow"})

	swapStates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swap_executions_total",
		Help:      "Swap executions partitioned by terminal state.",
	}, []string{"state"})

	resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "name_resolutions_total",
		Help:      "Name resolution attempts partitioned by outcome.",
	}, []string{"outcome"})

	jobEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Message jobs partitioned by lifecycle event.",
	}, []string{"event"})
)

// ObservePipeline 记录一次流水线执行，outcome 为 ok 或错误码。
func ObservePipeline(workflow, outcome string, duration time.Duration) {
	pipelineRuns.WithLabelValues(workflow, outcome).Inc()
	pipelineLatency.WithLabelValues(workflow).Observe(duration.Seconds())
}

// ObserveSwapState 记录兑换执行的终态。
func ObserveSwapState(state string) {
	swapStates.WithLabelValues(state).Inc()
}

// ObserveResolution 记录一次域名解析结果。
func ObserveResolution(outcome string) {
	resolutions.WithLabelValues(outcome).Inc()
}

// ObserveJob 记录任务生命周期事件（submitted、succeeded、failed）。
func ObserveJob(event string) {
	jobEvents.WithLabelValues(event).Inc()
}
