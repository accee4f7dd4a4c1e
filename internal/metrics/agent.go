package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ragsystem"

var (
	agentProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "requests_processed_total",
			Help:      "agent 处理请求总数。",
		},
		[]string{"agent"},
	)

	agentFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "requests_failed_total",
			Help:      "agent 处理失败（含未实现）的请求总数。",
		},
		[]string{"agent"},
	)

	agentInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "requests_in_progress",
			Help:      "当前正在处理的 agent 请求数量。",
		},
		[]string{"agent"},
	)

	agentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "request_duration_seconds",
			Help:      "agent 处理耗时分布（秒）。",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"agent"},
	)
)

// TrackAgent 记录一次 agent 调用的开始，返回的函数在调用结束时上报结果。
func TrackAgent(name string) func(success bool) {
	start := time.Now()
	agentInProgress.WithLabelValues(name).Inc()

	return func(success bool) {
		agentInProgress.WithLabelValues(name).Dec()
		agentDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		agentProcessedTotal.WithLabelValues(name).Inc()
		if !success {
			agentFailedTotal.WithLabelValues(name).Inc()
		}
	}
}
