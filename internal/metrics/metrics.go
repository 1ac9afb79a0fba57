// Package metrics регистрирует счётчики prometheus для исходов
// асинхронных задач и отправленных в ESP сообщений.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TaskRuns считает исходы запусков задач по имени.
	TaskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_task_runs_total",
			Help: "Total number of task runs by outcome",
		},
		[]string{"task", "result"},
	)

	// MessagesSent считает обращения к ESP за отправкой сообщений.
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_messages_sent_total",
			Help: "Total number of trigger-send calls by outcome",
		},
		[]string{"result"},
	)
)

// Возможные значения метки result для TaskRuns.
const (
	ResultSuccess = "success"
	ResultRetry   = "retry"
	ResultFailure = "failure"
)

func init() {
	prometheus.MustRegister(TaskRuns)
	prometheus.MustRegister(MessagesSent)
}
