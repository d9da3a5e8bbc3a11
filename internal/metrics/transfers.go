package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transfer demand gauges, sampled by the clock's log-metrics loop.
var (
	PendingTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transferd_pending_transfers",
		Help: "Number of transfers waiting to be claimed",
	})

	InProgressTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transferd_in_progress_transfers",
		Help: "Number of transfers currently claimed by a worker",
	})

	WorkerAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transferd_worker_adjustments_total",
		Help: "Worker launches and terminations requested by the pool controller",
	}, []string{"direction"})

	ScheduledTransfersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transferd_scheduled_transfers_created_total",
		Help: "Transfers created by the schedule pipeline",
	})

	ScheduleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transferd_schedule_failures_total",
		Help: "Per-schedule processing failures during resolution passes",
	})
)
