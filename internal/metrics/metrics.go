package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for booking flows and the
// background reminder worker.
type SchedulingMetrics struct {
	operationsTotal *prometheus.CounterVec
	conflictsTotal  *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	conflictPairs   prometheus.Gauge
	expiringClients prometheus.Gauge
	remindersTotal  *prometheus.CounterVec
	snapshotReloads *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Appointment operations by outcome",
		}, []string{"operation", "result"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "conflicts_total",
			Help:      "Rejected bookings by conflict type and detection layer",
		}, []string{"type", "source"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "operation_latency_seconds",
			Help:      "Latency of appointment operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		conflictPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "conflict_pairs",
			Help:      "Overlapping appointment pairs in the latest snapshot",
		}),
		expiringClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "clients",
			Name:      "expiring",
			Help:      "Clients whose membership ends within the reminder window",
		}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "clients",
			Name:      "reminders_total",
			Help:      "Membership reminder emails by outcome",
		}, []string{"result"}),
		snapshotReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "snapshot",
			Name:      "reloads_total",
			Help:      "Snapshot reloads by outcome",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.conflictsTotal, m.latency, m.conflictPairs,
		m.expiringClients, m.remindersTotal, m.snapshotReloads)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation, result string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, result).Inc()
	m.latency.WithLabelValues(operation).Observe(seconds)
}

// ObserveConflict counts a rejected booking. source is "detector" when the
// pre-check caught it and "constraint" when the store did.
func (m *SchedulingMetrics) ObserveConflict(conflictType, source string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(conflictType, source).Inc()
}

func (m *SchedulingMetrics) SetConflictPairs(n int) {
	if m == nil {
		return
	}
	m.conflictPairs.Set(float64(n))
}

func (m *SchedulingMetrics) SetExpiringClients(n int) {
	if m == nil {
		return
	}
	m.expiringClients.Set(float64(n))
}

func (m *SchedulingMetrics) ObserveReminders(sent, failed int) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues("sent").Add(float64(sent))
	m.remindersTotal.WithLabelValues("failed").Add(float64(failed))
}

func (m *SchedulingMetrics) ObserveSnapshotReload(result string) {
	if m == nil {
		return
	}
	m.snapshotReloads.WithLabelValues(result).Inc()
}
