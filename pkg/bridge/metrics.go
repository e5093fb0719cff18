package bridge

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushbridge",
			Subsystem: "transport",
			Name:      "events_total",
			Help:      "Transport lifecycle events per bridge.",
		},
		[]string{"bridge", "event"},
	)
	inboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushbridge",
			Subsystem: "router",
			Name:      "messages_total",
			Help:      "Inbound envelopes by type and outcome.",
		},
		[]string{"bridge", "type", "outcome"},
	)
	outboxMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pushbridge",
			Subsystem: "outbox",
			Name:      "messages_total",
			Help:      "Outbox messages by kind and stage.",
		},
		[]string{"bridge", "kind", "stage"},
	)
	workersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pushbridge",
			Subsystem: "supervisor",
			Name:      "workers_running",
			Help:      "Number of running bridge workers.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectionEvents, inboundMessages, outboxMessages, workersRunning)
	})
}

func bridgeLabel(id int32) string {
	return strconv.FormatInt(int64(id), 10)
}

func recordConnectionEvent(bridgeID int32, event string) {
	connectionEvents.WithLabelValues(bridgeLabel(bridgeID), event).Inc()
}

func recordInbound(bridgeID int32, typ, outcome string) {
	inboundMessages.WithLabelValues(bridgeLabel(bridgeID), typ, outcome).Inc()
}

func recordOutbox(bridgeID int32, kind, stage string) {
	outboxMessages.WithLabelValues(bridgeLabel(bridgeID), kind, stage).Inc()
}
