package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camtether_commands_total",
		Help: "Commands processed by the session, by verb and outcome",
	}, []string{"verb", "outcome"})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camtether_downloads_total",
		Help: "Completed media transfers by result and file kind",
	}, []string{"result", "kind"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camtether_download_bytes_total",
		Help: "Bytes written to downloaded media files",
	})

	keepalivesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camtether_keepalives_total",
		Help: "Keep-alive commands sent to the body, by trigger",
	}, []string{"trigger"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camtether_device_events_total",
		Help: "Device events delivered to the session, by family",
	}, []string{"family"})

	sessionOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camtether_session_open",
		Help: "1 while a device session is open",
	})
)

// IncCommand records a processed command. Unknown verbs are folded into
// "unknown" to cap cardinality; outcome ∈ {issued,rejected,error,reported}.
func IncCommand(verb, outcome string) {
	commandsTotal.WithLabelValues(normalizeVerb(verb), outcome).Inc()
}

// ObserveDownload records a finished transfer of n bytes.
func ObserveDownload(kind string, n int64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	downloadsTotal.WithLabelValues(result, kind).Inc()
	if err == nil && n > 0 {
		downloadBytesTotal.Add(float64(n))
	}
}

// IncDeletedWithoutDownload records a canceled recording removed from the body.
func IncDeletedWithoutDownload() {
	downloadsTotal.WithLabelValues("canceled", "video").Inc()
}

// IncKeepalive records a keep-alive; trigger ∈ {timer,device}.
func IncKeepalive(trigger string) {
	keepalivesTotal.WithLabelValues(trigger).Inc()
}

// IncEvent records a device event; family ∈ {object,property,state}.
func IncEvent(family string) {
	eventsTotal.WithLabelValues(family).Inc()
}

// SetSessionOpen updates the open-session gauge.
func SetSessionOpen(open bool) {
	if open {
		sessionOpen.Set(1)
		return
	}
	sessionOpen.Set(0)
}

func normalizeVerb(verb string) string {
	switch v := strings.ToLower(strings.TrimSpace(verb)); v {
	case "record", "stop", "picture", "cancel", "state":
		return v
	default:
		return "unknown"
	}
}
