package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SettingsLoadOutcome captures where a settings load was served from.
type SettingsLoadOutcome string

const (
	// SettingsLoadCached indicates the record was reused from the loader cache.
	SettingsLoadCached SettingsLoadOutcome = "cached"
	// SettingsLoadStore indicates the record was read from the store.
	SettingsLoadStore SettingsLoadOutcome = "store"
	// SettingsLoadError indicates the store could not be read.
	SettingsLoadError SettingsLoadOutcome = "error"
)

// OutcomeEmitted is the response outcome label used when headers were written.
const OutcomeEmitted = "emitted"

// Recorder publishes Prometheus metrics for header derivation.
// All methods are safe to call on a nil Recorder.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	responses     *prometheus.CounterVec
	headers       *prometheus.CounterVec
	settingsLoads *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	responses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "response_fields",
		Name:      "responses_total",
		Help:      "Responses seen by the middleware, by request kind and outcome.",
	}, []string{"kind", "outcome"})

	headers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "response_fields",
		Name:      "headers_total",
		Help:      "Response header fields written, by field name.",
	}, []string{"name"})

	settingsLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "response_fields",
		Subsystem: "settings",
		Name:      "loads_total",
		Help:      "Settings loads, by source.",
	}, []string{"result"})

	reg.MustRegister(responses, headers, settingsLoads)

	return &Recorder{
		gatherer:      reg,
		handler:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		responses:     responses,
		headers:       headers,
		settingsLoads: settingsLoads,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveResponse records one response. Outcome is OutcomeEmitted or the
// reason nothing was emitted.
func (r *Recorder) ObserveResponse(kind, outcome string, headerNames []string) {
	if r == nil {
		return
	}
	r.responses.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
	for _, name := range headerNames {
		r.headers.WithLabelValues(normalizeLabel(name)).Inc()
	}
}

// ObserveSettingsLoad records one settings load.
func (r *Recorder) ObserveSettingsLoad(result SettingsLoadOutcome) {
	if r == nil {
		return
	}
	r.settingsLoads.WithLabelValues(normalizeLabel(string(result))).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
