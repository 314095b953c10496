package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Polls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spc2mqtt_polls_total",
		Help: "Completed poll cycles against the panel.",
	})
	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spc2mqtt_poll_errors_total",
		Help: "Poll cycles that failed and were skipped.",
	})
	Commands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spc2mqtt_commands_total",
		Help: "Commands dispatched to the panel.",
	})
	CommandErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spc2mqtt_command_errors_total",
		Help: "Commands the panel rejected or that failed to send.",
	})
	Logins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spc2mqtt_logins_total",
		Help: "Successful logins to the panel.",
	})
	LoginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spc2mqtt_login_failures_total",
		Help: "Login attempts the panel rejected or that failed outright.",
	})
	LastPoll = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spc2mqtt_last_poll_timestamp_seconds",
		Help: "Unix time of the last successful poll.",
	})
)

// Serve exposes /metrics on addr. Errors are returned to the caller; the
// endpoint is optional and its failure should not kill the watchdog.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
