package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	Registrations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tournament_registrations_total", Help: "Total successful offline event registrations"},
	)
	Submissions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tournament_submissions_total", Help: "Total successful answer submissions"},
	)
	PerfectRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tournament_perfect_runs_total", Help: "Total submissions that answered every question correctly"},
	)
)

func Register() {
	prometheus.MustRegister(Registrations, Submissions, PerfectRuns)
}
