package analytics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"leaderbot/core"
)

const namespace = "leaderbot"

// Metrics exports cycle events as Prometheus series.
type Metrics struct {
	cycles      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	starsGained *prometheus.CounterVec
	newMembers  *prometheus.CounterVec
	regressions *prometheus.CounterVec
	members     *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	labels := []string{"leaderboard_id", "year"}
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed bot cycles by result.",
		}, append(labels, "result")),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of bot cycles.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, append(labels, "result")),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_errors_total",
			Help:      "Failed cycles by stage and error kind.",
		}, append(labels, "stage", "kind")),
		starsGained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stars_gained_total",
			Help:      "Stars obtained by existing members.",
		}, labels),
		newMembers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_members_total",
			Help:      "Members that joined the leaderboard.",
		}, labels),
		regressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "star_regressions_total",
			Help:      "Members whose star count went down.",
		}, labels),
		members: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_members",
			Help:      "Members in the first saved snapshot.",
		}, labels),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle.",
		}, labels),
	}
	for _, c := range []prometheus.Collector{
		m.cycles, m.duration, m.errors, m.starsGained, m.newMembers, m.regressions, m.members, m.lastSuccess,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) OnEvent(_ context.Context, e core.Event) {
	id := strconv.FormatInt(int64(e.LeaderboardID), 10)
	year := strconv.Itoa(e.Year)
	switch e.Type {
	case core.EventCycleSucceeded:
		m.cycles.WithLabelValues(id, year, "success").Inc()
		m.duration.WithLabelValues(id, year, "success").Observe(e.Duration.Seconds())
		m.lastSuccess.WithLabelValues(id, year).Set(float64(e.Time.Unix()))
	case core.EventCycleFailed:
		m.cycles.WithLabelValues(id, year, "failure").Inc()
		m.duration.WithLabelValues(id, year, "failure").Observe(e.Duration.Seconds())
		m.errors.WithLabelValues(id, year, string(e.Stage), e.ErrorKind).Inc()
	case core.EventChangesDetected:
		if e.Changes != nil {
			m.starsGained.WithLabelValues(id, year).Add(float64(e.Changes.StarsGained()))
			m.newMembers.WithLabelValues(id, year).Add(float64(len(e.Changes.NewMembers)))
		}
	case core.EventStarRegression:
		if e.Changes != nil {
			m.regressions.WithLabelValues(id, year).Add(float64(len(e.Changes.Regressions)))
		}
	case core.EventBaselineSaved:
		m.members.WithLabelValues(id, year).Set(float64(e.Members))
	}
}
