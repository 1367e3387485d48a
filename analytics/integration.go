package analytics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leaderbot/engine"
)

// Service bundles the Prometheus metrics and the in-memory stats behind one hook.
type Service struct {
	registry *prometheus.Registry
	metrics  *Metrics
	stats    *Stats
	bridge   *BridgeHook
}

// NewService creates a service with its own registry, including Go and
// process collectors.
func NewService() (*Service, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	s := NewStats()
	return &Service{registry: reg, metrics: m, stats: s, bridge: NewBridge(m, s)}, nil
}

// Hook returns the hook that feeds both metrics and stats.
func (s *Service) Hook() Hook { return s.bridge }

// Attach subscribes the service to bus.
func (s *Service) Attach(bus *engine.EventBus) func() { return Attach(bus, s.bridge) }

func (s *Service) Stats() *Stats { return s.stats }

func (s *Service) Registry() *prometheus.Registry { return s.registry }

// Handler serves the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}
