package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	sessionsReaped   prometheus.Counter
	reaperSweepFails prometheus.Counter
	grantsExpired    prometheus.Counter
	grantSweepFails  prometheus.Counter
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		sessionsReaped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "sessions_reaped_total",
			Help:      "Total number of sessions closed by the stale session reaper",
		}),
		reaperSweepFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "reaper_sweep_errors_total",
			Help:      "Total number of failed stale session sweeps",
		}),
		grantsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "grants_expired_total",
			Help:      "Total number of grants revoked by the expired grant sweeper",
		}),
		grantSweepFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "grant_sweep_errors_total",
			Help:      "Total number of failed expired grant sweeps",
		}),
	}, nil
}

// SessionsReaped counts sessions closed by the reaper.
func (p *Provider) SessionsReaped() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.sessionsReaped
}

// ReaperSweepErrors counts failed reaper sweeps.
func (p *Provider) ReaperSweepErrors() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.reaperSweepFails
}

// GrantsExpired counts grants revoked by the sweeper.
func (p *Provider) GrantsExpired() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.grantsExpired
}

// GrantSweepErrors counts failed grant sweeps.
func (p *Provider) GrantSweepErrors() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.grantSweepFails
}
