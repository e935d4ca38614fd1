// Package metrics exposes Coordinator effect/fault/session counters on a
// loopback Prometheus endpoint, gated by config so the daemon stays silent
// by default.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider bundles the OTel meter provider, its Prometheus bridge, and the
// loopback HTTP listener serving /metrics.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	server        *http.Server
}

// Start initializes the Prometheus-backed meter provider and, when addr is
// non-empty, serves /metrics on it. Callers must call Shutdown to release
// the listener.
func Start(addr string) (*Provider, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	p := &Provider{meterProvider: mp}
	if addr == "" {
		return p, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	p.server = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return p, nil
}

// MeterProvider returns the OTel meter provider backing Recorder instruments.
func (p *Provider) MeterProvider() *sdkmetric.MeterProvider {
	return p.meterProvider
}

// Shutdown stops the loopback listener and flushes the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
