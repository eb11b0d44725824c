// Package connectivity watches network reachability and reports the
// transitions that should kick off a sync.
package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultProbeURL answers 204 from anywhere with working internet.
const DefaultProbeURL = "https://www.google.com/generate_204"

// Config controls how often and where the monitor probes.
type Config struct {
	ProbeURL string
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultConfig returns the probe settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		ProbeURL: DefaultProbeURL,
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Probe reports whether the network is reachable.
type Probe interface {
	Check(ctx context.Context) error
}

// HTTPProbe considers the network up when a request to URL gets any
// non-5xx response.
type HTTPProbe struct {
	Client *http.Client
	URL    string
}

// NewHTTPProbe creates a probe with its own client and timeout.
func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Check implements Probe.
func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

// Monitor polls a Probe and tracks whether the host is online.
type Monitor struct {
	probe    Probe
	logger   *slog.Logger
	onOnline func(ctx context.Context)
	interval time.Duration
	mu       sync.Mutex
	online   bool
	checked  bool
}

// NewMonitor creates a monitor. onOnline runs on the polling goroutine after
// the first successful probe and after every offline to online transition.
func NewMonitor(probe Probe, interval time.Duration, logger *slog.Logger, onOnline func(ctx context.Context)) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logger,
		onOnline: onOnline,
	}
}

// Online reports the result of the latest probe. It is false before the first check.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Check probes once, updates the state and fires onOnline on a transition.
// It returns the new state.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.probe.Check(ctx)
	online := err == nil

	m.mu.Lock()
	wasOnline, checked := m.online, m.checked
	m.online = online
	m.checked = true
	m.mu.Unlock()

	switch {
	case online && !wasOnline:
		m.logger.Info("Network is online")
		if m.onOnline != nil {
			m.onOnline(ctx)
		}
	case !online && (wasOnline || !checked):
		m.logger.Info("Network is offline", "error", err)
	case !online:
		m.logger.Debug("Network still offline", "error", err)
	}
	return online
}

// Run checks immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
