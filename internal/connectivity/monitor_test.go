package connectivity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	results []error
	mu      sync.Mutex
	calls   int
}

func (p *fakeProbe) Check(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.calls
	p.calls++
	if i >= len(p.results) {
		return p.results[len(p.results)-1]
	}
	return p.results[i]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMonitor_Check_Transitions(t *testing.T) {
	down := errors.New("no route to host")

	tests := []struct {
		name        string
		results     []error
		wantStates  []bool
		wantOnlines int
	}{
		{
			name:        "first success fires once",
			results:     []error{nil, nil, nil},
			wantStates:  []bool{true, true, true},
			wantOnlines: 1,
		},
		{
			name:        "offline then online",
			results:     []error{down, down, nil},
			wantStates:  []bool{false, false, true},
			wantOnlines: 1,
		},
		{
			name:        "flapping fires on every recovery",
			results:     []error{nil, down, nil, down, nil},
			wantStates:  []bool{true, false, true, false, true},
			wantOnlines: 3,
		},
		{
			name:        "never online",
			results:     []error{down, down},
			wantStates:  []bool{false, false},
			wantOnlines: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var onlines int
			monitor := NewMonitor(&fakeProbe{results: tt.results}, time.Minute, discardLogger(),
				func(context.Context) { onlines++ })

			assert.False(t, monitor.Online())
			for i, want := range tt.wantStates {
				assert.Equal(t, want, monitor.Check(context.Background()), "check %d", i)
				assert.Equal(t, want, monitor.Online(), "check %d", i)
			}
			assert.Equal(t, tt.wantOnlines, onlines)
		})
	}
}

func TestMonitor_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	probe := &fakeProbe{results: []error{errors.New("down"), nil}}
	fired := make(chan struct{}, 1)
	monitor := NewMonitor(probe, 10*time.Millisecond, discardLogger(), func(context.Context) {
		fired <- struct{}{}
	})

	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onOnline never fired")
	}
	assert.True(t, monitor.Online())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestHTTPProbe_Check(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "no content", status: http.StatusNoContent},
		{name: "redirect page", status: http.StatusOK},
		{name: "captive portal auth", status: http.StatusForbidden},
		{name: "server error", status: http.StatusBadGateway, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewHTTPProbe(srv.URL, time.Second).Check(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewHTTPProbe(url, time.Second).Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe request failed")
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, DefaultProbeURL, config.ProbeURL)
	assert.Equal(t, 30*time.Second, config.Interval)
	assert.Equal(t, 5*time.Second, config.Timeout)
}
