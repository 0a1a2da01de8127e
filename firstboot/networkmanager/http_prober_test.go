package networkmanager

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

type countingTransport struct {
	calls int
	err   error
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls++
	return nil, c.err
}

func TestHTTPProberReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	prober := NewHTTPProber(logger)

	assert.True(t, prober.Probe(context.Background(), server.URL, 3, time.Second))
}

func TestHTTPProberUnreachableUsesAllAttempts(t *testing.T) {
	transport := &countingTransport{err: errors.New("dial tcp: no route to host")}
	logger, _ := test.NewNullLogger()
	prober := &HTTPProber{
		Client:   &http.Client{Transport: transport},
		Interval: time.Millisecond,
		Logger:   logger,
	}

	assert.False(t, prober.Probe(context.Background(), "www.google.com", DefaultProbeAttempts, time.Second))
	assert.Equal(t, DefaultProbeAttempts, transport.calls)
}

func TestHTTPProberStopsOnCancel(t *testing.T) {
	transport := &countingTransport{err: errors.New("unreachable")}
	logger, _ := test.NewNullLogger()
	prober := &HTTPProber{
		Client:   &http.Client{Transport: transport},
		Interval: time.Hour,
		Logger:   logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	assert.False(t, prober.Probe(ctx, "https://www.google.com", 3, time.Second))
	assert.Equal(t, 1, transport.calls)
}
