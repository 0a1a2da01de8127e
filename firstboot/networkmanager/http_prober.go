package networkmanager

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPProber treats any HTTP response from the target as proof of
// connectivity, whatever its status code.
type HTTPProber struct {
	Client   *http.Client
	Interval time.Duration
	Logger   logrus.FieldLogger
}

func NewHTTPProber(logger logrus.FieldLogger) *HTTPProber {
	return &HTTPProber{
		Client:   &http.Client{},
		Interval: DefaultProbeInterval,
		Logger:   logger,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, target string, attempts int, timeout time.Duration) bool {
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("target", target)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && !wait(ctx, p.Interval) {
			return false
		}

		err := p.try(ctx, client, target, timeout)
		if err == nil {
			log.WithField("attempt", attempt).Debug("Target reachable")
			return true
		}
		log.WithField("attempt", attempt).WithError(err).Debug("Probe attempt failed")
	}

	return false
}

func (p *HTTPProber) try(ctx context.Context, client *http.Client, target string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
