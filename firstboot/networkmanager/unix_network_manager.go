package networkmanager

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	cm "github.com/steelcutops/firstboot/firstboot/commandmanager"
)

// Typically: "rtt min/avg/max/mdev = 0.029/0.029/0.029/0.000 ms" (iputils)
// or "round-trip min/avg/max = 0.064/0.064/0.064 ms" (busybox, BSD).
var rttPattern = regexp.MustCompile(`(?:rtt|round-trip) min/avg/max(?:/\w+)? = ([\d.]+)/([\d.]+)/`)

// UnixNetworkManager probes through ping(8) on the managed host, so a remote
// host is checked from its own network rather than ours.
type UnixNetworkManager struct {
	CommandManager cm.CommandManager
	Interval       time.Duration
	Logger         logrus.FieldLogger
	// Darwin selects BSD ping, whose -W takes milliseconds.
	Darwin bool
}

func (unm *UnixNetworkManager) Ping(ctx context.Context, address string, timeout time.Duration) (PingResult, error) {
	output, err := unm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "ping",
		Args:    []string{"-c", "1", "-W", unm.waitArg(timeout), address},
	})
	if err != nil {
		return PingResult{Address: address}, err
	}

	matches := rttPattern.FindStringSubmatch(output.STDOUT)
	if matches == nil {
		return PingResult{Address: address}, errors.New("unable to parse ping output")
	}

	rtt, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return PingResult{Address: address}, fmt.Errorf("unable to convert RTT to float: %w", err)
	}

	return PingResult{
		Address: address,
		RTT:     rtt,
		Success: true,
	}, nil
}

func (unm *UnixNetworkManager) waitArg(timeout time.Duration) string {
	if unm.Darwin {
		millis := timeout.Milliseconds()
		if millis < 1 {
			millis = 1
		}
		return strconv.FormatInt(millis, 10)
	}

	seconds := int(timeout.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func (unm *UnixNetworkManager) Probe(ctx context.Context, target string, attempts int, timeout time.Duration) bool {
	address := hostOf(target)
	log := unm.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("target", address)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && !wait(ctx, unm.Interval) {
			return false
		}

		result, err := unm.Ping(ctx, address, timeout)
		if err == nil && result.Success {
			log.WithField("rtt_ms", result.RTT).Debug("Target reachable")
			return true
		}
		log.WithField("attempt", attempt).WithError(err).Debug("Ping failed")
	}

	return false
}
