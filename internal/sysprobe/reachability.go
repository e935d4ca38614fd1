// Package sysprobe implements the System Probe: OS-level permission checks,
// network reachability, and the sleep/wake and default-device change
// notifiers that feed the Coordinator's event queue with no session token.
package sysprobe

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// DialTimeout bounds each reachability probe dial, matching the doctor
// command's own bring-up check.
const DialTimeout = 500 * time.Millisecond

// CheckReachable dials the ASR endpoint host and any auxiliary hosts in
// order, returning the first dial error encountered. An empty aux list
// checks only the primary endpoint.
func CheckReachable(ctx context.Context, endpoint string, aux []string) error {
	hostPort, err := HostPort(endpoint)
	if err != nil {
		return err
	}
	if err := dial(ctx, hostPort); err != nil {
		return fmt.Errorf("dial %s: %w", hostPort, err)
	}

	for _, host := range aux {
		if host == "" {
			continue
		}
		if err := dial(ctx, host); err != nil {
			return fmt.Errorf("dial %s: %w", host, err)
		}
	}
	return nil
}

func dial(ctx context.Context, hostPort string) error {
	dialer := net.Dialer{Timeout: DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return err
	}
	return conn.Close()
}

// HostPort extracts a dialable host:port from a ws:// or wss:// endpoint,
// applying the scheme's default port when the URL omits one.
func HostPort(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("endpoint has no host: %s", endpoint)
	}

	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "wss":
			port = "443"
		default:
			port = "80"
		}
	}

	return net.JoinHostPort(host, port), nil
}
