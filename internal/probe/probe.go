// Package probe inspects process-level configuration to determine which
// execution engines are currently viable. Probing is strictly read-only and
// never fails: missing configuration and unreachable endpoints are reported
// as data in the Result, not as errors.
package probe

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"
)

// DefaultDialTimeout bounds the reachability check so a probe can never
// block indefinitely on an unresponsive endpoint.
const DefaultDialTimeout = 5 * time.Second

// Result is a point-in-time view of the environment. Each Probe call
// produces a fresh value; previous results are never updated in place.
type Result struct {
	EndpointConfigured bool            `json:"endpoint_configured"`
	Endpoint           string          `json:"endpoint,omitempty"`
	Reachable          bool            `json:"reachable"`
	Capabilities       map[string]bool `json:"capabilities,omitempty"`
}

// Settings holds the configuration a Prober inspects. Mapping environment
// variables or config file keys onto these fields is the caller's concern
// (see internal/config).
type Settings struct {
	Endpoint     string
	Capabilities map[string]bool
	DialTimeout  time.Duration
}

// Prober evaluates engine viability from injected settings.
type Prober struct {
	settings Settings
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New creates a Prober over the given settings. A non-positive DialTimeout
// falls back to DefaultDialTimeout.
func New(settings Settings) *Prober {
	if settings.DialTimeout <= 0 {
		settings.DialTimeout = DefaultDialTimeout
	}
	d := &net.Dialer{Timeout: settings.DialTimeout}
	return &Prober{
		settings: settings,
		dial:     d.DialContext,
	}
}

// Probe returns the current environment view. An absent endpoint is reported
// as EndpointConfigured=false. A configured endpoint that fails the bounded
// TCP dial is reported as Reachable=false. Neither case is an error.
func (p *Prober) Probe(ctx context.Context) Result {
	res := Result{
		Capabilities: make(map[string]bool, len(p.settings.Capabilities)),
	}
	for name, enabled := range p.settings.Capabilities {
		res.Capabilities[name] = enabled
	}

	if p.settings.Endpoint == "" {
		return res
	}

	res.EndpointConfigured = true
	res.Endpoint = p.settings.Endpoint

	addr, ok := dialAddr(p.settings.Endpoint)
	if !ok {
		return res
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.settings.DialTimeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", addr)
	if err != nil {
		return res
	}
	conn.Close()
	res.Reachable = true
	return res
}

// dialAddr converts an endpoint setting into a host:port dial target.
// Accepts bare host:port pairs as well as http/https URLs.
func dialAddr(endpoint string) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			return "", false
		}
		return endpoint, true
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Port() != "" {
		return u.Host, true
	}
	switch u.Scheme {
	case "https":
		return net.JoinHostPort(u.Hostname(), "443"), true
	default:
		return net.JoinHostPort(u.Hostname(), "80"), true
	}
}
