package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestProbeNoEndpoint(t *testing.T) {
	p := New(Settings{
		Capabilities: map[string]bool{"cluster": true},
	})

	res := p.Probe(context.Background())

	if res.EndpointConfigured {
		t.Error("EndpointConfigured = true, want false")
	}
	if res.Reachable {
		t.Error("Reachable = true, want false")
	}
	if !res.Capabilities["cluster"] {
		t.Error("capability flag lost in probe result")
	}
}

func TestProbeUnreachableEndpoint(t *testing.T) {
	p := New(Settings{Endpoint: "127.0.0.1:9"})
	p.dial = func(_ context.Context, _, _ string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	res := p.Probe(context.Background())

	if !res.EndpointConfigured {
		t.Error("EndpointConfigured = false, want true")
	}
	if res.Reachable {
		t.Error("Reachable = true, want false")
	}
	if res.Endpoint != "127.0.0.1:9" {
		t.Errorf("Endpoint = %q, want the configured value", res.Endpoint)
	}
}

func TestProbeReachableEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := New(Settings{Endpoint: ln.Addr().String()})
	res := p.Probe(context.Background())

	if !res.EndpointConfigured || !res.Reachable {
		t.Errorf("probe = {configured:%v reachable:%v}, want both true",
			res.EndpointConfigured, res.Reachable)
	}
}

func TestProbeHTTPEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := New(Settings{Endpoint: "http://" + ln.Addr().String()})
	res := p.Probe(context.Background())

	if !res.Reachable {
		t.Error("Reachable = false for listening http endpoint, want true")
	}
}

func TestProbeResultsAreIndependent(t *testing.T) {
	p := New(Settings{Capabilities: map[string]bool{"cluster": true}})

	first := p.Probe(context.Background())
	first.Capabilities["cluster"] = false

	second := p.Probe(context.Background())
	if !second.Capabilities["cluster"] {
		t.Error("mutating one probe result leaked into the next")
	}
}

func TestDefaultDialTimeoutApplied(t *testing.T) {
	p := New(Settings{Endpoint: "localhost:1234"})
	if p.settings.DialTimeout != DefaultDialTimeout {
		t.Errorf("DialTimeout = %v, want %v", p.settings.DialTimeout, DefaultDialTimeout)
	}

	p = New(Settings{Endpoint: "localhost:1234", DialTimeout: time.Second})
	if p.settings.DialTimeout != time.Second {
		t.Errorf("DialTimeout = %v, want 1s", p.settings.DialTimeout)
	}
}

func TestDialAddr(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		ok       bool
	}{
		{"localhost:9000", "localhost:9000", true},
		{"10.0.0.5:8265", "10.0.0.5:8265", true},
		{"http://cluster.internal:8265", "cluster.internal:8265", true},
		{"http://cluster.internal", "cluster.internal:80", true},
		{"https://cluster.internal", "cluster.internal:443", true},
		{"cluster.internal", "", false},
		{"://bad", "", false},
	}

	for _, tt := range tests {
		got, ok := dialAddr(tt.endpoint)
		if ok != tt.ok || got != tt.want {
			t.Errorf("dialAddr(%q) = (%q, %v), want (%q, %v)",
				tt.endpoint, got, ok, tt.want, tt.ok)
		}
	}
}
