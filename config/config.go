// Package config parses serialized network instance configurations.
//
// A config is a YAML document declaring the instance identity and how the
// instance reaches its mesh: listeners it binds and peers it dials.
package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultNetworkName is used when the config declares no name.
	DefaultNetworkName = "default"

	// DefaultMTU is the tunnel device MTU when the config declares none.
	DefaultMTU = 1380
)

// Peer is one remote endpoint the instance dials.
type Peer struct {
	Proto    string // "udp" or "tcp"
	HostPort string // host:port, resolved at dial time
}

func (p Peer) String() string { return p.Proto + "://" + p.HostPort }

// Network is a parsed, validated instance configuration.
type Network struct {
	InstanceID uuid.UUID
	Name       string
	Hostname   string
	Listeners  []string
	Peers      []Peer
	MTU        int
}

// ID returns the declared instance identifier.
func (n *Network) ID() uuid.UUID { return n.InstanceID }

type rawNetwork struct {
	InstanceID string   `yaml:"instance_id"`
	Name       string   `yaml:"name"`
	Hostname   string   `yaml:"hostname"`
	Listeners  []string `yaml:"listeners"`
	Peers      []string `yaml:"peers"`
	MTU        int      `yaml:"mtu"`
}

// Parse decodes and validates a serialized config. It has no side effects;
// a nil error means the config is startable.
func Parse(text string) (*Network, error) {
	var raw rawNetwork
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if strings.TrimSpace(raw.InstanceID) == "" {
		return nil, fmt.Errorf("instance_id is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw.InstanceID))
	if err != nil {
		return nil, fmt.Errorf("parse instance_id: %w", err)
	}

	n := &Network{
		InstanceID: id,
		Name:       strings.TrimSpace(raw.Name),
		Hostname:   strings.TrimSpace(raw.Hostname),
		MTU:        raw.MTU,
	}
	if n.Name == "" {
		n.Name = DefaultNetworkName
	}
	if n.MTU == 0 {
		n.MTU = DefaultMTU
	}
	if n.MTU < 576 || n.MTU > 9000 {
		return nil, fmt.Errorf("mtu %d out of range", n.MTU)
	}

	for _, l := range raw.Listeners {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, err := parseEndpoint(l); err != nil {
			return nil, fmt.Errorf("listener %q: %w", l, err)
		}
		n.Listeners = append(n.Listeners, l)
	}

	for _, p := range raw.Peers {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		peer, err := parseEndpoint(p)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", p, err)
		}
		n.Peers = append(n.Peers, peer)
	}

	return n, nil
}

func parseEndpoint(s string) (Peer, error) {
	proto, hostPort, ok := strings.Cut(s, "://")
	if !ok {
		return Peer{}, fmt.Errorf("missing scheme, want proto://host:port")
	}
	switch proto {
	case "udp", "tcp":
	default:
		return Peer{}, fmt.Errorf("unsupported protocol %q", proto)
	}
	host, _, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Peer{}, fmt.Errorf("parse host:port: %w", err)
	}
	if host == "" {
		return Peer{}, fmt.Errorf("empty host")
	}
	return Peer{Proto: proto, HostPort: hostPort}, nil
}
