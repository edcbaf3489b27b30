// Package meshgate holds the domain types shared between the bridge
// layer, the engine, and the control surface.
package meshgate

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// SocketGuard is the engine's socket-creation hook. The engine calls
// ProtectSocket after creating an outbound socket and before connecting
// it; the call blocks until the host has exempted the socket from tunnel
// routing, or until the guard gives up. A false return means the socket
// proceeds unprotected.
//
// Implementations must be safe for concurrent use from engine workers.
type SocketGuard interface {
	ProtectSocket(fd int, raddr netip.AddrPort) bool
}

// PeerState describes a peer's reachability as seen by an instance worker.
type PeerState uint8

const (
	PeerNew     PeerState = iota // dialing, no reply yet
	PeerAlive                    // fresh keepalive reply
	PeerSuspect                  // connected but replies went stale
	PeerFailed                   // dial failed
)

func (s PeerState) String() string {
	switch s {
	case PeerNew:
		return "new"
	case PeerAlive:
		return "alive"
	case PeerSuspect:
		return "suspect"
	case PeerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PeerStatus is one peer's entry in an instance status snapshot.
type PeerStatus struct {
	Endpoint  string    `json:"endpoint"`
	State     string    `json:"state"`
	LastReply time.Time `json:"last_reply,omitzero"`
}

// InstanceStatus is the engine-reported state of one network instance.
type InstanceStatus struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Phase     string       `json:"phase"`
	TunFD     int          `json:"tun_fd,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	LastError string       `json:"last_error,omitempty"`
	Peers     []PeerStatus `json:"peers,omitempty"`
}

// StatusEntry pairs an instance identifier with its serialized status.
// Entries are transient, produced on demand for reporting.
type StatusEntry struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}
