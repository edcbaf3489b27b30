package bridge

import (
	"context"

	"github.com/google/uuid"

	"meshgate"
)

// Config is the parsed form of a serialized network configuration. The
// declared instance id becomes the instance identifier.
type Config interface {
	ID() uuid.UUID
}

// ConfigLoader parses and validates serialized network configurations.
type ConfigLoader interface {
	Parse(text string) (Config, error)
}

// LoaderFunc adapts a plain function to ConfigLoader.
type LoaderFunc func(text string) (Config, error)

func (f LoaderFunc) Parse(text string) (Config, error) { return f(text) }

// InstanceManager is the engine collaborator that owns network instances
// and their protocol behavior. The bridge references instances by id only.
type InstanceManager interface {
	// RegisterSocketGuard installs the socket-creation hook. Called once,
	// when the bridge is constructed.
	RegisterSocketGuard(g meshgate.SocketGuard)

	// Run creates and starts an instance from cfg. source tags where the
	// request came from.
	Run(ctx context.Context, cfg Config, source string) (uuid.UUID, error)

	// Delete stops and removes the given instances. Unknown ids are ignored.
	Delete(ctx context.Context, ids []uuid.UUID) error

	// SetTunFD assigns the host-owned tunnel device descriptor to a
	// running instance.
	SetTunFD(ctx context.Context, id uuid.UUID, fd int) error

	// ListIDs returns the ids of the instances the engine currently runs.
	ListIDs() []uuid.UUID

	// CollectStatus returns a status snapshot per running instance.
	CollectStatus(ctx context.Context) (map[uuid.UUID]meshgate.InstanceStatus, error)
}

// SourceHost tags instances started through the host-facing surface.
const SourceHost = "host"
