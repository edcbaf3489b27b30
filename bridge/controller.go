package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"meshgate"
)

// Controller enforces the single-instance lifecycle policy over the
// engine's network instances. It owns the running-instance registry; the
// instances themselves are owned by the engine and referenced here by id.
//
// Start and Stop are serialized on the registry lock so the singleton
// invariant holds under concurrent host calls. The registry is mutated
// only after every preceding check has passed.
type Controller struct {
	engine InstanceManager
	loader ConfigLoader
	ledger *Ledger
	tun    *TunFD
	log    *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

func newController(engine InstanceManager, loader ConfigLoader, ledger *Ledger, tun *TunFD) *Controller {
	return &Controller{
		engine:  engine,
		loader:  loader,
		ledger:  ledger,
		tun:     tun,
		log:     slog.With("component", "lifecycle"),
		running: make(map[uuid.UUID]struct{}),
	}
}

// Validate parses text without any other side effect.
func (c *Controller) Validate(text string) error {
	if _, err := c.loader.Parse(text); err != nil {
		return invalidConfig(err)
	}
	return nil
}

// Start parses text, checks the singleton policy, delegates to the engine,
// and propagates the current tunnel descriptor to the new instance.
// Tunnel assignment is best-effort: a running instance without a usable
// tunnel device beats refusing to start.
func (c *Controller) Start(ctx context.Context, text string) (uuid.UUID, error) {
	cfg, err := c.loader.Parse(text)
	if err != nil {
		return uuid.Nil, invalidConfig(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.running) > 0 {
		return uuid.Nil, ErrAlreadyRunning
	}
	// Unreachable while the singleton policy holds; kept as an explicit
	// invariant check should the policy ever be relaxed.
	if _, ok := c.running[cfg.ID()]; ok {
		return uuid.Nil, ErrDuplicateInstance
	}

	id, err := c.engine.Run(ctx, cfg, SourceHost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("run instance: %w", err)
	}

	if fd := c.tun.Current(); fd > 0 {
		if err := c.engine.SetTunFD(ctx, id, fd); err != nil {
			c.log.Error("tunnel device assignment failed", "instance", id, "fd", fd, "err", err)
		} else {
			c.log.Debug("tunnel device assigned", "instance", id, "fd", fd)
		}
	} else {
		c.log.Warn("no tunnel device available for instance", "instance", id)
	}

	c.running[id] = struct{}{}
	c.log.Info("instance started", "instance", id)
	return id, nil
}

// Stop stops the named instances. Unparseable names are skipped, logged,
// and returned in skipped; they never fail the whole call. When the last
// instance stops, the protected-socket ledger is cleared — still under the
// registry lock, so straggler protection marks from a tearing-down
// instance cannot interleave with the clear.
func (c *Controller) Stop(ctx context.Context, names []string) (skipped []string, err error) {
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id, perr := uuid.Parse(name)
		if perr != nil {
			c.log.Warn("discarding unparseable instance id", "id", name, "err", perr)
			skipped = append(skipped, name)
			continue
		}
		ids = append(ids, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) > 0 {
		if err := c.engine.Delete(ctx, ids); err != nil {
			return skipped, fmt.Errorf("delete instances: %w", err)
		}
		for _, id := range ids {
			delete(c.running, id)
		}
		c.log.Info("instances stopped", "count", len(ids))
	}

	if len(c.running) == 0 {
		c.ledger.Clear()
	}
	return skipped, nil
}

// Running returns a snapshot of the running-instance registry, unordered.
func (c *Controller) Running() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(c.running))
	for id := range c.running {
		ids = append(ids, id)
	}
	return ids
}

// IsRunning reports whether the instance named by text is running.
// Unparseable input is false, never an error.
func (c *Controller) IsRunning(text string) bool {
	id, err := uuid.Parse(text)
	if err != nil {
		c.log.Warn("unparseable instance id", "id", text, "err", err)
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[id]
	return ok
}

// CollectStatus returns one serialized status entry per running instance.
// A per-instance serialization failure is skipped and logged, not fatal to
// the overall call.
func (c *Controller) CollectStatus(ctx context.Context) ([]meshgate.StatusEntry, error) {
	infos, err := c.engine.CollectStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect status: %w", err)
	}

	entries := make([]meshgate.StatusEntry, 0, len(infos))
	for id, info := range infos {
		data, err := json.Marshal(info)
		if err != nil {
			c.log.Error("serialize instance status failed", "instance", id, "err", err)
			continue
		}
		entries = append(entries, meshgate.StatusEntry{ID: id, Status: string(data)})
	}
	return entries, nil
}
