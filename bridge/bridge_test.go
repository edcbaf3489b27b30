package bridge

import (
	"context"
	"net/netip"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

// Exercises the whole session arc: hook installation, callback
// registration, protection during a run, and ledger reset on last stop.
func TestBridge_SessionLifecycle(t *testing.T) {
	eng := &fakeEngine{}
	br := New(eng, &fakeLoader{id: uuid.New()})

	if eng.guard == nil {
		t.Fatal("New must install the socket guard on the engine")
	}

	var calls atomic.Int32
	br.RegisterCallback(func(ctx context.Context, fd int, raddr netip.AddrPort) error {
		calls.Add(1)
		return nil
	})
	br.SetTunFD(4)

	id, err := br.Start(context.Background(), "ok")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if eng.tunFD != 4 {
		t.Fatalf("engine received tun fd %d, want 4", eng.tunFD)
	}

	peer := netip.MustParseAddrPort("198.51.100.1:51820")
	if !eng.guard.ProtectSocket(21, peer) {
		t.Fatal("guard should protect a fresh socket")
	}
	if !eng.guard.ProtectSocket(21, peer) {
		t.Fatal("guard should answer a repeat request from the ledger")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("callback invoked %d times during the run, want 1", got)
	}

	if _, err := br.Stop(context.Background(), []string{id.String()}); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if br.Ledger.Len() != 0 {
		t.Fatal("stopping the last instance must clear the ledger")
	}

	// A new session re-protects descriptors the OS may have reused.
	if !eng.guard.ProtectSocket(21, peer) {
		t.Fatal("guard should protect again after the ledger reset")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("callback invoked %d times total, want 2", got)
	}
}
