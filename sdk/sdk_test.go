package sdk

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"meshgate"
	"meshgate/bridge"
	"meshgate/daemon"
)

type fakeBridge struct {
	startID  uuid.UUID
	startErr error
	running  []uuid.UUID
	entries  []meshgate.StatusEntry
	tunFD    int
}

func (f *fakeBridge) Validate(text string) error { return nil }

func (f *fakeBridge) Start(ctx context.Context, text string) (uuid.UUID, error) {
	return f.startID, f.startErr
}

func (f *fakeBridge) Stop(ctx context.Context, names []string) ([]string, error) {
	return nil, nil
}

func (f *fakeBridge) Running() []uuid.UUID       { return f.running }
func (f *fakeBridge) IsRunning(text string) bool { return true }

func (f *fakeBridge) CollectStatus(ctx context.Context) ([]meshgate.StatusEntry, error) {
	return f.entries, nil
}

func (f *fakeBridge) SetTunFD(fd int) { f.tunFD = fd }

// startDaemon serves the control API on a throwaway unix socket.
func startDaemon(t *testing.T, fb *fakeBridge) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "meshgated.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := &http.Server{Handler: daemon.NewServer(fb)}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return socket
}

func TestClient_RoundTrips(t *testing.T) {
	id := uuid.New()
	fb := &fakeBridge{
		startID: id,
		running: []uuid.UUID{id},
		entries: []meshgate.StatusEntry{{ID: id, Status: `{"phase":"running"}`}},
	}
	c := New(startDaemon(t, fb))
	ctx := context.Background()

	if _, err := c.Health(ctx); err != nil {
		t.Fatalf("Health failed: %v", err)
	}

	valid, _, err := c.Validate(ctx, "instance_id: x")
	if err != nil || !valid {
		t.Fatalf("Validate = (%v, %v), want valid", valid, err)
	}

	got, err := c.Start(ctx, "some config")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got != id.String() {
		t.Fatalf("Start id = %q, want %q", got, id)
	}

	ids, err := c.Running(ctx)
	if err != nil || len(ids) != 1 || ids[0] != id.String() {
		t.Fatalf("Running = (%v, %v)", ids, err)
	}

	running, err := c.IsRunning(ctx, id.String())
	if err != nil || !running {
		t.Fatalf("IsRunning = (%v, %v), want true", running, err)
	}

	entries, err := c.Status(ctx)
	if err != nil || len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("Status = (%v, %v)", entries, err)
	}

	if err := c.SetTunFD(ctx, 9); err != nil {
		t.Fatalf("SetTunFD failed: %v", err)
	}
	if fb.tunFD != 9 {
		t.Fatalf("daemon received fd %d, want 9", fb.tunFD)
	}
}

func TestClient_SurfacesAPIErrors(t *testing.T) {
	fb := &fakeBridge{startErr: bridge.ErrAlreadyRunning}
	c := New(startDaemon(t, fb), WithRetryMax(0))

	_, err := c.Start(context.Background(), "some config")
	if err == nil {
		t.Fatal("Start should surface the daemon error")
	}
}
