package bridge

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"

	"meshgate"
)

type fakeConfig struct {
	id uuid.UUID
}

func (c fakeConfig) ID() uuid.UUID { return c.id }

// fakeLoader accepts any text except "bad" and reports the fixed id.
type fakeLoader struct {
	id       uuid.UUID
	parseErr error
}

func (l *fakeLoader) Parse(text string) (Config, error) {
	if l.parseErr != nil {
		return nil, l.parseErr
	}
	if text == "bad" {
		return nil, errors.New("unparseable config")
	}
	return fakeConfig{id: l.id}, nil
}

type fakeEngine struct {
	calls []string

	guard meshgate.SocketGuard

	runErr    error
	deleteErr error
	tunErr    error

	deleted []uuid.UUID
	tunID   uuid.UUID
	tunFD   int

	statuses  map[uuid.UUID]meshgate.InstanceStatus
	statusErr error
}

func (f *fakeEngine) RegisterSocketGuard(g meshgate.SocketGuard) {
	f.calls = append(f.calls, "RegisterSocketGuard")
	f.guard = g
}

func (f *fakeEngine) Run(ctx context.Context, cfg Config, source string) (uuid.UUID, error) {
	f.calls = append(f.calls, "Run")
	if f.runErr != nil {
		return uuid.Nil, f.runErr
	}
	return cfg.ID(), nil
}

func (f *fakeEngine) Delete(ctx context.Context, ids []uuid.UUID) error {
	f.calls = append(f.calls, "Delete")
	f.deleted = append(f.deleted, ids...)
	return f.deleteErr
}

func (f *fakeEngine) SetTunFD(ctx context.Context, id uuid.UUID, fd int) error {
	f.calls = append(f.calls, "SetTunFD")
	f.tunID, f.tunFD = id, fd
	return f.tunErr
}

func (f *fakeEngine) ListIDs() []uuid.UUID { return nil }

func (f *fakeEngine) CollectStatus(ctx context.Context) (map[uuid.UUID]meshgate.InstanceStatus, error) {
	f.calls = append(f.calls, "CollectStatus")
	return f.statuses, f.statusErr
}

func newTestController(t *testing.T, eng *fakeEngine) (*Controller, uuid.UUID, *Ledger, *TunFD) {
	t.Helper()
	id := uuid.New()
	ledger := NewLedger()
	tun := NewTunFD()
	c := newController(eng, &fakeLoader{id: id}, ledger, tun)
	return c, id, ledger, tun
}

func TestValidate_DoesNotTouchEngine(t *testing.T) {
	eng := &fakeEngine{}
	c, _, _, _ := newTestController(t, eng)

	if err := c.Validate("ok"); err != nil {
		t.Fatalf("Validate(ok) = %v, want nil", err)
	}
	if err := c.Validate("bad"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate(bad) = %v, want ErrInvalidConfig", err)
	}
	if len(eng.calls) != 0 {
		t.Fatalf("engine calls = %v, want none", eng.calls)
	}
}

func TestStart_InvalidConfigNeverReachesEngine(t *testing.T) {
	eng := &fakeEngine{}
	c, _, _, _ := newTestController(t, eng)

	_, err := c.Start(context.Background(), "bad")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Start error = %v, want ErrInvalidConfig", err)
	}
	if len(eng.calls) != 0 {
		t.Fatalf("engine calls = %v, want none", eng.calls)
	}
	if got := c.Running(); len(got) != 0 {
		t.Fatalf("Running() = %v, want empty", got)
	}
}

func TestStart_SecondInstanceRefused(t *testing.T) {
	eng := &fakeEngine{}
	c, id, _, _ := newTestController(t, eng)

	got, err := c.Start(context.Background(), "ok")
	if err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if got != id {
		t.Fatalf("Start id = %v, want %v", got, id)
	}

	_, err = c.Start(context.Background(), "ok")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start error = %v, want ErrAlreadyRunning", err)
	}

	runCalls := 0
	for _, call := range eng.calls {
		if call == "Run" {
			runCalls++
		}
	}
	if runCalls != 1 {
		t.Fatalf("engine Run invoked %d times, want 1", runCalls)
	}
}

func TestStart_EngineFailureLeavesRegistryEmpty(t *testing.T) {
	runErr := errors.New("listener bind failed")
	eng := &fakeEngine{runErr: runErr}
	c, _, _, _ := newTestController(t, eng)

	_, err := c.Start(context.Background(), "ok")
	if !errors.Is(err, runErr) {
		t.Fatalf("Start error = %v, want engine error", err)
	}
	if got := c.Running(); len(got) != 0 {
		t.Fatalf("Running() = %v, want empty after engine failure", got)
	}

	// Registry is still empty, so a retry must be allowed.
	eng.runErr = nil
	if _, err := c.Start(context.Background(), "ok"); err != nil {
		t.Fatalf("retry Start failed: %v", err)
	}
}

func TestStart_PropagatesStoredTunnelDescriptor(t *testing.T) {
	eng := &fakeEngine{}
	c, id, _, tun := newTestController(t, eng)
	tun.Set(7)

	if _, err := c.Start(context.Background(), "ok"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if eng.tunID != id || eng.tunFD != 7 {
		t.Fatalf("engine SetTunFD(%v, %d), want (%v, 7)", eng.tunID, eng.tunFD, id)
	}
}

func TestStart_TunnelAssignmentFailureIsNonFatal(t *testing.T) {
	eng := &fakeEngine{tunErr: errors.New("instance rejected fd")}
	c, id, _, tun := newTestController(t, eng)
	tun.Set(7)

	got, err := c.Start(context.Background(), "ok")
	if err != nil {
		t.Fatalf("Start failed despite best-effort tunnel assignment: %v", err)
	}
	if got != id {
		t.Fatalf("Start id = %v, want %v", got, id)
	}
	if running := c.Running(); !slices.Contains(running, id) {
		t.Fatalf("Running() = %v, want to contain %v", running, id)
	}
}

func TestStart_NoTunnelDescriptorSkipsAssignment(t *testing.T) {
	eng := &fakeEngine{}
	c, _, _, _ := newTestController(t, eng)

	if _, err := c.Start(context.Background(), "ok"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if slices.Contains(eng.calls, "SetTunFD") {
		t.Fatalf("engine calls = %v, SetTunFD must not run without a descriptor", eng.calls)
	}
}

func TestStop_SkipsUnparseableIDs(t *testing.T) {
	eng := &fakeEngine{}
	c, id, _, _ := newTestController(t, eng)

	if _, err := c.Start(context.Background(), "ok"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	skipped, err := c.Stop(context.Background(), []string{"not-a-uuid", id.String(), ""})
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !slices.Equal(skipped, []string{"not-a-uuid", ""}) {
		t.Fatalf("skipped = %v, want the two unparseable names", skipped)
	}
	if !slices.Equal(eng.deleted, []uuid.UUID{id}) {
		t.Fatalf("engine deleted %v, want [%v]", eng.deleted, id)
	}
	if c.IsRunning(id.String()) {
		t.Fatal("instance should be gone after Stop")
	}
}

func TestStop_AllUnparseableTouchesNothing(t *testing.T) {
	eng := &fakeEngine{}
	c, id, _, _ := newTestController(t, eng)

	if _, err := c.Start(context.Background(), "ok"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	skipped, err := c.Stop(context.Background(), []string{"nope", "also-nope"})
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped = %v, want both names", skipped)
	}
	if slices.Contains(eng.calls, "Delete") {
		t.Fatalf("engine calls = %v, Delete must not run for zero valid ids", eng.calls)
	}
	if !c.IsRunning(id.String()) {
		t.Fatal("instance should survive a stop with no valid ids")
	}
}

func TestStop_LastInstanceClearsLedger(t *testing.T) {
	eng := &fakeEngine{}
	c, id, ledger, _ := newTestController(t, eng)

	if _, err := c.Start(context.Background(), "ok"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ledger.Mark(31)
	ledger.Mark(32)

	if _, err := c.Stop(context.Background(), []string{id.String()}); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if ledger.Len() != 0 {
		t.Fatalf("ledger holds %d fds after last stop, want 0", ledger.Len())
	}
}

func TestStop_EngineFailureKeepsRegistryAndLedger(t *testing.T) {
	deleteErr := errors.New("worker refused to die")
	eng := &fakeEngine{deleteErr: deleteErr}
	c, id, ledger, _ := newTestController(t, eng)

	if _, err := c.Start(context.Background(), "ok"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ledger.Mark(31)

	_, err := c.Stop(context.Background(), []string{id.String()})
	if !errors.Is(err, deleteErr) {
		t.Fatalf("Stop error = %v, want engine delete error", err)
	}
	if !c.IsRunning(id.String()) {
		t.Fatal("failed stop must leave the instance registered")
	}
	if ledger.Len() != 1 {
		t.Fatal("failed stop must leave the ledger intact")
	}
}

func TestIsRunning_UnparseableIsFalse(t *testing.T) {
	c, _, _, _ := newTestController(t, &fakeEngine{})

	if c.IsRunning("definitely-not-a-uuid") {
		t.Fatal("IsRunning should be false for unparseable input")
	}
}

func TestCollectStatus_OneEntryPerInstance(t *testing.T) {
	idA, idB := uuid.New(), uuid.New()
	eng := &fakeEngine{statuses: map[uuid.UUID]meshgate.InstanceStatus{
		idA: {ID: idA, Name: "net-a", Phase: "running"},
		idB: {ID: idB, Name: "net-b", Phase: "degraded"},
	}}
	c, _, _, _ := newTestController(t, eng)

	entries, err := c.CollectStatus(context.Background())
	if err != nil {
		t.Fatalf("CollectStatus failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Status == "" {
			t.Fatalf("entry %v has empty serialized status", e.ID)
		}
	}
}

func TestCollectStatus_EngineErrorPropagates(t *testing.T) {
	statusErr := errors.New("engine unavailable")
	eng := &fakeEngine{statusErr: statusErr}
	c, _, _, _ := newTestController(t, eng)

	_, err := c.CollectStatus(context.Background())
	if !errors.Is(err, statusErr) {
		t.Fatalf("CollectStatus error = %v, want engine error", err)
	}
}
