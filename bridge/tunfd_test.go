package bridge

import "testing"

func TestTunFD_UnsetMeansUnavailable(t *testing.T) {
	tun := NewTunFD()
	if got := tun.Current(); got > 0 {
		t.Fatalf("Current() = %d, want non-positive before Set", got)
	}
}

func TestTunFD_LastSetWins(t *testing.T) {
	tun := NewTunFD()

	tun.Set(4)
	tun.Set(11)

	if got := tun.Current(); got != 11 {
		t.Fatalf("Current() = %d, want 11", got)
	}
}
