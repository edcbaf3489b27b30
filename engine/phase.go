package engine

import "meshgate/internal/check"

// Phase is an instance worker's lifecycle state.
type Phase uint8

const (
	PhaseStarting Phase = iota + 1
	PhaseRunning
	PhaseDegraded
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseDegraded:
		return "degraded"
	case PhaseStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Transition validates and applies a phase change. Invalid transitions are
// debug-build assertion failures and keep the current phase in release.
func (p Phase) Transition(to Phase) Phase {
	ok := false
	switch p {
	case PhaseStarting:
		ok = to == PhaseRunning || to == PhaseDegraded || to == PhaseStopping
	case PhaseRunning:
		ok = to == PhaseDegraded || to == PhaseStopping
	case PhaseDegraded:
		ok = to == PhaseRunning || to == PhaseStopping
	case PhaseStopping:
		ok = false
	}
	check.Assertf(ok, "instance phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}
