package bridge

import "sync/atomic"

// TunFD is the process-wide slot for the host-assigned tunnel device
// descriptor. Values <= 0 mean no tunnel device is currently available.
// The slot is read, never cleared, on every instance start.
type TunFD struct {
	fd atomic.Int32
}

func NewTunFD() *TunFD {
	t := &TunFD{}
	t.fd.Store(-1)
	return t
}

// Set stores the latest host-provided descriptor.
func (t *TunFD) Set(fd int) {
	t.fd.Store(int32(fd))
}

// Current returns the stored descriptor.
func (t *TunFD) Current() int {
	return int(t.fd.Load())
}
