package bridge

// Guest is the sandboxed runtime boundary. Implementations deliver a
// serialized message into the guest; the call is fire-and-forget with no
// delivery guarantee observable to the host. A crash that prevents the
// guest from emitting any further events is silently unobservable; no
// heartbeat or timeout mechanism exists at this boundary.
//
// The reverse direction is not part of this interface: guest adapters are
// constructed with the session's Receive func and invoke it for every
// message the guest emits, in emission order.
type Guest interface {
	Send(raw []byte)
}

// GuestFunc adapts a plain function to the Guest interface.
type GuestFunc func(raw []byte)

// Send implements Guest.
func (f GuestFunc) Send(raw []byte) { f(raw) }
