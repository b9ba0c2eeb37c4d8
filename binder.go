package dbuslink

// Handler computes a reply for an inbound MethodCall, returning nil to
// send nothing back. This mirrors original_source's Handler trait,
// adapted from an async per-message callback to a synchronous Go func:
// the Router already serializes delivery within a single subscription,
// so Handler needs no further synchronization of its own.
type Handler func(msg *Message) *Message

// Binder drains a DeliveryEndpoint in its own goroutine and dispatches
// each arrival to a Handler, sending back whatever it returns
// (original_source's Binder trait, specialized to Client/AttachPath/
// AttachInterface rather than a generic receiver).
type Binder struct {
	client *Client
	ep     *Endpoint

	detach func()
}

// BindPath attaches h to path and starts serving it.
func BindPath(c *Client, path ObjectPath, capacity int, h Handler) *Binder {
	ep := NewEndpoint(capacity)
	c.AttachPath(path, ep)
	b := &Binder{client: c, ep: ep, detach: func() { c.DetachPathByEndpoint(ep) }}
	go b.serve(h)
	return b
}

// BindInterface attaches h to iface and starts serving it.
func BindInterface(c *Client, iface string, capacity int, h Handler) *Binder {
	ep := NewEndpoint(capacity)
	c.AttachInterface(iface, ep)
	b := &Binder{client: c, ep: ep, detach: func() { c.DetachInterface(iface) }}
	go b.serve(h)
	return b
}

func (b *Binder) serve(h Handler) {
	for {
		select {
		case msg, ok := <-b.ep.C:
			if !ok {
				return
			}
			if msg.Type != TypeMethodCall {
				continue
			}
			if reply := h(msg); reply != nil {
				b.client.Send(reply)
			}
		case <-b.ep.Done():
			return
		}
	}
}

// Unbind removes the subscription backing b and closes its endpoint.
// The explicit Detach call, rather than leaving removal to the
// Router's lazy disconnected-on-next-send discovery, keeps b.ep out of
// r.tables immediately, so a later Client.Close does not attempt to
// close an endpoint this call has already closed.
func (b *Binder) Unbind() {
	b.detach()
	b.ep.Close()
}
