package vm

import (
	"encoding/json"
	"sync"

	"github.com/bytedance/sonic"
)

// envelope is the wire shape shared with the host: a string tag and a
// tag-specific payload. Guests deliberately keep their own copy of this
// type; the protocol, not the host's package, is the contract.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// emitter serializes guest→host emission through a single goroutine, so
// events arrive in emission order.
type emitter struct {
	mu     sync.Mutex
	queue  chan []byte
	done   chan struct{}
	closed bool
}

func newEmitter() *emitter {
	return &emitter{
		queue: make(chan []byte, 256),
		done:  make(chan struct{}),
	}
}

// start begins delivering queued events to recv. Called once, after the
// host has a receive function to give us.
func (e *emitter) start(recv func(raw []byte)) {
	go func() {
		for {
			select {
			case raw := <-e.queue:
				recv(raw)
			case <-e.done:
				return
			}
		}
	}()
}

// emit marshals and queues one event. Drops the event if the engine is
// closed or the queue is saturated; a guest that cannot keep up must not
// wedge the engine.
func (e *emitter) emit(msgType string, payload any) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}

	env := envelope{Type: msgType}
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return
		}
		env.Payload = raw
	}
	raw, err := sonic.Marshal(env)
	if err != nil {
		return
	}

	select {
	case e.queue <- raw:
	default:
	}
}

func (e *emitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.done)
}
