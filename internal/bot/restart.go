package bot

import (
	"errors"
	"sync"
)

// ErrRestartRequested is returned by Start when a restart was requested
// through the chat.
var ErrRestartRequested = errors.New("restart requested")

// RestartSignal is a one-shot latch fired by the restart command. The first
// request wins; later ones are ignored.
type RestartSignal struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	reason string
}

func NewRestartSignal() *RestartSignal {
	return &RestartSignal{done: make(chan struct{})}
}

// Request fires the signal. It never blocks.
func (r *RestartSignal) Request(reason string) {
	r.once.Do(func() {
		r.mu.Lock()
		r.reason = reason
		r.mu.Unlock()
		close(r.done)
	})
}

func (r *RestartSignal) Done() <-chan struct{} {
	return r.done
}

func (r *RestartSignal) Reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}
