package core

import "sync"

// Notifier is a close-and-replace broadcast channel, the idiomatic Go
// stand-in for tokio::sync::Notify: any number of goroutines can Wait()
// concurrently, and a single Notify() wakes all of them at once without
// either side needing to know how many are listening.
type Notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewNotifier returns a ready-to-use Notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{})}
}

// Wait returns a channel that closes the next time Notify is called.
// Callers select on it; it must be re-fetched after each wakeup.
func (n *Notifier) Wait() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// Notify wakes every goroutine currently blocked in Wait().
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	close(n.ch)
	n.ch = make(chan struct{})
}
