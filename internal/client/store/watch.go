package store

import "sync"

// Notifier broadcasts "something committed" signals to watchers. A watcher
// holds a restartable sequence: it reads current rows, then waits on its
// channel and re-reads after every committed transaction. Signals are
// coalesced; a slow watcher sees at least one signal for any burst of
// commits.
type Notifier struct {
	mu       sync.Mutex
	watchers map[int]chan struct{}
	next     int
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{watchers: make(map[int]chan struct{})}
}

// Subscribe registers a watcher. The returned cancel function must be called
// when the watcher is done.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.watchers[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.watchers, id)
	}
	return ch, cancel
}

// Broadcast signals every watcher. Non-blocking: a watcher that has not
// consumed the previous signal keeps exactly one pending.
func (n *Notifier) Broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
