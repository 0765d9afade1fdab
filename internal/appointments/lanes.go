package appointments

import "sync"

// notifyLanes serializes detached notifier runs per appointment so a cancel
// can never purge before the scheduling cascade it follows has persisted.
// Runs for different appointments stay concurrent.
type notifyLanes struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// laneTicket is a reserved slot in one appointment's lane. The zero value
// means no lane was reserved and the run starts immediately.
type laneTicket struct {
	key  string
	prev <-chan struct{}
	done chan struct{}
}

// join reserves the next slot for key. Callers reserve while still holding
// the write lock so slots follow commit order.
func (l *notifyLanes) join(key string) laneTicket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tails == nil {
		l.tails = make(map[string]chan struct{})
	}
	t := laneTicket{key: key, prev: l.tails[key], done: make(chan struct{})}
	l.tails[key] = t.done
	return t
}

// wait blocks until the run ahead of t has finished.
func (t laneTicket) wait() {
	if t.prev != nil {
		<-t.prev
	}
}

func (l *notifyLanes) release(t laneTicket) {
	if t.done == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	close(t.done)
	if l.tails[t.key] == t.done {
		delete(l.tails, t.key)
	}
}
