package cart

import "sync"

// writer runs save for queued payloads one at a time, in queue order.
type writer struct {
	save     func(payload string)
	coalesce bool

	mu     sync.Mutex
	queue  []string
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newWriter(coalesce bool, save func(string)) *writer {
	return &writer{
		save:     save,
		coalesce: coalesce,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (w *writer) enqueue(payload string) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	if w.coalesce {
		w.queue = w.queue[:0]
	}
	w.queue = append(w.queue, payload)
	w.mu.Unlock()

	w.signal()
	return true
}

func (w *writer) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
}

func (w *writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) next() (payload string, ok, closed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) == 0 {
		return "", false, w.closed
	}
	payload = w.queue[0]
	w.queue[0] = ""
	w.queue = w.queue[1:]
	return payload, true, w.closed
}

func (w *writer) run() {
	defer close(w.done)

	for {
		payload, ok, closed := w.next()
		if ok {
			w.save(payload)
			continue
		}
		if closed {
			return
		}
		<-w.wake
	}
}
