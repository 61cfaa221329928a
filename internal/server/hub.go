package server

import "sync"

// hub fans one collection's updates out to its watch connections. Keys are
// userID/collection partitions, so a push never crosses users.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan []byte]struct{})}
}

// subscribe registers a watch connection and returns its channel and
// removal function.
func (h *hub) subscribe(key string) (ch chan []byte, cancel func()) {
	ch = make(chan []byte, 8)

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan []byte]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs[key], ch)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
		h.mu.Unlock()
	}
}

// broadcast delivers a payload to every subscriber of the partition. When
// a subscriber's buffer is full the oldest queued payload is discarded to
// make room: every payload is the complete record set, so only the latest
// one matters.
func (h *hub) broadcast(key string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[key] {
		select {
		case ch <- payload:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- payload:
		default:
		}
	}
}
