package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/pulse/syncd/internal/event"
	"github.com/pulse/syncd/internal/logger"
)

const sseBufSize = 64

// eventFeed fans decoded channel events out to SSE subscribers. It is the
// bridge's implementation of the syncer sink: live chat, call signaling and
// toast-worthy events reach the UI here without being stored.
type eventFeed struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newEventFeed() *eventFeed {
	return &eventFeed{subs: make(map[chan []byte]struct{})}
}

// Publish broadcasts one event. Slow subscribers drop frames instead of
// blocking the channel read pump.
func (f *eventFeed) Publish(ev event.Event) {
	frame, err := json.Marshal(map[string]any{
		"type":    eventName(ev),
		"payload": ev,
	})
	if err != nil {
		logger.Errorf("sse marshal: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		select {
		case sub <- frame:
		default:
		}
	}
}

func (f *eventFeed) subscribe() chan []byte {
	sub := make(chan []byte, sseBufSize)
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub
}

func (f *eventFeed) unsubscribe(sub chan []byte) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
}

// serveSSE streams the event feed to one UI subscriber.
func (f *eventFeed) serveSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		logger.Errorf("sse: streaming unsupported: %v", err)
		return
	}

	sub := f.subscribe()
	defer f.unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-sub:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func eventName(ev event.Event) string {
	name := fmt.Sprintf("%T", ev)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
