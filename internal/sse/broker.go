// Package sse implements the Server-Sent Events change feed for project
// records.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Record change kinds accepted by PublishRecordEvent.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindMoved   = "moved"
	KindDeleted = "deleted"
)

const (
	clientBuffer     = 64
	defaultHeartbeat = 25 * time.Second
)

// Event represents an SSE event to broadcast. Project scopes the event to
// subscribers of one project; empty means every subscriber receives it.
type Event struct {
	Type    string `json:"type"`
	Project string `json:"-"`
	Data    any    `json:"data"`
}

// RecordChange is the payload of record.<kind> events.
type RecordChange struct {
	ProjectID string `json:"projectId"`
	ID        string `json:"id"`
}

// TreeChange is the payload of tree.updated events.
type TreeChange struct {
	ProjectID string `json:"projectId"`
}

// frame is an encoded event kept for replay.
type frame struct {
	id      uint64
	project string
	raw     []byte
}

// hub is the broker state. Only the broker loop touches it.
type hub struct {
	clients  map[chan []byte]string
	lastTree map[string]time.Time
	seq      uint64
	backlog  []frame
}

func (h *hub) matches(filter, project string) bool {
	return filter == "" || project == "" || filter == project
}

func (h *hub) broadcast(ev Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	h.seq++
	f := frame{
		id:      h.seq,
		project: ev.Project,
		raw:     fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", h.seq, ev.Type, payload),
	}
	h.backlog = append(h.backlog, f)
	if len(h.backlog) > clientBuffer {
		h.backlog = h.backlog[len(h.backlog)-clientBuffer:]
	}

	for ch, filter := range h.clients {
		if !h.matches(filter, f.project) {
			continue
		}
		select {
		case ch <- f.raw:
		default:
			// Slow client; it can catch up with Last-Event-ID.
		}
	}
}

// replay queues every retained frame newer than after. The backlog never
// exceeds the client buffer, so this cannot block.
func (h *hub) replay(ch chan []byte, filter string, after uint64) {
	for _, f := range h.backlog {
		if f.id > after && h.matches(filter, f.project) {
			ch <- f.raw
		}
	}
}

// Broker fans events out to SSE clients.
//
// A single loop goroutine owns the hub; public methods hand it closures
// over one channel.
type Broker struct {
	treeMin   time.Duration
	heartbeat time.Duration

	ops     chan func(*hub)
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets how often idle connections get a keep-alive comment.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// NewBroker creates a broker that emits at most one tree.updated per project
// every treeThrottle.
func NewBroker(treeThrottle time.Duration, opts ...Option) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = 2 * time.Second
	}
	b := &Broker{
		treeMin:   treeThrottle,
		heartbeat: defaultHeartbeat,
		ops:       make(chan func(*hub), 256),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{
		clients:  make(map[chan []byte]string),
		lastTree: make(map[string]time.Time),
	}
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// do hands op to the loop. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel. A non-empty project
// limits delivery to that project's events. Retained events with an ID
// above after are queued first; pass 0 for none.
func (b *Broker) Subscribe(project string, after uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	ready := make(chan struct{})
	ok := b.do(func(h *hub) {
		if after > 0 {
			h.replay(ch, project, after)
		}
		h.clients[ch] = project
		close(ready)
	})
	if !ok {
		close(ch)
		return ch
	}
	select {
	case <-ready:
	case <-b.stopped:
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all matching clients.
func (b *Broker) Publish(ev Event) {
	b.do(func(h *hub) { h.broadcast(ev) })
}

// PublishRecordEvent publishes record.<kind> for a record and a throttled
// tree.updated for its project.
func (b *Broker) PublishRecordEvent(kind, projectID, id string) {
	b.do(func(h *hub) {
		h.broadcast(Event{Type: "record." + kind, Project: projectID, Data: RecordChange{ProjectID: projectID, ID: id}})

		now := time.Now()
		if now.Sub(h.lastTree[projectID]) >= b.treeMin {
			h.lastTree[projectID] = now
			h.broadcast(Event{Type: "tree.updated", Project: projectID, Data: TreeChange{ProjectID: projectID}})
		}
	})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events?project=<id>).
// A Last-Event-ID header resumes from the retained backlog.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	after, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("project"), after)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
