// Package sse streams folder change notifications to browsers and shells
// over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/arbor/internal/folderservice"
)

// Event types on the stream.
const (
	TypeFolderCreated = "folder.created"
	TypeFolderDeleted = "folder.deleted"
	TypeTreeUpdated   = "tree.updated"
)

const (
	clientBuffer   = 64
	defaultHistory = 128
)

// Event is a typed payload waiting to be framed.
type Event struct {
	Type string
	Data any
}

// FolderCreated is the payload of folder.created.
type FolderCreated struct {
	ID string `json:"id"`
}

// FolderDeleted is the payload of folder.deleted. Removed lists the target
// and every descendant that went with it.
type FolderDeleted struct {
	ID      string   `json:"id"`
	Removed []string `json:"removed"`
}

// frame is an encoded event with its stream position.
type frame struct {
	seq uint64
	raw []byte
}

type subscribeReq struct {
	ch    chan []byte
	after uint64
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the interval of keep-alive comments written to idle
// connections. Zero disables them.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// WithHistory sets how many recent frames are kept for Last-Event-ID replay.
func WithHistory(n int) Option {
	return func(b *Broker) { b.historyLen = n }
}

// Broker fans folder events out to connected clients.
//
// A single loop goroutine owns the client set, the replay history and the
// tree.updated throttle; public methods talk to it over channels.
type Broker struct {
	treeMin    time.Duration
	heartbeat  time.Duration
	historyLen int

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one tree.updated event per
// treeThrottle.
func NewBroker(treeThrottle time.Duration, opts ...Option) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = 2 * time.Second
	}

	b := &Broker{
		treeMin:       treeThrottle,
		heartbeat:     30 * time.Second,
		historyLen:    defaultHistory,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	history := make([]frame, 0, b.historyLen)
	var seq uint64
	var lastTree time.Time

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Slow client; it can catch up through Last-Event-ID.
		}
	}

	broadcast := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			slog.Warn("sse: encode event", slog.String("type", ev.Type), slog.String("error", err.Error()))
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, payload))

		if b.historyLen > 0 {
			if len(history) == b.historyLen {
				history = append(history[:0], history[1:]...)
			}
			history = append(history, frame{seq: seq, raw: raw})
		}
		for ch := range clients {
			send(ch, raw)
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = struct{}{}
			if req.after > 0 {
				for _, f := range history {
					if f.seq > req.after {
						send(req.ch, f.raw)
					}
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			broadcast(ev)
			if ev.Type == TypeFolderCreated || ev.Type == TypeFolderDeleted {
				if now := time.Now(); now.Sub(lastTree) >= b.treeMin {
					lastTree = now
					broadcast(Event{Type: TypeTreeUpdated, Data: struct{}{}})
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. Frames newer than after that are still in
// the history are queued first; pass 0 for live events only.
func (b *Broker) Subscribe(after uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, after: after}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues an event for every connected client.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// PublishFolderEvent translates a folder service mutation into stream
// events. ids[0] is the folder the change targeted. Unknown kinds and empty
// id lists are ignored.
func (b *Broker) PublishFolderEvent(kind string, ids []string) {
	if len(ids) == 0 {
		return
	}
	switch kind {
	case folderservice.EventCreated:
		b.Publish(Event{Type: TypeFolderCreated, Data: FolderCreated{ID: ids[0]}})
	case folderservice.EventDeleted:
		b.Publish(Event{Type: TypeFolderDeleted, Data: FolderDeleted{ID: ids[0], Removed: ids}})
	}
}

// ServeHTTP is the stream endpoint (GET /api/events). A Last-Event-ID header
// resumes after that event when it is still in the history.
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
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(after)
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
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
