// Package sse streams publish progress to HTTP clients as Server-Sent Events.
//
// Every publish is a run with its own id. Frames carry that id next to the
// payload so a client watching several concurrent publishes can tell them
// apart, and each frame gets a sequence id so a reconnecting client can
// resume with Last-Event-ID.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync/atomic"
	"time"
)

// Event is one progress event of a publish run. Run is empty for events that
// do not belong to a single publish, such as taxonomy.updated.
type Event struct {
	Type string
	Run  string
	Data any
}

// Event types emitted by the broker itself.
const (
	TypePostPublished   = "post.published"
	TypeTaxonomyUpdated = "taxonomy.updated"
)

// clientBuffer is both the per-client queue length and the replay history.
const clientBuffer = 64

type envelope struct {
	Run  string `json:"run,omitempty"`
	Data any    `json:"data"`
}

type frame struct {
	id  uint64
	run string
	raw []byte
}

type subscription struct {
	ch    chan []byte
	run   string // only frames of this run; empty means all
	after uint64 // replay history newer than this id
	// replay is set when the client sent Last-Event-ID.
	replay bool
}

// message is one item on the loop's queue. Progress events and run
// completions share the queue so a run's events stay in order.
type message struct {
	event  Event
	finish bool
	post   string
}

// Broker manages SSE client connections and broadcasts publish events.
//
// A single loop goroutine owns clients, history, in-flight runs and the
// taxonomy throttle; public methods talk to it over channels.
type Broker struct {
	taxonomyMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan message
	countReqCh    chan chan int
	runsReqCh     chan chan []string

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. taxonomy.updated is sent at most once
// per taxonomyThrottle.
func NewBroker(taxonomyThrottle time.Duration) *Broker {
	if taxonomyThrottle <= 0 {
		taxonomyThrottle = 2 * time.Second
	}

	b := &Broker{
		taxonomyMin:   taxonomyThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan message, 256),
		countReqCh:    make(chan chan int),
		runsReqCh:     make(chan chan []string),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	runs := make(map[string]int) // run id -> events forwarded so far
	history := make([]frame, 0, clientBuffer)
	var seq uint64
	var lastTaxonomy time.Time

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Client buffer full; skip to avoid blocking broker loop.
		}
	}

	broadcast := func(event Event) {
		payload, err := json.Marshal(envelope{Run: event.Run, Data: event.Data})
		if err != nil {
			return
		}
		seq++
		f := frame{
			id:  seq,
			run: event.Run,
			raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)),
		}
		if len(history) == clientBuffer {
			history = append(history[:0], history[1:]...)
		}
		history = append(history, f)

		for ch, only := range clients {
			if only == "" || only == f.run {
				send(ch, f.raw)
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			if sub.replay {
				for _, f := range history {
					if f.id > sub.after && (sub.run == "" || sub.run == f.run) {
						send(sub.ch, f.raw)
					}
				}
			}
			clients[sub.ch] = sub.run

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case msg := <-b.publishCh:
			run := msg.event.Run
			if !msg.finish {
				if run != "" {
					runs[run]++
				}
				broadcast(msg.event)
				continue
			}

			events := runs[run]
			delete(runs, run)
			broadcast(Event{
				Type: TypePostPublished,
				Run:  run,
				Data: map[string]any{"path": msg.post, "events": events},
			})

			now := time.Now()
			if now.Sub(lastTaxonomy) >= b.taxonomyMin {
				lastTaxonomy = now
				broadcast(Event{Type: TypeTaxonomyUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)

		case resp := <-b.runsReqCh:
			ids := make([]string, 0, len(runs))
			for id := range runs {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			resp <- ids
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client receiving every run's events from now on.
func (b *Broker) Subscribe() chan []byte {
	return b.subscribe(subscription{})
}

// SubscribeRun adds a client receiving only frames of run. When resume is
// true, buffered frames with an id above lastID are replayed first.
func (b *Broker) SubscribeRun(run string, lastID uint64, resume bool) chan []byte {
	return b.subscribe(subscription{run: run, after: lastID, replay: resume})
}

func (b *Broker) subscribe(sub subscription) chan []byte {
	sub.ch = make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(sub.ch)
		return sub.ch
	}

	select {
	case b.subscribeCh <- sub:
	case <-b.stopped:
		close(sub.ch)
	}

	return sub.ch
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

// ActiveRuns returns the sorted ids of runs that have emitted events but not
// finished yet.
func (b *Broker) ActiveRuns() []string {
	if b.closed.Load() {
		return nil
	}

	resp := make(chan []string, 1)
	select {
	case b.runsReqCh <- resp:
	case <-b.stopped:
		return nil
	}

	select {
	case ids := <-resp:
		return ids
	case <-b.stopped:
		return nil
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- message{event: event}:
	case <-b.stopped:
	}
}

// FinishRun closes run and announces the written post, followed by a
// throttled taxonomy.updated since a new post may change tag and category
// counts.
func (b *Broker) FinishRun(run, post string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- message{event: Event{Run: run}, finish: true, post: post}:
	case <-b.stopped:
	}
}

// Sink adapts the broker to a publish progress callback. Each progress event
// is forwarded under its run id; finishedKind also closes the run.
func (b *Broker) Sink(finishedKind string) func(run, kind string, data any) {
	return func(run, kind string, data any) {
		b.Publish(Event{Type: kind, Run: run, Data: data})
		if kind != finishedKind {
			return
		}
		var post string
		if m, ok := data.(map[string]any); ok {
			post, _ = m["post"].(string)
		}
		b.FinishRun(run, post)
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional run
// query parameter narrows the stream to one publish; a Last-Event-ID header
// replays what the client missed while disconnected.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var lastID uint64
	resume := false
	if h := r.Header.Get("Last-Event-ID"); h != "" {
		id, err := strconv.ParseUint(h, 10, 64)
		if err != nil {
			http.Error(w, "bad Last-Event-ID", http.StatusBadRequest)
			return
		}
		lastID, resume = id, true
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeRun(r.URL.Query().Get("run"), lastID, resume)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
