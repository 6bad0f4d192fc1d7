// ABOUTME: Connection registry, pending-request buffers and per-stream queues.
// ABOUTME: All bridge state lives behind one mutex; queues carry their own lock.

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// errKeepalive is returned by pop when the wait elapsed with nothing queued.
var errKeepalive = errors.New("keepalive")

// queue is an unbounded multi-producer single-consumer message queue.
type queue struct {
	mu     sync.Mutex
	items  []json.RawMessage
	notify chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

// push appends msg and wakes the consumer. It reports false once the queue is closed.
func (q *queue) push(msg json.RawMessage) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// pop blocks until a message is available, timeout elapses (errKeepalive) or
// ctx is done.
func (q *queue) pop(ctx context.Context, timeout time.Duration) (json.RawMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-timer.C:
			return nil, errKeepalive
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// connection is one open SSE stream.
type connection struct {
	id          string
	userContext string
	server      string
	auth        string
	opened      time.Time
	queue       *queue
}

// newConnectionID derives a stream id from the user context and a random suffix.
func newConnectionID(userContext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return userContext + "_" + suffix
}

// pendingRequest is a request that arrived before its user had a stream.
type pendingRequest struct {
	req      *rpcRequest
	server   string
	auth     string
	received time.Time
}

// state is the bridge's shared registry.
type state struct {
	mu          sync.Mutex
	connections map[string]*connection // by user context
	sessions    map[string]*connection // by connection id
	pending     map[string][]*pendingRequest
}

func newState() *state {
	return &state{
		connections: make(map[string]*connection),
		sessions:    make(map[string]*connection),
		pending:     make(map[string][]*pendingRequest),
	}
}

// open registers c as the current stream of its user. The most recent
// registration wins; the replaced connection, if any, is returned.
func (s *state) open(c *connection) *connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.connections[c.userContext]
	if old != nil {
		delete(s.sessions, old.id)
	}
	s.connections[c.userContext] = c
	s.sessions[c.id] = c
	return old
}

// close removes c. The user's entry is only cleared if c is still current.
func (s *state) close(c *connection) {
	s.mu.Lock()
	if s.connections[c.userContext] == c {
		delete(s.connections, c.userContext)
	}
	if s.sessions[c.id] == c {
		delete(s.sessions, c.id)
	}
	s.mu.Unlock()
	c.queue.close()
}

// session returns the current connection with the given id.
func (s *state) session(id string) *connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// current returns the user's current connection, or nil.
func (s *state) current(userContext string) *connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections[userContext]
}

// deliver queues msg on the user's current stream.
func (s *state) deliver(userContext string, msg json.RawMessage) bool {
	c := s.current(userContext)
	if c == nil {
		return false
	}
	return c.queue.push(msg)
}

// connectionOrBuffer returns the user's current connection, or buffers p when
// there is none. The check and the append happen under one lock so a stream
// opening concurrently either sees p in its drain or is returned here.
func (s *state) connectionOrBuffer(userContext string, p *pendingRequest) *connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.connections[userContext]; c != nil {
		return c
	}
	s.pending[userContext] = append(s.pending[userContext], p)
	return nil
}

// takePending removes and returns the user's buffered requests in arrival
// order, skipping any received before cutoff.
func (s *state) takePending(userContext string, cutoff time.Time) []*pendingRequest {
	s.mu.Lock()
	list := s.pending[userContext]
	delete(s.pending, userContext)
	s.mu.Unlock()

	out := list[:0]
	for _, p := range list {
		if !p.received.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// sweep drops buffered requests received before cutoff and removes empty
// buffers. It returns the number of requests dropped.
func (s *state) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for user, list := range s.pending {
		kept := list[:0]
		for _, p := range list {
			if p.received.Before(cutoff) {
				dropped++
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == 0 {
			delete(s.pending, user)
			continue
		}
		s.pending[user] = kept
	}
	return dropped
}

// counts returns the number of open streams and buffered requests.
func (s *state) counts() (connections, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range s.pending {
		pending += len(list)
	}
	return len(s.connections), pending
}
