package engine

import (
	"sync"
	"sync/atomic"

	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// conn multiplexes logical queries over one plugin's bidirectional Query
// stream, per spec.md §4.3 "Multiplexing": many in-flight ids share one
// stream, routed by a background reader into per-id channels.
type conn struct {
	stream wire.QueryClientStream
	nextID int64

	sendMu sync.Mutex

	mu      sync.Mutex
	waiters map[int64]chan *wire.Query
	closed  bool
	closeErr error
}

func newConn(stream wire.QueryClientStream) *conn {
	c := &conn{
		stream:  stream,
		waiters: make(map[int64]chan *wire.Query),
	}
	go c.readLoop()
	return c
}

func (c *conn) readLoop() {
	reassemblers := make(map[int64]*wire.Reassembler)
	for {
		f, err := c.stream.Recv()
		if err != nil {
			c.shutdown(err)
			return
		}
		r, ok := reassemblers[f.ID]
		if !ok {
			r = wire.NewReassembler(f.ID)
			reassemblers[f.ID] = r
		}
		q, done, err := r.Feed(f)
		if err != nil {
			c.deliverErr(f.ID, err)
			delete(reassemblers, f.ID)
			continue
		}
		if !done {
			continue
		}
		delete(reassemblers, f.ID)
		c.deliver(f.ID, q)
	}
}

func (c *conn) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	for id, ch := range c.waiters {
		close(ch)
		delete(c.waiters, id)
	}
}

func (c *conn) deliver(id int64, q *wire.Query) {
	c.mu.Lock()
	ch, ok := c.waiters[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	ch <- q
}

func (c *conn) deliverErr(id int64, _ error) {
	// A malformed frame for one logical id terminates that id's wait with
	// no value; the waiter observes channel closure as PluginChannelClosed.
	c.mu.Lock()
	ch, ok := c.waiters[id]
	if ok {
		delete(c.waiters, id)
	}
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

// open allocates a fresh session-local id and a wait channel for its reply.
func (c *conn) open() (int64, chan *wire.Query, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, false
	}
	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *wire.Query, 1)
	c.waiters[id] = ch
	return id, ch, true
}

func (c *conn) send(q *wire.Query) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	for _, f := range wire.ChunkQuery(q) {
		if err := c.stream.Send(f); err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) forget(id int64) {
	c.mu.Lock()
	delete(c.waiters, id)
	c.mu.Unlock()
}
