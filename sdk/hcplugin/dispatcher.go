package hcplugin

import (
	"context"
	"sync"

	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// dispatcher multiplexes one plugin's Query stream: each fresh logical id
// starts a goroutine running the plugin's Query implementation; an id
// already suspended awaiting a sub-query resume instead routes its next
// frame to that goroutine's resume channel. Mirrors the host-side conn in
// internal/engine/conn.go from the opposite role.
type dispatcher struct {
	impl   Plugin
	stream wire.QueryServerStream

	sendMu sync.Mutex

	mu      sync.Mutex
	resumes map[int64]chan *wire.Query
}

func newDispatcher(impl Plugin, stream wire.QueryServerStream) *dispatcher {
	return &dispatcher{
		impl:    impl,
		stream:  stream,
		resumes: make(map[int64]chan *wire.Query),
	}
}

func (d *dispatcher) send(q *wire.Query) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	for _, f := range wire.ChunkQuery(q) {
		if err := d.stream.Send(f); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatcher) awaitResume(id int64) chan *wire.Query {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan *wire.Query, 1)
	d.resumes[id] = ch
	return ch
}

func (d *dispatcher) forgetResume(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.resumes, id)
}

// run reads frames until the stream ends, reassembling per id and either
// routing to a pending resume or spawning a new handler for a fresh id.
func (d *dispatcher) run() error {
	reassemblers := make(map[int64]*wire.Reassembler)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		f, err := d.stream.Recv()
		if err != nil {
			d.closeAllResumes()
			return err
		}

		r, ok := reassemblers[f.ID]
		if !ok {
			r = wire.NewReassembler(f.ID)
			reassemblers[f.ID] = r
		}
		q, done, err := r.Feed(f)
		if err != nil {
			delete(reassemblers, f.ID)
			continue
		}
		if !done {
			continue
		}
		delete(reassemblers, f.ID)

		d.mu.Lock()
		ch, isResume := d.resumes[f.ID]
		if isResume {
			delete(d.resumes, f.ID)
		}
		d.mu.Unlock()

		if isResume {
			ch <- q
			continue
		}

		wg.Add(1)
		go func(req *wire.Query) {
			defer wg.Done()
			d.handle(req)
		}(q)
	}
}

func (d *dispatcher) closeAllResumes() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, ch := range d.resumes {
		close(ch)
		delete(d.resumes, id)
	}
}

func (d *dispatcher) handle(req *wire.Query) {
	eng := newEngineHandle(req.ID, d)
	value, concerns, err := d.impl.Query(context.Background(), eng, req.Name, firstOrEmpty(req.Key))

	reply := &wire.Query{
		ID:        req.ID,
		Direction: wire.Response,
		Publisher: req.Publisher,
		Plugin:    req.Plugin,
		Name:      req.Name,
		Concerns:  concerns,
	}
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.Output = []string{value}
	}
	_ = d.send(reply)
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
