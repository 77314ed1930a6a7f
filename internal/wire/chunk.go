package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxChunkElements bounds how many Key/Output elements one Frame carries.
// Chosen to keep individual frames well under typical gRPC message-size
// limits without needing per-message size accounting.
const MaxChunkElements = 64

// ChunkQuery splits a fully-built Query into one or more Frames suitable
// for sending over the stream. The terminal frame carries the terminal
// QueryState for q.Direction; any frames before it carry the in-progress
// state. A Query with no Key/Output elements produces exactly one frame.
func ChunkQuery(q *Query) []*Frame {
	var elems []string
	var inProgress, complete QueryState
	switch q.Direction {
	case Request:
		elems = q.Key
		inProgress, complete = SubmitInProgress, SubmitComplete
	case Response:
		elems = q.Output
		inProgress, complete = ReplyInProgress, ReplyComplete
		if q.Error != "" {
			complete = StateError
		}
	}

	if len(elems) == 0 {
		return []*Frame{frameFor(q, complete, nil)}
	}

	var frames []*Frame
	for start := 0; start < len(elems); start += MaxChunkElements {
		end := start + MaxChunkElements
		if end > len(elems) {
			end = len(elems)
		}
		state := inProgress
		if end == len(elems) {
			state = complete
		}
		frames = append(frames, frameFor(q, state, elems[start:end]))
	}
	return frames
}

func frameFor(q *Query, state QueryState, elems []string) *Frame {
	f := &Frame{
		ID:        q.ID,
		State:     state,
		Publisher: q.Publisher,
		Plugin:    q.Plugin,
		Query:     q.Name,
		Concern:   q.Concerns,
		Error:     q.Error,
	}
	switch q.Direction {
	case Request:
		f.Key = elems
	case Response:
		f.Output = elems
	}
	return f
}

// Reassembler accumulates Frames for a single logical Query ID and yields
// the completed Query once a terminal frame arrives. It enforces the
// receive-side invariants from the transport specification: frames for one
// ID must stay on one side (request xor reply) until a terminal state, and
// no frame may arrive after a terminal one.
//
// It also accepts the legacy wire form from spec.md §4.3: a sender that
// split one concatenated JSON string for key/output arbitrarily across
// frame elements, rather than emitting one element per value. Raw text is
// accumulated alongside the element-wise lists so that, if an element ever
// fails to parse on its own, the field falls back to concatenating every
// element seen for it and parsing the whole thing once at the terminal frame.
type Reassembler struct {
	id       int64
	dir      Direction
	started  bool
	done     bool
	key      []string
	output   []string
	concerns []string

	keyRaw       strings.Builder
	outputRaw    strings.Builder
	keyLegacy    bool
	outputLegacy bool
}

// NewReassembler returns a Reassembler for logical query id.
func NewReassembler(id int64) *Reassembler {
	return &Reassembler{id: id}
}

// Feed applies one Frame. It returns the reassembled Query and true once a
// terminal frame completes it; otherwise it returns nil, false. A violation
// of the receive-side invariants returns a non-nil *Error.
func (r *Reassembler) Feed(f *Frame) (*Query, bool, error) {
	if r.done {
		return nil, false, &Error{Kind: MoreAfterQueryComplete, ID: r.id}
	}
	if f.ID != r.id {
		return nil, false, &Error{Kind: FrameIDMismatch, ID: r.id, Msg: fmt.Sprintf("got id=%d", f.ID)}
	}

	dir, err := DirectionFromState(f.State)
	if err != nil {
		return nil, false, err
	}
	if r.started && dir != r.dir {
		kind := UnexpectedRequestInProgress
		if r.dir == Request {
			kind = UnexpectedReplyInProgress
		}
		return nil, false, &Error{Kind: kind, ID: r.id}
	}
	r.started = true
	r.dir = dir

	for _, e := range f.Key {
		r.keyRaw.WriteString(e)
	}
	for _, e := range f.Output {
		r.outputRaw.WriteString(e)
	}

	if !r.keyLegacy {
		if err := validateElems(f.Key); err != nil {
			r.keyLegacy = true
		} else {
			r.key = append(r.key, f.Key...)
		}
	}
	if !r.outputLegacy {
		if err := validateElems(f.Output); err != nil {
			r.outputLegacy = true
		} else {
			r.output = append(r.output, f.Output...)
		}
	}
	r.concerns = append(r.concerns, f.Concern...)

	if !f.State.IsTerminal() {
		return nil, false, nil
	}

	key, err := r.resolveField(r.key, r.keyLegacy, &r.keyRaw)
	if err != nil {
		return nil, false, &Error{Kind: InvalidJSONInQueryKey, ID: r.id, Err: err}
	}
	output, err := r.resolveField(r.output, r.outputLegacy, &r.outputRaw)
	if err != nil {
		return nil, false, &Error{Kind: InvalidJSONInQueryOutput, ID: r.id, Err: err}
	}

	r.done = true
	q := &Query{
		ID:        r.id,
		Direction: dir,
		Publisher: f.Publisher,
		Plugin:    f.Plugin,
		Name:      f.Query,
		Key:       key,
		Output:    output,
		Concerns:  r.concerns,
		Error:     f.Error,
	}
	return q, true, nil
}

// resolveField returns elems as-is when every element parsed on its own
// (the normal, element-wise wire form). When legacy is set, it instead
// concatenates everything accumulated in raw and parses that once, per
// spec.md §4.3's backward-compatibility fallback; the result is the single
// reassembled JSON value, not one element per original fragment.
func (r *Reassembler) resolveField(elems []string, legacy bool, raw *strings.Builder) ([]string, error) {
	if !legacy {
		return elems, nil
	}
	concatenated := raw.String()
	if concatenated == "" {
		return nil, nil
	}
	if !json.Valid([]byte(concatenated)) {
		return nil, fmt.Errorf("invalid json element: %q", concatenated)
	}
	return []string{concatenated}, nil
}

func validateElems(elems []string) error {
	for _, e := range elems {
		if !json.Valid([]byte(e)) {
			return fmt.Errorf("invalid json element: %q", e)
		}
	}
	return nil
}
