package jsonapi

import (
	"reflect"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Reference is the (type, id) identity of a resource within a document.
type Reference struct {
	Type string
	ID   string
}

func (r Reference) String() string {
	return r.Type + ":" + r.ID
}

// rootReference marks the top of the document. Resource types are never
// empty so it cannot collide with a real reference.
var rootReference = Reference{ID: "\x00root"}

// entry is a registered resource: either a concrete pointer to a decoded
// or encoded instance, or an opaque fork at a buffered included node whose
// Go type is not known yet.
type entry struct {
	value  reflect.Value
	opaque *Cursor
	// populated is set once a full resource object was read into value.
	// Instances created from a bare identifier are not populated.
	populated bool
}

func (e *entry) concrete() bool { return e.value.IsValid() }

// session is the bookkeeping of one Encode or Decode call.
type session struct {
	order    []Reference
	included map[Reference]*entry
	rendered map[Reference]struct{}
	actions  []func()
	logger   log.Logger
}

func newSession(logger log.Logger) *session {
	return &session{
		included: make(map[Reference]*entry),
		rendered: make(map[Reference]struct{}),
		logger:   logger,
	}
}

// register records value for ref, replacing an opaque or earlier entry in
// place so the registry keeps its first-seen order.
func (s *session) register(ref Reference, value reflect.Value) {
	if e, ok := s.included[ref]; ok {
		e.value, e.opaque, e.populated = value, nil, false
		return
	}
	s.order = append(s.order, ref)
	s.included[ref] = &entry{value: value}
}

func (s *session) registerOpaque(ref Reference, c *Cursor) {
	if e, ok := s.included[ref]; ok {
		e.value, e.opaque = reflect.Value{}, c
		return
	}
	s.order = append(s.order, ref)
	s.included[ref] = &entry{opaque: c}
}

func (s *session) markPopulated(ref Reference) {
	if e, ok := s.included[ref]; ok {
		e.populated = true
	}
}

func (s *session) lookup(ref Reference) (*entry, bool) {
	e, ok := s.included[ref]
	return e, ok
}

func (s *session) markRendered(ref Reference) {
	s.rendered[ref] = struct{}{}
}

func (s *session) isRendered(ref Reference) bool {
	_, ok := s.rendered[ref]
	return ok
}

func (s *session) enqueue(action func()) {
	s.actions = append(s.actions, action)
}

// runPostProcessing runs queued actions in order until the queue stays
// empty; actions may enqueue further actions.
func (s *session) runPostProcessing() {
	for len(s.actions) > 0 {
		actions := s.actions
		s.actions = nil
		level.Debug(s.logger).Log("msg", "running post-processing", "actions", len(actions))
		for _, action := range actions {
			action()
		}
	}
}
