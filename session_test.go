package jsonapi

import (
	"reflect"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegisterKeepsFirstSeenOrder(t *testing.T) {
	s := newSession(log.NewNopLogger())
	a := Reference{Type: "people", ID: "1"}
	b := Reference{Type: "people", ID: "2"}

	s.registerOpaque(a, &Cursor{})
	s.register(b, reflect.ValueOf(&struct{}{}))
	replacement := reflect.ValueOf(&struct{ X int }{})
	s.register(a, replacement)

	assert.Equal(t, []Reference{a, b}, s.order)
	ent, ok := s.lookup(a)
	require.True(t, ok)
	assert.True(t, ent.concrete())
	assert.Nil(t, ent.opaque)
	assert.Equal(t, replacement.Pointer(), ent.value.Pointer())

	_, ok = s.lookup(Reference{Type: "people", ID: "3"})
	assert.False(t, ok)
}

func TestSessionRendered(t *testing.T) {
	s := newSession(log.NewNopLogger())
	ref := Reference{Type: "tags", ID: "go"}

	assert.False(t, s.isRendered(ref))
	s.markRendered(ref)
	assert.True(t, s.isRendered(ref))
	assert.False(t, s.isRendered(Reference{Type: "tags", ID: "rust"}))
}

func TestSessionPostProcessingDrainsNestedActions(t *testing.T) {
	s := newSession(log.NewNopLogger())
	var ran []string

	s.enqueue(func() {
		ran = append(ran, "first")
		s.enqueue(func() {
			ran = append(ran, "nested")
			s.enqueue(func() { ran = append(ran, "deeper") })
		})
	})
	s.enqueue(func() { ran = append(ran, "second") })
	s.runPostProcessing()

	assert.Equal(t, []string{"first", "second", "nested", "deeper"}, ran)
	assert.Empty(t, s.actions)

	s.runPostProcessing()
	assert.Len(t, ran, 4)
}

func TestRootReferenceNeverCollides(t *testing.T) {
	assert.Empty(t, rootReference.Type)
	assert.NotEqual(t, Reference{}, rootReference)
}

func TestSessionPopulatedFlag(t *testing.T) {
	s := newSession(log.NewNopLogger())
	ref := Reference{Type: "nodes", ID: "1"}

	s.register(ref, reflect.ValueOf(&node{}))
	ent, ok := s.lookup(ref)
	require.True(t, ok)
	assert.False(t, ent.populated)

	s.markPopulated(ref)
	assert.True(t, ent.populated)

	s.register(ref, reflect.ValueOf(&node{}))
	assert.False(t, ent.populated)

	s.markPopulated(Reference{Type: "nodes", ID: "missing"})
	_, ok = s.lookup(Reference{Type: "nodes", ID: "missing"})
	assert.False(t, ok)
}
