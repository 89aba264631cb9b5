package jsonapi

import (
	"reflect"

	"github.com/go-kit/log/level"
)

type markKind uint8

const (
	markIdentifier markKind = iota + 1
	markEnvelope
)

// probe records where, inside a scratch buffer, the value encoder took the
// resource path. Whether a field is a relationship is decided by what its
// value's encoder did, not by its static type.
type probe struct {
	buf   TokenBuffer
	marks map[int]markKind
}

func (e *encodeState) mark(w TokenWriter, kind markKind) {
	if e.probe == nil || w != TokenWriter(&e.probe.buf) {
		return
	}
	if _, ok := e.probe.marks[e.probe.buf.Len()]; !ok {
		e.probe.marks[e.probe.buf.Len()] = kind
	}
}

// encodeAmbiguous encodes fv once into a probe buffer and commits the
// result as a relationship when the value itself was encoded as a resource
// identifier, a list of identifiers or a relationship envelope; otherwise
// as an attribute.
func (e *encodeState) encodeAmbiguous(attributes, relationships *TokenBuffer, p *property, fv reflect.Value) error {
	outer := e.probe
	pr := &probe{marks: make(map[int]markKind)}
	e.probe = pr
	err := e.encodeValue(&pr.buf, fv)
	e.probe = outer
	if err != nil {
		return err
	}

	relationship, wrap := classifyProbe(pr.buf.Tokens(), pr.marks)
	level.Debug(e.logger).Log("msg", "classified ambiguous field", "field", p.name, "relationship", relationship)
	if !relationship {
		attributes.Name(p.name)
		pr.buf.WriteTo(attributes)
		return nil
	}
	relationships.Name(p.name)
	if wrap {
		relationships.BeginObject()
		relationships.Name("data")
		pr.buf.WriteTo(relationships)
		relationships.EndObject()
		return nil
	}
	pr.buf.WriteTo(relationships)
	return nil
}

// classifyProbe reports whether the probed tokens form relationship
// content and whether they still need a data envelope.
func classifyProbe(tokens []Token, marks map[int]markKind) (relationship, wrap bool) {
	if len(tokens) == 0 {
		return false, false
	}
	switch marks[0] {
	case markEnvelope:
		return true, false
	case markIdentifier:
		return true, true
	}
	if tokens[0].Kind != KindBeginArray {
		return false, false
	}

	elements := 0
	depth := 0
	for i := 1; i < len(tokens); i++ {
		t := tokens[i]
		if depth == 0 && t.IsValueStart() {
			if marks[i] != markIdentifier {
				return false, false
			}
			elements++
		}
		switch t.Kind {
		case KindBeginObject, KindBeginArray:
			depth++
		case KindEndObject, KindEndArray:
			depth--
		}
		if depth < 0 {
			break
		}
	}
	return elements > 0, elements > 0
}
