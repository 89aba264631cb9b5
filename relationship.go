package jsonapi

import (
	"reflect"
)

// Relationship is a relationship envelope with explicit links and meta.
// Data is a resource pointer, a slice of them, or a ResourceIdentifier.
type Relationship[T any] struct {
	Data  T
	Links Links
	Meta  Meta
}

// ResourceIdentifier wraps a related resource together with meta that
// belongs to the identifier rather than to the resource.
type ResourceIdentifier[T any] struct {
	Value T
	Meta  Meta
}

type relationshipEnvelope interface {
	relationshipData() reflect.Value
	relationshipLinks() *Links
	relationshipMeta() *Meta
}

type identifierWrapper interface {
	identifierValue() reflect.Value
	identifierMeta() *Meta
}

func (r *Relationship[T]) relationshipData() reflect.Value {
	return reflect.ValueOf(&r.Data).Elem()
}

func (r *Relationship[T]) relationshipLinks() *Links {
	return &r.Links
}

func (r *Relationship[T]) relationshipMeta() *Meta {
	return &r.Meta
}

func (r *ResourceIdentifier[T]) identifierValue() reflect.Value {
	return reflect.ValueOf(&r.Value).Elem()
}

func (r *ResourceIdentifier[T]) identifierMeta() *Meta {
	return &r.Meta
}

// encodeRelationship writes the relationship object for field value v.
func (e *encodeState) encodeRelationship(w TokenWriter, v reflect.Value, toMany bool) error {
	if isEnvelope(v.Type()) {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				w.BeginObject()
				w.Name("data")
				writeEmptyData(w, toMany)
				w.EndObject()
				return nil
			}
			v = v.Elem()
		}
		return e.encodeEnvelope(w, addressable(v).Interface().(relationshipEnvelope))
	}
	w.BeginObject()
	w.Name("data")
	if err := e.encodeRelationshipData(w, v, toMany); err != nil {
		return err
	}
	w.EndObject()
	return nil
}

func (e *encodeState) encodeEnvelope(w TokenWriter, env relationshipEnvelope) error {
	e.mark(w, markEnvelope)
	data := env.relationshipData()
	w.BeginObject()
	w.Name("data")
	if err := e.encodeRelationshipData(w, data, isToMany(data.Type())); err != nil {
		return err
	}
	if links := *env.relationshipLinks(); len(links) > 0 {
		w.Name("links")
		if err := e.encodeValue(w, reflect.ValueOf(links)); err != nil {
			return err
		}
	}
	if meta := *env.relationshipMeta(); len(meta) > 0 {
		w.Name("meta")
		if err := e.encodeValue(w, reflect.ValueOf(meta)); err != nil {
			return err
		}
	}
	w.EndObject()
	return nil
}

// encodeRelationshipData writes identifiers only; full bodies go to
// included. Missing to-many data is always an empty array.
func (e *encodeState) encodeRelationshipData(w TokenWriter, v reflect.Value, toMany bool) error {
	if isNilValue(v) {
		writeEmptyData(w, toMany)
		return nil
	}
	return e.encodeValue(w, v)
}

func writeEmptyData(w TokenWriter, toMany bool) {
	if toMany {
		w.BeginArray()
		w.EndArray()
		return
	}
	w.Null()
}

func (e *encodeState) encodeIdentifierWrapper(w TokenWriter, id identifierWrapper) error {
	v := id.identifierValue()
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if isNilValue(v) {
		w.Null()
		return nil
	}
	if v.Kind() != reflect.Pointer {
		v = addressable(v)
	}
	if !isResourceStruct(v.Elem().Type()) {
		return &FormatError{Message: "resource identifier value " + v.Type().String() + " is not a resource"}
	}
	return e.encodeIdentifier(w, v, *id.identifierMeta())
}

// decodeRelationship reads a relationship object into field v. A
// relationship without a data member leaves the data untouched.
func (d *decodeState) decodeRelationship(c *Cursor, v reflect.Value) error {
	if c.Kind() != KindBeginObject {
		return formatErrorf(c, "relationship must be an object, found %s", describe(c.Token()))
	}
	start := c.Fork()

	target := v
	var env relationshipEnvelope
	if isEnvelope(v.Type()) {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		env = v.Addr().Interface().(relationshipEnvelope)
		target = env.relationshipData()
	}

	seen := false
	err := eachMember(c, func(name string) error {
		switch name {
		case "data":
			seen = true
			return d.decodeValue(c, target)
		case "links":
			seen = true
			if env != nil {
				return d.decodeValue(c, reflect.ValueOf(env.relationshipLinks()).Elem())
			}
		case "meta":
			seen = true
			if env != nil {
				return d.decodeValue(c, reflect.ValueOf(env.relationshipMeta()).Elem())
			}
		}
		return c.SkipValue()
	})
	if err != nil {
		return err
	}
	if !seen {
		return &FormatError{Path: start.Path(), Message: "relationship must contain data, links or meta"}
	}
	return nil
}

// decodeIdentifierWrapper reads identifier meta from a fork, then resolves
// the identified resource through the regular resource path.
func (d *decodeState) decodeIdentifierWrapper(c *Cursor, v reflect.Value) error {
	id := v.Addr().Interface().(identifierWrapper)
	if c.Kind() != KindBeginObject {
		return formatErrorf(c, "resource identifier must be an object, found %s", describe(c.Token()))
	}
	fork := c.Fork()
	err := eachMember(fork, func(name string) error {
		if name == "meta" {
			return d.decodeValue(fork, reflect.ValueOf(id.identifierMeta()).Elem())
		}
		return fork.SkipValue()
	})
	if err != nil {
		return err
	}
	return d.decodeValue(c, id.identifierValue())
}
