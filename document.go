package jsonapi

import (
	"fmt"
	"reflect"

	"github.com/go-kit/log/level"
)

// Document is a complete JSON:API document. Decoding into a Document keeps
// the top-level errors, meta, links and jsonapi members; any other target
// receives the primary data only.
type Document[T any] struct {
	Data    T
	Errors  Errors
	Meta    Meta
	Links   Links
	JSONAPI *Version
}

type documentParts interface {
	documentData() reflect.Value
	documentErrors() *Errors
	documentMeta() *Meta
	documentLinks() *Links
	documentVersion() **Version
}

func (d *Document[T]) documentData() reflect.Value {
	return reflect.ValueOf(&d.Data).Elem()
}

func (d *Document[T]) documentErrors() *Errors {
	return &d.Errors
}

func (d *Document[T]) documentMeta() *Meta {
	return &d.Meta
}

func (d *Document[T]) documentLinks() *Links {
	return &d.Links
}

func (d *Document[T]) documentVersion() **Version {
	return &d.JSONAPI
}

// encodeState is the state of one Encode call.
type encodeState struct {
	*session
	opts  *options
	probe *probe
}

// decodeState is the state of one Decode call.
type decodeState struct {
	*session
	opts *options
	// body is set while the next resource read is a full resource object
	// from primary data rather than an identifier.
	body bool
}

func asDocument(v reflect.Value) (documentParts, bool) {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, false
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() || !v.Type().Implements(documentType) {
			return nil, false
		}
		return v.Interface().(documentParts), true
	}
	if reflect.PointerTo(v.Type()).Implements(documentType) {
		return addressable(v).Interface().(documentParts), true
	}
	return nil, false
}

func (e *encodeState) encodeDocument(w TokenWriter, v reflect.Value) error {
	e.register(rootReference, v)

	data := v
	parts, isDocument := asDocument(v)
	if isDocument {
		data = parts.documentData()
	}

	var wroteData, wroteErrors, wroteMeta bool
	w.BeginObject()
	if !isNilValue(data) {
		w.Name("data")
		if err := e.encodeData(w, data); err != nil {
			return err
		}
		wroteData = true
	}
	if isDocument {
		if errs := *parts.documentErrors(); len(errs) > 0 {
			w.Name("errors")
			if err := e.encodeValue(w, reflect.ValueOf(errs)); err != nil {
				return err
			}
			wroteErrors = true
		}
		if meta := *parts.documentMeta(); len(meta) > 0 {
			w.Name("meta")
			if err := e.encodeValue(w, reflect.ValueOf(meta)); err != nil {
				return err
			}
			wroteMeta = true
		}
		if links := *parts.documentLinks(); len(links) > 0 {
			w.Name("links")
			if err := e.encodeValue(w, reflect.ValueOf(links)); err != nil {
				return err
			}
		}
		if version := *parts.documentVersion(); version != nil {
			w.Name("jsonapi")
			if err := e.encodeValue(w, reflect.ValueOf(version)); err != nil {
				return err
			}
		}
	}
	if !wroteData && !wroteErrors && !wroteMeta {
		w.Name("data")
		w.Null()
		wroteData = true
	}
	if wroteData {
		if err := e.encodeIncluded(w); err != nil {
			return err
		}
	}
	w.EndObject()
	return nil
}

// encodeData writes primary data: one resource or a list of them.
func (e *encodeState) encodeData(w TokenWriter, v reflect.Value) error {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if isNilValue(v) {
		w.Null()
		return nil
	}
	t := v.Type()
	switch {
	case t.Kind() == reflect.Pointer && isResourceStruct(t.Elem()):
		return e.encodeResource(w, v)
	case t.Kind() == reflect.Pointer:
		return e.encodeData(w, v.Elem())
	case isResourceStruct(t):
		return e.encodeResource(w, addressable(v))
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		w.BeginArray()
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			for elem.Kind() == reflect.Interface && !elem.IsNil() {
				elem = elem.Elem()
			}
			if elem.Kind() == reflect.Slice || elem.Kind() == reflect.Array {
				return fmt.Errorf("jsonapi: primary data element %d is not a resource", i)
			}
			if err := e.encodeData(w, elem); err != nil {
				return err
			}
		}
		w.EndArray()
		return nil
	}
	return fmt.Errorf("jsonapi: cannot encode %s as primary data", t)
}

// encodeIncluded drains the registry. Writing one included resource can
// register more, so the loop re-reads the registry length every pass.
func (e *encodeState) encodeIncluded(w TokenWriter) error {
	started := false
	for i := 0; i < len(e.order); i++ {
		ref := e.order[i]
		if ref == rootReference || e.isRendered(ref) {
			continue
		}
		if !started {
			w.Name("included")
			w.BeginArray()
			started = true
		}
		if err := e.encodeResource(w, e.included[ref].value); err != nil {
			return err
		}
	}
	if started {
		w.EndArray()
		level.Debug(e.logger).Log("msg", "wrote included", "references", len(e.order)-1)
	}
	return nil
}

func (d *decodeState) decodeDocument(c *Cursor, target reflect.Value) error {
	d.register(rootReference, target)

	parts, isDocument := asDocument(target)
	data := target.Elem()
	if isDocument {
		data = parts.documentData()
	}

	var (
		dataCursor *Cursor
		errs       Errors
	)
	err := eachMember(c, func(name string) error {
		switch name {
		case "data":
			// Primary data may reference included resources that have not
			// been read yet; replay it once the whole document is known.
			dataCursor = c.Fork()
			return c.SkipValue()
		case "included":
			return d.decodeIncluded(c)
		case "errors":
			if isDocument {
				return d.decodeValue(c, reflect.ValueOf(parts.documentErrors()).Elem())
			}
			return d.decodeValue(c, reflect.ValueOf(&errs).Elem())
		case "meta":
			if isDocument {
				return d.decodeValue(c, reflect.ValueOf(parts.documentMeta()).Elem())
			}
		case "links":
			if isDocument {
				return d.decodeValue(c, reflect.ValueOf(parts.documentLinks()).Elem())
			}
		case "jsonapi":
			if isDocument {
				return d.decodeValue(c, reflect.ValueOf(parts.documentVersion()).Elem())
			}
		}
		level.Debug(d.logger).Log("msg", "skipping top-level member", "member", name)
		return c.SkipValue()
	})
	if err != nil {
		return err
	}

	if dataCursor != nil {
		if err := d.decodeData(dataCursor, data); err != nil {
			return err
		}
	}
	d.runPostProcessing()

	if !isDocument && len(errs) > 0 {
		return errs
	}
	return nil
}

func (d *decodeState) decodeData(c *Cursor, v reflect.Value) error {
	d.body = true
	defer func() { d.body = false }()

	if c.Kind() == KindNull {
		if v.Kind() == reflect.Slice {
			v.Set(reflect.MakeSlice(v.Type(), 0, 0))
		} else {
			v.Set(reflect.Zero(v.Type()))
		}
		return c.Advance()
	}
	if isResourceStruct(v.Type()) {
		d.body = false
		return d.decodeResourceInto(c, v.Addr())
	}
	if v.Kind() == reflect.Slice && c.Kind() != KindBeginArray {
		return formatErrorf(c, "expected an array of resources, found %s", describe(c.Token()))
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Interface && c.Kind() != KindBeginObject {
		return formatErrorf(c, "expected a resource object, found %s", describe(c.Token()))
	}
	return d.decodeValue(c, v)
}

// decodeIncluded buffers every included resource as an opaque fork until a
// typed reference materializes it. A resource that is already concrete is
// re-read into the existing instance.
func (d *decodeState) decodeIncluded(c *Cursor) error {
	return eachElement(c, func(int) error {
		ref, err := d.readReference(c, reflect.TypeOf((*any)(nil)).Elem())
		if err != nil {
			return err
		}
		if ent, ok := d.lookup(ref); ok && ent.concrete() {
			ent.populated = true
			return d.populate(c, ent.value)
		}
		d.registerOpaque(ref, c.Fork())
		return c.SkipValue()
	})
}
