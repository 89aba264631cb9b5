package jsonapi

import (
	"reflect"

	"github.com/go-kit/log/level"
)

// encodeResource writes the full resource object for ptr, a pointer to a
// resource struct, and marks it rendered.
func (e *encodeState) encodeResource(w TokenWriter, ptr reflect.Value) error {
	v := ptr.Elem()
	c := contractFor(v.Type())
	ref := c.reference(v)

	// id and type are committed before any field so relationships pointing
	// back at this resource resolve to a bare identifier.
	w.BeginObject()
	if ref.ID != "" {
		w.Name("id")
		w.String(ref.ID)
		e.register(ref, ptr)
		e.markRendered(ref)
	}
	w.Name("type")
	w.String(ref.Type)

	var attributes, relationships TokenBuffer
	for _, p := range c.props {
		fv := c.field(v, p)
		switch p.kind {
		case propAttribute:
			if e.omit(p, fv) {
				continue
			}
			attributes.Name(p.name)
			if err := e.encodeValue(&attributes, fv); err != nil {
				return err
			}
		case propRelationship:
			if p.omitEmpty && fv.IsZero() {
				continue
			}
			relationships.Name(p.name)
			if err := e.encodeRelationship(&relationships, fv, p.toMany); err != nil {
				return err
			}
		case propAmbiguous:
			if e.omit(p, fv) {
				continue
			}
			if err := e.encodeAmbiguous(&attributes, &relationships, p, fv); err != nil {
				return err
			}
		}
	}

	if attributes.Len() > 0 {
		w.Name("attributes")
		w.BeginObject()
		attributes.WriteTo(w)
		w.EndObject()
	}
	if relationships.Len() > 0 {
		w.Name("relationships")
		w.BeginObject()
		relationships.WriteTo(w)
		w.EndObject()
	}
	if c.links != nil {
		if links := c.field(v, c.links); links.Len() > 0 {
			w.Name("links")
			if err := e.encodeValue(w, links); err != nil {
				return err
			}
		}
	}
	if c.meta != nil {
		if meta := c.field(v, c.meta); meta.Len() > 0 {
			w.Name("meta")
			if err := e.encodeValue(w, meta); err != nil {
				return err
			}
		}
	}
	w.EndObject()
	return nil
}

// encodeIdentifier writes the bare identifier of ptr and decides whether
// its body belongs in included. A resource with nothing but id, type and
// meta carries its meta inline and is not included.
func (e *encodeState) encodeIdentifier(w TokenWriter, ptr reflect.Value, meta Meta) error {
	e.mark(w, markIdentifier)
	v := ptr.Elem()
	c := contractFor(v.Type())
	ref := c.reference(v)

	if e.isEmptyResource(c, v) {
		if len(meta) == 0 && c.meta != nil {
			meta = c.field(v, c.meta).Interface().(Meta)
		}
	} else if ref.ID == "" {
		level.Debug(e.logger).Log("msg", "related resource has no id, not included", "type", ref.Type)
	} else if !e.isRendered(ref) {
		e.register(ref, ptr)
	}

	w.BeginObject()
	if ref.ID != "" {
		w.Name("id")
		w.String(ref.ID)
	}
	w.Name("type")
	w.String(ref.Type)
	if len(meta) > 0 {
		w.Name("meta")
		if err := e.encodeValue(w, reflect.ValueOf(meta)); err != nil {
			return err
		}
	}
	w.EndObject()
	return nil
}

// isEmptyResource reports whether encoding v would produce no attributes,
// relationships or links.
func (e *encodeState) isEmptyResource(c *contract, v reflect.Value) bool {
	for _, p := range c.props {
		fv := c.field(v, p)
		switch p.kind {
		case propLinks:
			if fv.Len() > 0 {
				return false
			}
		case propAttribute, propAmbiguous:
			if !e.omit(p, fv) {
				return false
			}
		case propRelationship:
			if !p.omitEmpty || !fv.IsZero() {
				return false
			}
		}
	}
	return true
}

func (e *encodeState) omit(p *property, v reflect.Value) bool {
	if p.omitEmpty && v.IsZero() {
		return true
	}
	return e.opts.nulls == NullIgnore && isNilValue(v)
}

// decodeResource resolves the resource object at c into a pointer whose
// type is target (a struct type) or implements target (an interface type).
// Repeated references within a document resolve to the same pointer.
func (d *decodeState) decodeResource(c *Cursor, target reflect.Type) (reflect.Value, error) {
	body := d.body
	d.body = false
	defer func() { d.body = body }()

	ref, err := d.readReference(c, target)
	if err != nil {
		return reflect.Value{}, err
	}
	want := target
	if target.Kind() == reflect.Struct {
		want = reflect.PointerTo(target)
	}

	if ref.ID != "" {
		if ent, ok := d.lookup(ref); ok {
			if ent.concrete() {
				if !ent.value.Type().AssignableTo(want) {
					return reflect.Value{}, &TypeMismatchError{Path: c.Path(), Reference: ref, Expected: want, Actual: ent.value.Type()}
				}
				if !body || ent.populated {
					return ent.value, c.SkipValue()
				}
				// Created earlier from an identifier; this is its full object.
				ent.populated = true
				return ent.value, d.populate(c, ent.value)
			}

			buffered := ent.opaque
			typ, err := d.resolveType(c, target, ref)
			if err != nil {
				return reflect.Value{}, err
			}
			inst := reflect.New(typ)
			d.register(ref, inst)
			d.markPopulated(ref)
			level.Debug(d.logger).Log("msg", "materializing included resource", "ref", ref, "type", typ)
			if err := d.populate(buffered.Fork(), inst); err != nil {
				return reflect.Value{}, err
			}
			if body {
				return inst, d.populate(c, inst)
			}
			return inst, c.SkipValue()
		}
	}

	typ, err := d.resolveType(c, target, ref)
	if err != nil {
		return reflect.Value{}, err
	}
	inst := reflect.New(typ)
	if ref.ID != "" {
		d.register(ref, inst)
		if body {
			d.markPopulated(ref)
		}
	}
	if err := d.populate(c, inst); err != nil {
		return reflect.Value{}, err
	}
	return inst, nil
}

// decodeResourceInto populates the caller-provided resource ptr from the
// object at c and registers it under its reference. When the same resource
// was also sent in included, that body is read first and the primary
// object's members win.
func (d *decodeState) decodeResourceInto(c *Cursor, ptr reflect.Value) error {
	ref, err := d.readReference(c, ptr.Type().Elem())
	if err != nil {
		return err
	}
	if ref.ID == "" {
		return d.populate(c, ptr)
	}
	var buffered *Cursor
	if ent, ok := d.lookup(ref); ok && !ent.concrete() {
		buffered = ent.opaque
	}
	d.register(ref, ptr)
	d.markPopulated(ref)
	if buffered != nil {
		level.Debug(d.logger).Log("msg", "merging included copy of primary resource", "ref", ref)
		if err := d.populate(buffered.Fork(), ptr); err != nil {
			return err
		}
	}
	return d.populate(c, ptr)
}

func (d *decodeState) readReference(c *Cursor, target reflect.Type) (Reference, error) {
	if c.Kind() != KindBeginObject {
		return Reference{}, formatErrorf(c, "resource must be an object, found %s", describe(c.Token()))
	}
	ref, ok, err := ReadReference(c.Fork())
	if err != nil {
		return Reference{}, err
	}
	if !ok {
		if target.Kind() != reflect.Struct {
			return Reference{}, formatErrorf(c, "resource has no type")
		}
		ref.Type = contractFor(target).typeName
	}
	return ref, nil
}

func (d *decodeState) resolveType(c *Cursor, target reflect.Type, ref Reference) (reflect.Type, error) {
	if target.Kind() == reflect.Struct {
		return target, nil
	}
	typ, ok := d.opts.types[ref.Type]
	if !ok {
		return nil, formatErrorf(c, "no Go type registered for resource type %q", ref.Type)
	}
	if !reflect.PointerTo(typ).AssignableTo(target) {
		return nil, &TypeMismatchError{Path: c.Path(), Reference: ref, Expected: target, Actual: reflect.PointerTo(typ)}
	}
	return typ, nil
}

// populate assigns the members of the resource object at c to inst. The
// members of attributes and relationships land in the same namespace as
// top-level members; later assignments win.
func (d *decodeState) populate(c *Cursor, inst reflect.Value) error {
	v := inst.Elem()
	ctr := contractFor(v.Type())
	return eachMember(c, func(name string) error {
		switch name {
		case "attributes", "relationships":
			if c.Kind() != KindBeginObject {
				return formatErrorf(c, "%s must be an object, found %s", name, describe(c.Token()))
			}
			section := name
			return eachMember(c, func(inner string) error {
				return d.populateProperty(c, ctr, v, inner, section)
			})
		case "id", "type":
			if c.Kind() != KindString {
				return formatErrorf(c, "%s must be a string, found %s", name, describe(c.Token()))
			}
			ref := Reference{}
			if name == "id" {
				ref.ID = c.Text()
			} else {
				ref.Type = c.Text()
			}
			if err := ctr.setReference(v, ref); err != nil {
				if fe, ok := err.(*FormatError); ok {
					fe.Path = c.Path()
				}
				return err
			}
			return c.Advance()
		default:
			return d.populateProperty(c, ctr, v, name, "")
		}
	})
}

func (d *decodeState) populateProperty(c *Cursor, ctr *contract, v reflect.Value, name, section string) error {
	p := ctr.byName[name]
	if p == nil || p.kind == propID || p.kind == propType {
		level.Debug(d.logger).Log("msg", "skipping member", "path", c.Path(), "type", ctr.typ)
		return c.SkipValue()
	}
	fv := ctr.field(v, p)
	if section == "relationships" {
		return d.decodeRelationship(c, fv)
	}
	return d.decodeValue(c, fv)
}
