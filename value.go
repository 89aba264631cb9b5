package jsonapi

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
)

// encodeValue writes an arbitrary Go value. Resources are written as
// identifiers, which is what lets the probe recognise relationships.
func (e *encodeState) encodeValue(w TokenWriter, v reflect.Value) error {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			break
		}
		v = v.Elem()
	}
	if isNilValue(v) {
		w.Null()
		return nil
	}

	t := v.Type()
	if t.Kind() == reflect.Pointer {
		et := t.Elem()
		switch {
		case isResourceStruct(et):
			return e.encodeIdentifier(w, v, nil)
		case isEnvelope(et):
			return e.encodeEnvelope(w, v.Interface().(relationshipEnvelope))
		case isIdentifierWrapper(et):
			return e.encodeIdentifierWrapper(w, v.Interface().(identifierWrapper))
		case t.Implements(textMarshalerTyp):
			return encodeText(w, v.Interface().(encoding.TextMarshaler))
		}
		return e.encodeValue(w, v.Elem())
	}

	if t.Kind() == reflect.Struct {
		switch {
		case isResourceStruct(t):
			return e.encodeIdentifier(w, addressable(v), nil)
		case isEnvelope(t):
			return e.encodeEnvelope(w, addressable(v).Interface().(relationshipEnvelope))
		case isIdentifierWrapper(t):
			return e.encodeIdentifierWrapper(w, addressable(v).Interface().(identifierWrapper))
		case t == linkType:
			return e.encodeLink(w, v.Interface().(Link))
		}
	}
	if t.Implements(textMarshalerTyp) {
		return encodeText(w, v.Interface().(encoding.TextMarshaler))
	}
	if v.CanAddr() && reflect.PointerTo(t).Implements(textMarshalerTyp) {
		return encodeText(w, v.Addr().Interface().(encoding.TextMarshaler))
	}

	switch t.Kind() {
	case reflect.Bool:
		w.Bool(v.Bool())
	case reflect.String:
		w.String(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.Number(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.Number(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return fmt.Errorf("jsonapi: unsupported float value %v", f)
		}
		w.Number(strconv.FormatFloat(f, 'g', -1, t.Bits()))
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			w.String(base64.StdEncoding.EncodeToString(v.Bytes()))
			return nil
		}
		fallthrough
	case reflect.Array:
		w.BeginArray()
		for i := 0; i < v.Len(); i++ {
			if err := e.encodeValue(w, v.Index(i)); err != nil {
				return err
			}
		}
		w.EndArray()
	case reflect.Map:
		return e.encodeMap(w, v)
	case reflect.Struct:
		return e.encodeStruct(w, addressable(v).Elem())
	default:
		return fmt.Errorf("jsonapi: unsupported type %s", t)
	}
	return nil
}

func (e *encodeState) encodeMap(w TokenWriter, v reflect.Value) error {
	keys := make([]string, 0, v.Len())
	values := make(map[string]reflect.Value, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := mapKey(iter.Key())
		if err != nil {
			return err
		}
		keys = append(keys, k)
		values[k] = iter.Value()
	}
	slices.Sort(keys)

	w.BeginObject()
	for _, k := range keys {
		w.Name(k)
		if err := e.encodeValue(w, values[k]); err != nil {
			return err
		}
	}
	w.EndObject()
	return nil
}

func mapKey(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("jsonapi: unsupported map key type %s", k.Type())
}

// encodeStruct writes a plain (non-resource) struct as an object.
func (e *encodeState) encodeStruct(w TokenWriter, v reflect.Value) error {
	c := contractFor(v.Type())
	w.BeginObject()
	for _, p := range c.props {
		fv := c.field(v, p)
		if e.omit(p, fv) {
			continue
		}
		w.Name(p.name)
		if err := e.encodeValue(w, fv); err != nil {
			return err
		}
	}
	w.EndObject()
	return nil
}

func (e *encodeState) encodeLink(w TokenWriter, l Link) error {
	if len(l.Meta) == 0 {
		w.String(l.Href)
		return nil
	}
	w.BeginObject()
	w.Name("href")
	w.String(l.Href)
	w.Name("meta")
	if err := e.encodeValue(w, reflect.ValueOf(l.Meta)); err != nil {
		return err
	}
	w.EndObject()
	return nil
}

func encodeText(w TokenWriter, m encoding.TextMarshaler) error {
	text, err := m.MarshalText()
	if err != nil {
		return err
	}
	w.String(string(text))
	return nil
}

// decodeValue reads the value at c into the settable v.
func (d *decodeState) decodeValue(c *Cursor, v reflect.Value) error {
	if c.Kind() == KindNull {
		v.Set(reflect.Zero(v.Type()))
		return c.Advance()
	}

	t := v.Type()
	if t.Kind() == reflect.Pointer {
		if isResourceStruct(t.Elem()) {
			ptr, err := d.decodeResource(c, t.Elem())
			if err != nil {
				return err
			}
			v.Set(ptr)
			return nil
		}
		if v.IsNil() {
			v.Set(reflect.New(t.Elem()))
		}
		return d.decodeValue(c, v.Elem())
	}

	if t.Kind() == reflect.Struct {
		switch {
		case isResourceStruct(t):
			ptr, err := d.decodeResource(c, t)
			if err != nil {
				return err
			}
			// Value-typed resources are copied once the whole graph exists,
			// so fields filled in later (cycles) are not lost.
			d.enqueue(func() { v.Set(ptr.Elem()) })
			return nil
		case isEnvelope(t):
			return d.decodeRelationship(c, v)
		case isIdentifierWrapper(t):
			return d.decodeIdentifierWrapper(c, v)
		case t == linkType:
			return d.decodeLink(c, v)
		}
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerTyp) {
		if c.Kind() != KindString {
			return formatErrorf(c, "expected string for %s, found %s", t, describe(c.Token()))
		}
		if err := v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(c.Text())); err != nil {
			return err
		}
		return c.Advance()
	}

	switch t.Kind() {
	case reflect.Interface:
		if t.NumMethod() == 0 {
			x, err := d.decodeAny(c)
			if err != nil {
				return err
			}
			if x == nil {
				v.Set(reflect.Zero(t))
			} else {
				v.Set(reflect.ValueOf(x))
			}
			return nil
		}
		ptr, err := d.decodeResource(c, t)
		if err != nil {
			return err
		}
		v.Set(ptr)
		return nil
	case reflect.Bool:
		if c.Kind() != KindBool {
			return formatErrorf(c, "expected boolean, found %s", describe(c.Token()))
		}
		v.SetBool(c.Token().Bool)
	case reflect.String:
		if c.Kind() != KindString {
			return formatErrorf(c, "expected string, found %s", describe(c.Token()))
		}
		v.SetString(c.Text())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if c.Kind() != KindNumber {
			return formatErrorf(c, "expected number, found %s", describe(c.Token()))
		}
		n, err := strconv.ParseInt(c.Text(), 10, t.Bits())
		if err != nil {
			return formatErrorf(c, "invalid %s %q", t, c.Text())
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if c.Kind() != KindNumber {
			return formatErrorf(c, "expected number, found %s", describe(c.Token()))
		}
		n, err := strconv.ParseUint(c.Text(), 10, t.Bits())
		if err != nil {
			return formatErrorf(c, "invalid %s %q", t, c.Text())
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		if c.Kind() != KindNumber {
			return formatErrorf(c, "expected number, found %s", describe(c.Token()))
		}
		f, err := strconv.ParseFloat(c.Text(), t.Bits())
		if err != nil {
			return formatErrorf(c, "invalid %s %q", t, c.Text())
		}
		v.SetFloat(f)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && c.Kind() == KindString {
			b, err := base64.StdEncoding.DecodeString(c.Text())
			if err != nil {
				return formatErrorf(c, "invalid base64 data")
			}
			v.SetBytes(b)
			break
		}
		return d.decodeSlice(c, v)
	case reflect.Array:
		return d.decodeArray(c, v)
	case reflect.Map:
		return d.decodeMap(c, v)
	case reflect.Struct:
		return d.decodeStruct(c, v)
	default:
		return fmt.Errorf("jsonapi: unsupported type %s", t)
	}
	return c.Advance()
}

// decodeSlice sizes the slice from a fork first so elements are decoded in
// place and keep stable addresses for post-processing.
func (d *decodeState) decodeSlice(c *Cursor, v reflect.Value) error {
	n := 0
	fork := c.Fork()
	if err := eachElement(fork, func(int) error {
		n++
		return fork.SkipValue()
	}); err != nil {
		return err
	}
	v.Set(reflect.MakeSlice(v.Type(), n, n))
	return eachElement(c, func(i int) error {
		return d.decodeValue(c, v.Index(i))
	})
}

func (d *decodeState) decodeArray(c *Cursor, v reflect.Value) error {
	return eachElement(c, func(i int) error {
		if i >= v.Len() {
			return c.SkipValue()
		}
		return d.decodeValue(c, v.Index(i))
	})
}

func (d *decodeState) decodeMap(c *Cursor, v reflect.Value) error {
	t := v.Type()
	if v.IsNil() {
		v.Set(reflect.MakeMap(t))
	}
	return eachMember(c, func(name string) error {
		key := reflect.New(t.Key()).Elem()
		switch t.Key().Kind() {
		case reflect.String:
			key.SetString(name)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(name, 10, t.Key().Bits())
			if err != nil {
				return formatErrorf(c, "invalid map key %q", name)
			}
			key.SetInt(n)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(name, 10, t.Key().Bits())
			if err != nil {
				return formatErrorf(c, "invalid map key %q", name)
			}
			key.SetUint(n)
		default:
			return fmt.Errorf("jsonapi: unsupported map key type %s", t.Key())
		}
		if c.Kind() != KindNull && isResourceStruct(t.Elem()) {
			// Map elements are not addressable; copy the resource in once
			// the graph is complete.
			ptr, err := d.decodeResource(c, t.Elem())
			if err != nil {
				return err
			}
			d.enqueue(func() { v.SetMapIndex(key, ptr.Elem()) })
			return nil
		}
		elem := reflect.New(t.Elem()).Elem()
		if err := d.decodeValue(c, elem); err != nil {
			return err
		}
		v.SetMapIndex(key, elem)
		return nil
	})
}

// decodeStruct reads a plain (non-resource) struct.
func (d *decodeState) decodeStruct(c *Cursor, v reflect.Value) error {
	ctr := contractFor(v.Type())
	return eachMember(c, func(name string) error {
		p := ctr.byName[name]
		if p == nil {
			return c.SkipValue()
		}
		return d.decodeValue(c, ctr.field(v, p))
	})
}

func (d *decodeState) decodeLink(c *Cursor, v reflect.Value) error {
	link := v.Addr().Interface().(*Link)
	if c.Kind() == KindString {
		*link = Link{Href: c.Text()}
		return c.Advance()
	}
	return eachMember(c, func(name string) error {
		switch name {
		case "href":
			if c.Kind() != KindString {
				return formatErrorf(c, "href must be a string, found %s", describe(c.Token()))
			}
			link.Href = c.Text()
			return c.Advance()
		case "meta":
			return d.decodeValue(c, reflect.ValueOf(&link.Meta).Elem())
		}
		return c.SkipValue()
	})
}

// decodeAny reads a value into its natural Go representation. Objects that
// identify an already-decoded resource or a resource of a registered type
// resolve to that resource.
func (d *decodeState) decodeAny(c *Cursor) (any, error) {
	switch c.Kind() {
	case KindBeginObject:
		if ptr, ok, err := d.tryDecodeResource(c); err != nil || ok {
			if err != nil {
				return nil, err
			}
			return ptr.Interface(), nil
		}
		body := d.body
		d.body = false
		m := make(map[string]any)
		err := eachMember(c, func(name string) error {
			x, err := d.decodeAny(c)
			m[name] = x
			return err
		})
		d.body = body
		return m, err
	case KindBeginArray:
		list := []any{}
		err := eachElement(c, func(int) error {
			x, err := d.decodeAny(c)
			list = append(list, x)
			return err
		})
		return list, err
	case KindString:
		s := c.Text()
		return s, c.Advance()
	case KindNumber:
		f, err := strconv.ParseFloat(c.Text(), 64)
		if err != nil {
			return nil, formatErrorf(c, "invalid number %q", c.Text())
		}
		return f, c.Advance()
	case KindBool:
		b := c.Token().Bool
		return b, c.Advance()
	case KindNull:
		return nil, c.Advance()
	}
	return nil, formatErrorf(c, "expected a value, found %s", describe(c.Token()))
}

func (d *decodeState) tryDecodeResource(c *Cursor) (reflect.Value, bool, error) {
	ref, ok, err := ReadReference(c.Fork())
	if err != nil || !ok || ref.ID == "" {
		// Not shaped like a resource; decode as a plain object.
		return reflect.Value{}, false, nil
	}
	if ent, found := d.lookup(ref); found && ent.concrete() {
		ptr, err := d.decodeResource(c, ent.value.Type().Elem())
		return ptr, true, err
	}
	typ, registered := d.opts.types[ref.Type]
	if !registered {
		return reflect.Value{}, false, nil
	}
	ptr, err := d.decodeResource(c, typ)
	return ptr, true, err
}

var textUnmarshalerTyp = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// addressable returns a pointer to v, copying v when it is not addressable.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}
