package jsonapi

import (
	"encoding"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

type propertyKind uint8

const (
	propAttribute propertyKind = iota
	propID
	propType
	propLinks
	propMeta
	propRelationship
	propAmbiguous
)

func (k propertyKind) String() string {
	switch k {
	case propID:
		return "id"
	case propType:
		return "type"
	case propLinks:
		return "links"
	case propMeta:
		return "meta"
	case propRelationship:
		return "relationship"
	case propAmbiguous:
		return "ambiguous"
	default:
		return "attribute"
	}
}

// property is one wire member of a struct type.
type property struct {
	name      string
	kind      propertyKind
	index     []int
	typ       reflect.Type
	omitEmpty bool
	toMany    bool
}

// contract is the resolved property list of a struct type, computed once
// per type and cached.
type contract struct {
	typ      reflect.Type
	props    []*property
	byName   map[string]*property
	id       *property
	wireType *property
	links    *property
	meta     *property
	typeName string
}

// resource reports whether values of the type are resource objects.
func (c *contract) resource() bool { return c.id != nil }

func (c *contract) field(v reflect.Value, p *property) reflect.Value {
	return v.FieldByIndex(p.index)
}

// reference returns the wire identity of v, a struct value of c.typ.
func (c *contract) reference(v reflect.Value) Reference {
	ref := Reference{Type: c.typeName}
	if c.wireType != nil {
		if t := c.field(v, c.wireType).String(); t != "" {
			ref.Type = t
		}
	}
	if c.id != nil {
		ref.ID = formatID(c.field(v, c.id))
	}
	return ref
}

func (c *contract) setReference(v reflect.Value, ref Reference) error {
	if c.wireType != nil && ref.Type != "" {
		c.field(v, c.wireType).SetString(ref.Type)
	}
	if c.id != nil && ref.ID != "" {
		return parseID(c.field(v, c.id), ref.ID)
	}
	return nil
}

var (
	linksType        = reflect.TypeOf(Links(nil))
	metaType         = reflect.TypeOf(Meta(nil))
	linkType         = reflect.TypeOf(Link{})
	envelopeType     = reflect.TypeOf((*relationshipEnvelope)(nil)).Elem()
	identifierType   = reflect.TypeOf((*identifierWrapper)(nil)).Elem()
	textMarshalerTyp = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	documentType     = reflect.TypeOf((*documentParts)(nil)).Elem()
)

var contracts sync.Map

func contractFor(t reflect.Type) *contract {
	if c, ok := contracts.Load(t); ok {
		return c.(*contract)
	}
	c := buildContract(t)
	actual, _ := contracts.LoadOrStore(t, c)
	return actual.(*contract)
}

func buildContract(t reflect.Type) *contract {
	c := &contract{
		typ:      t,
		byName:   make(map[string]*property),
		typeName: strings.ToLower(t.Name()),
	}
	for _, p := range structProperties(t, nil) {
		if _, dup := c.byName[p.name]; dup {
			continue
		}
		switch p.kind {
		case propID:
			c.id = p
		case propType:
			c.wireType = p
		case propLinks:
			c.links = p
		case propMeta:
			c.meta = p
		case propRelationship:
			p.toMany = isToMany(p.typ)
		}
		c.props = append(c.props, p)
		c.byName[p.name] = p
	}
	return c
}

func structProperties(t reflect.Type, prefix []int) []*property {
	var props []*property
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, hasTag := f.Tag.Lookup("jsonapi")
		jsonTag, hasJSONTag := f.Tag.Lookup("json")
		if tag == "-" || (!hasTag && jsonTag == "-") {
			continue
		}
		index := append(append([]int(nil), prefix...), i)

		name, opts := parseTag(tag)
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			props = append(props, structProperties(f.Type, index)...)
			continue
		}
		if !f.IsExported() {
			continue
		}

		fromTag := name != ""
		if name == "" && hasJSONTag {
			var jsonOpts tagOptions
			name, jsonOpts = parseTag(jsonTag)
			opts += "," + jsonOpts
		}
		if name == "" {
			name = lowerCamel(f.Name)
		}
		untagged := !hasTag && !hasJSONTag

		p := &property{name: name, index: index, typ: f.Type, omitEmpty: opts.has("omitempty")}
		switch {
		case (fromTag && name == "id") || (untagged && f.Name == "ID"):
			p.kind = propID
		case (fromTag && name == "type") || (untagged && f.Name == "Type" && f.Type.Kind() == reflect.String):
			p.kind = propType
		case name == "links" && f.Type == linksType:
			p.kind = propLinks
		case name == "meta" && f.Type == metaType:
			p.kind = propMeta
		default:
			p.kind = classify(f.Type)
		}
		props = append(props, p)
	}
	return props
}

// classify decides the static kind of a field type. Types that may hold a
// resource only at run time are ambiguous and classified by a write probe.
func classify(t reflect.Type) propertyKind {
	if isRelationshipType(t) {
		return propRelationship
	}
	if mayContainResource(t, map[reflect.Type]bool{}) {
		return propAmbiguous
	}
	return propAttribute
}

func isRelationshipType(t reflect.Type) bool {
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		return isSingleRelationshipType(t.Elem())
	}
	return isSingleRelationshipType(t) || isEnvelope(t)
}

func isSingleRelationshipType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return isResourceStruct(t) || isIdentifierWrapper(t)
}

func isToMany(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if isEnvelope(t) {
		t = envelopeDataType(t)
	}
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

func isEnvelope(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(envelopeType)
}

func isIdentifierWrapper(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(identifierType)
}

func envelopeDataType(t reflect.Type) reflect.Type {
	return reflect.New(t).Interface().(relationshipEnvelope).relationshipData().Type()
}

func isTextMarshaler(t reflect.Type) bool {
	return t.Implements(textMarshalerTyp) || reflect.PointerTo(t).Implements(textMarshalerTyp)
}

var resourceStructs sync.Map

// isResourceStruct reports whether t is a struct with an id property. It
// does not build the full contract so mutually referencing types resolve
// without recursion.
func isResourceStruct(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	if v, ok := resourceStructs.Load(t); ok {
		return v.(bool)
	}
	found := hasIDField(t)
	resourceStructs.Store(t, found)
	return found
}

func hasIDField(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, hasTag := f.Tag.Lookup("jsonapi")
		_, hasJSONTag := f.Tag.Lookup("json")
		name, _ := parseTag(tag)
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			if hasIDField(f.Type) {
				return true
			}
			continue
		}
		if !f.IsExported() || tag == "-" {
			continue
		}
		if name == "id" || (!hasTag && !hasJSONTag && f.Name == "ID") {
			return true
		}
	}
	return false
}

func mayContainResource(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return mayContainResource(t.Elem(), seen)
	case reflect.Struct:
		if isResourceStruct(t) || isEnvelope(t) || isIdentifierWrapper(t) {
			return true
		}
		if t == linkType || isTextMarshaler(t) {
			return false
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if (f.IsExported() || f.Anonymous) && mayContainResource(f.Type, seen) {
				return true
			}
		}
	}
	return false
}

type tagOptions string

func parseTag(tag string) (string, tagOptions) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, tagOptions(opts)
}

func (o tagOptions) has(name string) bool {
	return hasTagOption(string(o), name)
}

func hasTagOption(opts, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}

// lowerCamel lower-cases the leading upper-case run of a Go identifier:
// Name -> name, ID -> id, URLPath -> urlPath.
func lowerCamel(s string) string {
	runes := []rune(s)
	for i := range runes {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func formatID(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Int() == 0 {
			return ""
		}
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() == 0 {
			return ""
		}
		return strconv.FormatUint(v.Uint(), 10)
	}
	return ""
}

func parseID(v reflect.Value, id string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(id)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(id, 10, v.Type().Bits())
		if err != nil {
			return &FormatError{Message: "id " + strconv.Quote(id) + " is not an integer"}
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(id, 10, v.Type().Bits())
		if err != nil {
			return &FormatError{Message: "id " + strconv.Quote(id) + " is not an unsigned integer"}
		}
		v.SetUint(n)
	}
	return nil
}
