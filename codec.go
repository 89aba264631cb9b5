package jsonapi

import (
	"bytes"
	"io"
	"reflect"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// NullValueHandling selects whether nil attribute values are omitted or
// written as null.
type NullValueHandling uint8

const (
	// NullIgnore omits nil attribute values.
	NullIgnore NullValueHandling = iota
	// NullInclude writes nil attribute values as null.
	NullInclude
)

type options struct {
	format Format
	logger log.Logger
	nulls  NullValueHandling
	types  map[string]reflect.Type
}

// Option configures a Codec.
type Option func(*options)

// WithFormat sets the wire format. The default is JSON.
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNullValueHandling sets how nil attribute values are written.
func WithNullValueHandling(h NullValueHandling) Option {
	return func(o *options) { o.nulls = h }
}

// WithTypes registers resource types for decoding into interface-typed
// fields. Each sample is a resource struct or a pointer to one; its wire
// type is the sample's type field if set, else the lower-cased type name.
func WithTypes(samples ...any) Option {
	return func(o *options) {
		for _, sample := range samples {
			v := reflect.ValueOf(sample)
			for v.Kind() == reflect.Pointer {
				if v.IsNil() {
					v = reflect.Zero(v.Type().Elem())
					continue
				}
				v = v.Elem()
			}
			if !isResourceStruct(v.Type()) {
				panic("jsonapi: WithTypes: " + v.Type().String() + " is not a resource type")
			}
			o.types[contractFor(v.Type()).reference(v).Type] = v.Type()
		}
	}
}

// Codec encodes and decodes JSON:API documents. A Codec is safe for
// concurrent use; each call keeps its own state.
type Codec struct {
	opts options
}

var _ Encoder = &Codec{}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{opts: options{
		format: JSON,
		logger: log.NewNopLogger(),
		types:  make(map[string]reflect.Type),
	}}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

var defaultCodec = New()

// Marshal encodes v with the default JSON codec.
func Marshal(v any) ([]byte, error) {
	return defaultCodec.Encode(v)
}

// Unmarshal decodes data into v with the default JSON codec.
func Unmarshal(data []byte, v any) error {
	return defaultCodec.Decode(data, v)
}

// Format returns the codec's wire format.
func (c *Codec) Format() Format {
	return c.opts.format
}

// Encode serializes v, a Document, a resource, or a slice of resources.
func (c *Codec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodeTo(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo serializes v to w.
func (c *Codec) EncodeTo(w io.Writer, v any) error {
	tw := c.opts.format.NewWriter(w)
	e := &encodeState{session: newSession(c.opts.logger), opts: &c.opts}
	if err := e.encodeDocument(tw, reflect.ValueOf(v)); err != nil {
		return err
	}
	level.Debug(c.opts.logger).Log("msg", "encoded document", "format", c.opts.format.Name(), "resources", len(e.order)-1)
	return tw.Flush()
}

// Decode deserializes data into v, which must be a non-nil pointer.
func (c *Codec) Decode(data []byte, v any) error {
	return c.DecodeFrom(bytes.NewReader(data), v)
}

// DecodeFrom deserializes the document read from r into v.
func (c *Codec) DecodeFrom(r io.Reader, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Errorf("jsonapi: decode target must be a non-nil pointer, got %T", v)
	}
	cur, err := NewCursor(c.opts.format.NewReader(r))
	if err != nil {
		return err
	}
	d := &decodeState{session: newSession(c.opts.logger), opts: &c.opts}
	if err := d.decodeDocument(cur, rv); err != nil {
		return err
	}
	level.Debug(c.opts.logger).Log("msg", "decoded document", "format", c.opts.format.Name(), "resources", len(d.order)-1)
	return nil
}
