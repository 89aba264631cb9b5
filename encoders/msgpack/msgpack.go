// Package msgpack provides a MessagePack wire format for JSON:API documents.
// Documents keep the JSON:API shape; only the byte encoding changes, which
// makes it a compact choice for service-to-service traffic.
package msgpack

import (
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/RobertWHurst/jsonapi"
)

// Format is the MessagePack jsonapi.Format.
var Format jsonapi.Format = format{}

// New creates a codec that reads and writes MessagePack.
func New(opts ...jsonapi.Option) *jsonapi.Codec {
	return jsonapi.New(append([]jsonapi.Option{jsonapi.WithFormat(Format)}, opts...)...)
}

type format struct{}

func (format) Name() string { return "msgpack" }

func (format) NewReader(r io.Reader) jsonapi.TokenReader {
	return &reader{dec: msgpack.NewDecoder(r)}
}

func (format) NewWriter(w io.Writer) jsonapi.TokenWriter {
	return &writer{enc: msgpack.NewEncoder(w)}
}

type frame struct {
	object     bool
	remaining  int
	expectName bool
}

// reader streams tokens straight off the decoder. Maps and arrays are
// length-prefixed so end tokens are synthesized when a frame runs out.
type reader struct {
	dec    *msgpack.Decoder
	frames []frame
	done   bool
}

func (r *reader) Next() (jsonapi.Token, error) {
	if len(r.frames) == 0 {
		if r.done {
			return jsonapi.Token{Kind: jsonapi.KindEOF}, nil
		}
		r.done = true
		return r.readValue()
	}

	f := &r.frames[len(r.frames)-1]
	if f.remaining == 0 {
		r.frames = r.frames[:len(r.frames)-1]
		if f.object {
			return jsonapi.Token{Kind: jsonapi.KindEndObject}, nil
		}
		return jsonapi.Token{Kind: jsonapi.KindEndArray}, nil
	}
	if f.object && f.expectName {
		f.expectName = false
		name, err := r.dec.DecodeString()
		if err != nil {
			return jsonapi.Token{}, wrap(err, "map key")
		}
		return jsonapi.Token{Kind: jsonapi.KindName, Text: name}, nil
	}
	f.remaining--
	if f.object {
		f.expectName = true
	}
	return r.readValue()
}

func (r *reader) readValue() (jsonapi.Token, error) {
	c, err := r.dec.PeekCode()
	if err != nil {
		return jsonapi.Token{}, wrap(err, "peek")
	}

	switch {
	case c == msgpcode.Nil:
		if err := r.dec.DecodeNil(); err != nil {
			return jsonapi.Token{}, wrap(err, "nil")
		}
		return jsonapi.Token{Kind: jsonapi.KindNull}, nil
	case c == msgpcode.True || c == msgpcode.False:
		b, err := r.dec.DecodeBool()
		if err != nil {
			return jsonapi.Token{}, wrap(err, "bool")
		}
		return jsonapi.Token{Kind: jsonapi.KindBool, Bool: b}, nil
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := r.dec.DecodeMapLen()
		if err != nil {
			return jsonapi.Token{}, wrap(err, "map")
		}
		r.frames = append(r.frames, frame{object: true, remaining: n, expectName: true})
		return jsonapi.Token{Kind: jsonapi.KindBeginObject}, nil
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := r.dec.DecodeArrayLen()
		if err != nil {
			return jsonapi.Token{}, wrap(err, "array")
		}
		r.frames = append(r.frames, frame{remaining: n})
		return jsonapi.Token{Kind: jsonapi.KindBeginArray}, nil
	case msgpcode.IsString(c) || msgpcode.IsBin(c):
		s, err := r.dec.DecodeString()
		if err != nil {
			return jsonapi.Token{}, wrap(err, "string")
		}
		return jsonapi.Token{Kind: jsonapi.KindString, Text: s}, nil
	case msgpcode.IsExt(c):
		return jsonapi.Token{}, errors.Errorf("msgpack: extension types are not supported (code %#x)", c)
	}

	v, err := r.dec.DecodeInterfaceLoose()
	if err != nil {
		return jsonapi.Token{}, wrap(err, "number")
	}
	var lit string
	switch n := v.(type) {
	case int64:
		lit = strconv.FormatInt(n, 10)
	case uint64:
		lit = strconv.FormatUint(n, 10)
	case float64:
		lit = strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return jsonapi.Token{}, errors.Errorf("msgpack: unexpected %T", v)
	}
	return jsonapi.Token{Kind: jsonapi.KindNumber, Text: lit}, nil
}

func wrap(err error, what string) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrapf(err, "msgpack: decode %s", what)
}

// writer buffers the whole document because MessagePack containers are
// length-prefixed; lengths are known only once the document is complete.
type writer struct {
	jsonapi.TokenBuffer
	enc *msgpack.Encoder
}

func (w *writer) Flush() error {
	tokens := w.Tokens()
	lengths := jsonapi.ContainerLengths(tokens)
	for i, t := range tokens {
		var err error
		switch t.Kind {
		case jsonapi.KindBeginObject:
			err = w.enc.EncodeMapLen(lengths[i])
		case jsonapi.KindBeginArray:
			err = w.enc.EncodeArrayLen(lengths[i])
		case jsonapi.KindName, jsonapi.KindString:
			err = w.enc.EncodeString(t.Text)
		case jsonapi.KindNumber:
			err = w.encodeNumber(t.Text)
		case jsonapi.KindBool:
			err = w.enc.EncodeBool(t.Bool)
		case jsonapi.KindNull:
			err = w.enc.EncodeNil()
		}
		if err != nil {
			return errors.Wrap(err, "msgpack: encode")
		}
	}
	w.Reset()
	return nil
}

func (w *writer) encodeNumber(lit string) error {
	if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return w.enc.EncodeInt(n)
	}
	if n, err := strconv.ParseUint(lit, 10, 64); err == nil {
		return w.enc.EncodeUint(n)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return errors.Errorf("msgpack: invalid number literal %q", lit)
	}
	return w.enc.EncodeFloat64(f)
}
