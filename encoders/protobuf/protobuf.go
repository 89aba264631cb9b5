// Package protobuf carries JSON:API documents as a google.protobuf.Value.
// Peers that already speak protobuf can exchange documents without a JSON
// text layer; object members are written in sorted key order.
package protobuf

import (
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RobertWHurst/jsonapi"
)

// Format is the protobuf jsonapi.Format.
var Format jsonapi.Format = format{}

// New creates a codec that reads and writes protobuf.
func New(opts ...jsonapi.Option) *jsonapi.Codec {
	return jsonapi.New(append([]jsonapi.Option{jsonapi.WithFormat(Format)}, opts...)...)
}

type format struct{}

func (format) Name() string { return "protobuf" }

func (format) NewReader(r io.Reader) jsonapi.TokenReader {
	return &reader{src: r}
}

func (format) NewWriter(w io.Writer) jsonapi.TokenWriter {
	return &writer{dst: w}
}

// reader unmarshals the message on the first call and replays it as
// tokens; protobuf has no streaming decoder.
type reader struct {
	src    io.Reader
	tokens jsonapi.TokenReader
}

func (r *reader) Next() (jsonapi.Token, error) {
	if r.tokens == nil {
		data, err := io.ReadAll(r.src)
		if err != nil {
			return jsonapi.Token{}, errors.Wrap(err, "protobuf: read")
		}
		var root structpb.Value
		if err := proto.Unmarshal(data, &root); err != nil {
			return jsonapi.Token{}, errors.Wrap(err, "protobuf: unmarshal")
		}
		var buf jsonapi.TokenBuffer
		if err := flatten(&buf, &root); err != nil {
			return jsonapi.Token{}, err
		}
		r.tokens = buf.Reader()
	}
	return r.tokens.Next()
}

func flatten(w jsonapi.TokenWriter, v *structpb.Value) error {
	switch k := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		w.Null()
	case *structpb.Value_BoolValue:
		w.Bool(k.BoolValue)
	case *structpb.Value_NumberValue:
		w.Number(formatNumber(k.NumberValue))
	case *structpb.Value_StringValue:
		w.String(k.StringValue)
	case *structpb.Value_ListValue:
		w.BeginArray()
		for _, elem := range k.ListValue.GetValues() {
			if err := flatten(w, elem); err != nil {
				return err
			}
		}
		w.EndArray()
	case *structpb.Value_StructValue:
		fields := k.StructValue.GetFields()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		w.BeginObject()
		for _, name := range names {
			w.Name(name)
			if err := flatten(w, fields[name]); err != nil {
				return err
			}
		}
		w.EndObject()
	default:
		return errors.Errorf("protobuf: unsupported value kind %T", k)
	}
	return nil
}

// formatNumber writes integral values without an exponent so integer
// fields can parse them back.
func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// writer collects the document and builds the message tree on Flush.
type writer struct {
	jsonapi.TokenBuffer
	dst io.Writer
}

func (w *writer) Flush() error {
	tokens := w.Tokens()
	if len(tokens) == 0 {
		return nil
	}
	root, next, err := build(tokens, 0)
	if err != nil {
		return err
	}
	if next != len(tokens) {
		return errors.Errorf("protobuf: %d trailing tokens", len(tokens)-next)
	}
	data, err := proto.Marshal(root)
	if err != nil {
		return errors.Wrap(err, "protobuf: marshal")
	}
	if _, err := w.dst.Write(data); err != nil {
		return errors.Wrap(err, "protobuf: write")
	}
	w.Reset()
	return nil
}

// build returns the value starting at tokens[i] and the index after it.
func build(tokens []jsonapi.Token, i int) (*structpb.Value, int, error) {
	if i >= len(tokens) {
		return nil, i, errors.New("protobuf: unexpected end of tokens")
	}
	t := tokens[i]
	switch t.Kind {
	case jsonapi.KindNull:
		return structpb.NewNullValue(), i + 1, nil
	case jsonapi.KindBool:
		return structpb.NewBoolValue(t.Bool), i + 1, nil
	case jsonapi.KindString:
		return structpb.NewStringValue(t.Text), i + 1, nil
	case jsonapi.KindNumber:
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, i, errors.Errorf("protobuf: invalid number literal %q", t.Text)
		}
		return structpb.NewNumberValue(f), i + 1, nil
	case jsonapi.KindBeginArray:
		list := &structpb.ListValue{}
		i++
		for i < len(tokens) && tokens[i].Kind != jsonapi.KindEndArray {
			elem, next, err := build(tokens, i)
			if err != nil {
				return nil, i, err
			}
			list.Values = append(list.Values, elem)
			i = next
		}
		return structpb.NewListValue(list), i + 1, nil
	case jsonapi.KindBeginObject:
		obj := &structpb.Struct{Fields: make(map[string]*structpb.Value)}
		i++
		for i < len(tokens) && tokens[i].Kind != jsonapi.KindEndObject {
			if tokens[i].Kind != jsonapi.KindName {
				return nil, i, errors.Errorf("protobuf: expected member name, got %s", tokens[i])
			}
			name := tokens[i].Text
			member, next, err := build(tokens, i+1)
			if err != nil {
				return nil, i, err
			}
			obj.Fields[name] = member
			i = next
		}
		return structpb.NewStructValue(obj), i + 1, nil
	}
	return nil, i, errors.Errorf("protobuf: unexpected token %s", t)
}
