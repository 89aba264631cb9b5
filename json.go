package jsonapi

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// JSON is the default Format. Reading pulls tokens lazily from a
// jsoniter.Iterator, writing goes through a jsoniter.Stream.
var JSON Format = jsonFormat{}

const jsonBufferSize = 4096

var jsonConfig = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonFormat struct{}

func (jsonFormat) Name() string { return "json" }

func (jsonFormat) NewReader(r io.Reader) TokenReader {
	return &jsonReader{iter: jsoniter.Parse(jsonConfig, r, jsonBufferSize)}
}

func (jsonFormat) NewWriter(w io.Writer) TokenWriter {
	return &jsonWriter{stream: jsoniter.NewStream(jsonConfig, w, jsonBufferSize)}
}

type jsonFrame struct {
	array     bool
	first     bool
	more      bool
	firstKey  string
	afterName bool
}

// jsonReader turns the iterator's pull API into tokens. jsoniter reports
// the end of an object as an empty member name; JSON:API member names are
// never empty so the ambiguity does not arise.
type jsonReader struct {
	iter    *jsoniter.Iterator
	frames  []jsonFrame
	started bool
}

func (r *jsonReader) Next() (Token, error) {
	if len(r.frames) == 0 {
		if r.started {
			return Token{Kind: KindEOF}, nil
		}
		r.started = true
		return r.readValue()
	}

	f := &r.frames[len(r.frames)-1]
	if f.array {
		more := f.more
		if f.first {
			f.first = false
		} else {
			more = r.iter.ReadArray()
			if err := r.err(); err != nil {
				return Token{}, err
			}
		}
		if !more {
			r.frames = r.frames[:len(r.frames)-1]
			return Token{Kind: KindEndArray}, nil
		}
		return r.readValue()
	}

	if f.afterName {
		f.afterName = false
		return r.readValue()
	}
	key := f.firstKey
	if f.first {
		f.first = false
	} else {
		key = r.iter.ReadObject()
		if err := r.err(); err != nil {
			return Token{}, err
		}
	}
	if key == "" {
		r.frames = r.frames[:len(r.frames)-1]
		return Token{Kind: KindEndObject}, nil
	}
	f.afterName = true
	return Token{Kind: KindName, Text: key}, nil
}

func (r *jsonReader) readValue() (Token, error) {
	var t Token
	switch next := r.iter.WhatIsNext(); next {
	case jsoniter.ObjectValue:
		key := r.iter.ReadObject()
		r.frames = append(r.frames, jsonFrame{first: true, firstKey: key})
		t = Token{Kind: KindBeginObject}
	case jsoniter.ArrayValue:
		more := r.iter.ReadArray()
		r.frames = append(r.frames, jsonFrame{array: true, first: true, more: more})
		t = Token{Kind: KindBeginArray}
	case jsoniter.StringValue:
		t = Token{Kind: KindString, Text: r.iter.ReadString()}
	case jsoniter.NumberValue:
		t = Token{Kind: KindNumber, Text: string(r.iter.ReadNumber())}
	case jsoniter.BoolValue:
		t = Token{Kind: KindBool, Bool: r.iter.ReadBool()}
	case jsoniter.NilValue:
		r.iter.ReadNil()
		t = Token{Kind: KindNull}
	default:
		if err := r.err(); err != nil {
			return Token{}, err
		}
		return Token{}, errors.New("json: expected a value")
	}
	if err := r.err(); err != nil {
		return Token{}, err
	}
	return t, nil
}

func (r *jsonReader) err() error {
	if r.iter.Error == nil {
		return nil
	}
	if r.iter.Error == io.EOF {
		return errors.Wrap(io.ErrUnexpectedEOF, "json")
	}
	return errors.Wrap(r.iter.Error, "json")
}

type jsonWriter struct {
	stream    *jsoniter.Stream
	counts    []int
	afterName bool
}

func (w *jsonWriter) beforeValue() {
	if w.afterName {
		w.afterName = false
		return
	}
	if n := len(w.counts); n > 0 {
		if w.counts[n-1] > 0 {
			w.stream.WriteMore()
		}
		w.counts[n-1]++
	}
}

func (w *jsonWriter) BeginObject() {
	w.beforeValue()
	w.stream.WriteObjectStart()
	w.counts = append(w.counts, 0)
}

func (w *jsonWriter) EndObject() {
	w.counts = w.counts[:len(w.counts)-1]
	w.stream.WriteObjectEnd()
}

func (w *jsonWriter) BeginArray() {
	w.beforeValue()
	w.stream.WriteArrayStart()
	w.counts = append(w.counts, 0)
}

func (w *jsonWriter) EndArray() {
	w.counts = w.counts[:len(w.counts)-1]
	w.stream.WriteArrayEnd()
}

func (w *jsonWriter) Name(name string) {
	n := len(w.counts)
	if w.counts[n-1] > 0 {
		w.stream.WriteMore()
	}
	w.counts[n-1]++
	w.stream.WriteObjectField(name)
	w.afterName = true
}

func (w *jsonWriter) String(s string) {
	w.beforeValue()
	w.stream.WriteString(s)
}

func (w *jsonWriter) Number(literal string) {
	w.beforeValue()
	w.stream.WriteRaw(literal)
}

func (w *jsonWriter) Bool(b bool) {
	w.beforeValue()
	w.stream.WriteBool(b)
}

func (w *jsonWriter) Null() {
	w.beforeValue()
	w.stream.WriteNil()
}

func (w *jsonWriter) Flush() error {
	if len(w.counts) != 0 {
		return fmt.Errorf("json: flush with %d unclosed containers", len(w.counts))
	}
	if err := w.stream.Flush(); err != nil {
		return errors.Wrap(err, "json")
	}
	if w.stream.Error != nil {
		return errors.Wrap(w.stream.Error, "json")
	}
	return nil
}
