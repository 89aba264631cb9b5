package nats

import (
	"io"

	"github.com/RobertWHurst/jsonapi"
)

// Message is a document received from a Transport. Its payload is a
// stream; it can be decoded once, either with Into or by reading it.
type Message struct {
	Subject      string
	ReplySubject string

	data  io.Reader
	codec *jsonapi.Codec
	err   error
}

// Into decodes the document into v, reading at most MaxDecodeSize bytes.
// A document larger than the limit fails to decode as truncated input.
func (m *Message) Into(v any) error {
	if m.err != nil {
		return m.err
	}
	return m.codec.DecodeFrom(io.LimitReader(m.data, MaxDecodeSize), v)
}

// Read reads the raw encoded document.
func (m *Message) Read(p []byte) (n int, err error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.data.Read(p)
}

// Err returns the error that prevented the document from being received.
func (m *Message) Err() error {
	return m.err
}
