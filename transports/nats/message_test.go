package nats

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/RobertWHurst/jsonapi"
)

func TestMessageInto(t *testing.T) {
	msg := &Message{
		Subject: "people",
		data:    strings.NewReader(`{"data":{"id":"7","type":"testperson","attributes":{"name":"Ada"}}}`),
		codec:   jsonapi.New(),
	}

	var person testPerson
	if err := msg.Into(&person); err != nil {
		t.Fatalf("Into() failed: %v", err)
	}
	if person.ID != "7" || person.Name != "Ada" {
		t.Errorf("Unexpected person: %+v", person)
	}
}

func TestMessageIntoWithError(t *testing.T) {
	expectedErr := errors.New("receive failed")
	msg := &Message{codec: jsonapi.New(), err: expectedErr}

	var person testPerson
	if err := msg.Into(&person); err != expectedErr {
		t.Errorf("Expected error %v, got %v", expectedErr, err)
	}
	if msg.Err() != expectedErr {
		t.Errorf("Expected Err() to return %v, got %v", expectedErr, msg.Err())
	}
}

func TestMessageRead(t *testing.T) {
	msg := &Message{data: strings.NewReader("raw document")}

	data, err := io.ReadAll(msg)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if string(data) != "raw document" {
		t.Errorf("Expected 'raw document', got '%s'", string(data))
	}
}

func TestMessageReadWithError(t *testing.T) {
	expectedErr := errors.New("receive failed")
	msg := &Message{err: expectedErr}

	buf := make([]byte, 10)
	n, err := msg.Read(buf)
	if err != expectedErr {
		t.Errorf("Expected error %v, got %v", expectedErr, err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes read, got %d", n)
	}
}

func TestMaxDecodeSize(t *testing.T) {
	oldMax := MaxDecodeSize
	defer func() { MaxDecodeSize = oldMax }()

	codec := jsonapi.New()
	var encoded bytes.Buffer
	if err := codec.EncodeTo(&encoded, &testPerson{ID: "1", Name: strings.Repeat("a", 64)}); err != nil {
		t.Fatalf("EncodeTo() failed: %v", err)
	}

	MaxDecodeSize = int64(encoded.Len() / 2)
	msg := &Message{data: &encoded, codec: codec}

	var person testPerson
	if err := msg.Into(&person); err == nil {
		t.Error("Expected error for document over MaxDecodeSize, got nil")
	}
}
