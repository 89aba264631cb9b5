package nats

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/RobertWHurst/jsonapi"
)

type testPerson struct {
	ID   string `jsonapi:"id"`
	Name string `jsonapi:"name"`
}

func collectChunks(t *testing.T, r io.Reader) [][]byte {
	t.Helper()
	var chunks [][]byte
	err := writeChunks(r, func(data []byte) error {
		chunks = append(chunks, append([]byte(nil), data...))
		return nil
	})
	if err != nil {
		t.Fatalf("writeChunks() failed: %v", err)
	}
	return chunks
}

func replay(chunks [][]byte) io.Reader {
	pr, pw := io.Pipe()
	go readChunks(func() ([]byte, error) {
		if len(chunks) == 0 {
			return nil, errors.New("no more chunks")
		}
		next := chunks[0]
		chunks = chunks[1:]
		return next, nil
	}, pw)
	return pr
}

func TestChunkRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), ChunkSize/4+3)

	chunks := collectChunks(t, bytes.NewReader(payload))
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	var last Chunk
	if err := msgpack.Unmarshal(chunks[len(chunks)-1], &last); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if !last.IsEOF {
		t.Error("Expected last chunk to be marked EOF")
	}

	result, err := io.ReadAll(replay(chunks))
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if !bytes.Equal(result, payload) {
		t.Errorf("Expected %d reassembled bytes, got %d", len(payload), len(result))
	}
}

func TestChunkEmptyPayload(t *testing.T) {
	chunks := collectChunks(t, strings.NewReader(""))
	if len(chunks) != 1 {
		t.Fatalf("Expected a single EOF chunk, got %d", len(chunks))
	}

	result, err := io.ReadAll(replay(chunks))
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected no data, got %d bytes", len(result))
	}
}

func TestChunkOutOfOrder(t *testing.T) {
	chunks := collectChunks(t, bytes.NewReader(bytes.Repeat([]byte("x"), ChunkSize*2)))
	chunks[0], chunks[1] = chunks[1], chunks[0]

	if _, err := io.ReadAll(replay(chunks)); err == nil {
		t.Error("Expected error for out of order chunks, got nil")
	}
}

func TestChunkErrorForwarded(t *testing.T) {
	readErr := errors.New("encode failed")
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte("partial"))
		pw.CloseWithError(readErr)
	}()

	var chunks [][]byte
	err := writeChunks(pr, func(data []byte) error {
		chunks = append(chunks, append([]byte(nil), data...))
		return nil
	})
	if err != readErr {
		t.Fatalf("Expected error %v, got %v", readErr, err)
	}

	_, err = io.ReadAll(replay(chunks))
	if err == nil || err.Error() != "encode failed" {
		t.Errorf("Expected forwarded error, got %v", err)
	}
}

func TestStreamedDocument(t *testing.T) {
	codec := jsonapi.New()

	var encoded bytes.Buffer
	if err := codec.EncodeTo(&encoded, &testPerson{ID: "1", Name: strings.Repeat("n", ChunkSize)}); err != nil {
		t.Fatalf("EncodeTo() failed: %v", err)
	}

	msg := &Message{Subject: "people", data: replay(collectChunks(t, &encoded)), codec: codec}

	var person testPerson
	if err := msg.Into(&person); err != nil {
		t.Fatalf("Into() failed: %v", err)
	}
	if person.ID != "1" || len(person.Name) != ChunkSize {
		t.Errorf("Unexpected person: id=%s name length=%d", person.ID, len(person.Name))
	}
}
