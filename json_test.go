package jsonapi

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r TokenReader) []Token {
	t.Helper()
	var tokens []Token
	for {
		tok, err := r.Next()
		require.NoError(t, err)
		if tok.Kind == KindEOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

func TestJSONReaderTokens(t *testing.T) {
	tokens := readAll(t, JSON.NewReader(strings.NewReader(`{"a":[1,-2.5e3,"x\né"],"b":{},"c":[],"d":[true,false,null]}`)))

	assert.Equal(t, []Token{
		{Kind: KindBeginObject},
		{Kind: KindName, Text: "a"},
		{Kind: KindBeginArray},
		{Kind: KindNumber, Text: "1"},
		{Kind: KindNumber, Text: "-2.5e3"},
		{Kind: KindString, Text: "x\né"},
		{Kind: KindEndArray},
		{Kind: KindName, Text: "b"},
		{Kind: KindBeginObject},
		{Kind: KindEndObject},
		{Kind: KindName, Text: "c"},
		{Kind: KindBeginArray},
		{Kind: KindEndArray},
		{Kind: KindName, Text: "d"},
		{Kind: KindBeginArray},
		{Kind: KindBool, Bool: true},
		{Kind: KindBool, Bool: false},
		{Kind: KindNull},
		{Kind: KindEndArray},
		{Kind: KindEndObject},
	}, tokens)
}

func TestJSONCopyCompacts(t *testing.T) {
	const doc = `{
		"data": {"id": "1", "type": "people", "attributes": {"name": "Dan \"the man\"", "tags": [], "meta": {}}},
		"meta": {"big": 18446744073709551615, "neg": -1, "pi": 3.14}
	}`

	var buf bytes.Buffer
	require.NoError(t, Copy(JSON.NewWriter(&buf), JSON.NewReader(strings.NewReader(doc))))
	assert.Equal(t,
		`{"data":{"id":"1","type":"people","attributes":{"name":"Dan \"the man\"","tags":[],"meta":{}}},"meta":{"big":18446744073709551615,"neg":-1,"pi":3.14}}`,
		buf.String())
}

func TestJSONWriterScalarDocument(t *testing.T) {
	var buf bytes.Buffer
	w := JSON.NewWriter(&buf)
	w.String("plain")
	require.NoError(t, w.Flush())
	assert.Equal(t, `"plain"`, buf.String())
}

func TestJSONWriterUnclosedContainer(t *testing.T) {
	var buf bytes.Buffer
	w := JSON.NewWriter(&buf)
	w.BeginObject()
	w.Name("data")
	w.BeginArray()
	assert.ErrorContains(t, w.Flush(), "2 unclosed containers")
}

func TestJSONReaderInvalid(t *testing.T) {
	tests := map[string]string{
		"truncated object": `{"data":`,
		"bad literal":      `{"data":nope}`,
		"empty input":      ``,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			r := JSON.NewReader(strings.NewReader(doc))
			var err error
			for i := 0; i < 10 && err == nil; i++ {
				var tok Token
				tok, err = r.Next()
				if tok.Kind == KindEOF {
					break
				}
			}
			assert.Error(t, err)
		})
	}
}

func TestTokenBufferReplay(t *testing.T) {
	var b TokenBuffer
	b.BeginObject()
	b.Name("list")
	b.BeginArray()
	b.Number("1")
	b.BeginObject()
	b.EndObject()
	b.EndArray()
	b.Name("ok")
	b.Bool(true)
	b.EndObject()

	assert.Equal(t, map[int]int{0: 2, 2: 2, 4: 0}, ContainerLengths(b.Tokens()))

	var buf bytes.Buffer
	require.NoError(t, Copy(JSON.NewWriter(&buf), b.Reader()))
	assert.Equal(t, `{"list":[1,{}],"ok":true}`, buf.String())

	b.Reset()
	assert.Zero(t, b.Len())
}
