package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertWHurst/jsonapi"
)

const sampleDocument = `{
  "data": {
    "id": "1", "type": "articles",
    "attributes": {"title": "Hi", "data": {"type": "not-a-resource"}},
    "relationships": {
      "author": {"data": {"id": "9", "type": "people"}},
      "tags": {"data": [{"id": "t1", "type": "tags"}, {"id": "t2", "type": "tags"}]}
    }
  },
  "included": [
    {"id": "9", "type": "people", "attributes": {"name": "Dan"}}
  ]
}`

func TestListReferences(t *testing.T) {
	refs, err := listReferences(jsonapi.JSON.NewReader(strings.NewReader(sampleDocument)))
	require.NoError(t, err)

	var got []string
	for _, ref := range refs {
		got = append(got, ref.Path+" "+ref.String())
	}
	assert.Equal(t, []string{
		"/data articles:1",
		"/data/relationships/author/data people:9",
		"/data/relationships/tags/data/0 tags:t1",
		"/data/relationships/tags/data/1 tags:t2",
		"/included/0 people:9",
	}, got)
}

func TestResourcePosition(t *testing.T) {
	tests := map[string]bool{
		"":                                      false,
		"/data":                                 true,
		"/data/3":                               true,
		"/included/0":                           true,
		"/meta":                                 false,
		"/data/attributes/data":                 false,
		"/data/relationships/author/data":       true,
		"/included/2/relationships/tags/data/1": true,
		"/data/relationships/author/meta":       false,
	}
	for path, expected := range tests {
		assert.Equal(t, expected, resourcePosition(path), path)
	}
}

func TestRunConvertRoundTrip(t *testing.T) {
	var packed, stderr bytes.Buffer
	err := run([]string{"convert", "--from", "json", "--to", "msgpack"}, strings.NewReader(sampleDocument), &packed, &stderr)
	require.NoError(t, err)

	var text bytes.Buffer
	err = run([]string{"convert", "--from", "msgpack", "--to", "json"}, &packed, &text, &stderr)
	require.NoError(t, err)

	var compact bytes.Buffer
	require.NoError(t, jsonapi.Copy(jsonapi.JSON.NewWriter(&compact), jsonapi.JSON.NewReader(strings.NewReader(sampleDocument))))
	assert.Equal(t, compact.String(), text.String())
}

func TestRunRefs(t *testing.T) {
	var out, stderr bytes.Buffer
	err := run([]string{"refs"}, strings.NewReader(sampleDocument), &out, &stderr)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "/data\tarticles\t1", lines[0])
}

func TestRunErrors(t *testing.T) {
	var out, stderr bytes.Buffer

	err := run([]string{"convert", "--to", "yaml"}, strings.NewReader(sampleDocument), &out, &stderr)
	assert.ErrorContains(t, err, `unknown format "yaml"`)

	err = run([]string{"transmogrify"}, strings.NewReader(sampleDocument), &out, &stderr)
	assert.ErrorContains(t, err, `unknown command "transmogrify"`)

	err = run([]string{"refs", "--log-level", "loud"}, strings.NewReader(sampleDocument), &out, &stderr)
	assert.ErrorContains(t, err, `unknown log level "loud"`)

	err = run([]string{"refs"}, strings.NewReader(`{"data":{"id":1,"type":"x"}}`), &out, &stderr)
	var formatErr *jsonapi.FormatError
	assert.ErrorAs(t, err, &formatErr)
}
