package nats

import (
	"testing"
)

func TestNamespace(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected string
	}{
		{name: "resource type", input: []string{"articles"}, expected: "jsonapi.articles"},
		{name: "type and action", input: []string{"articles", "created"}, expected: "jsonapi.articles.created"},
		{name: "empty parts dropped", input: []string{"articles", "", "created"}, expected: "jsonapi.articles.created"},
		{name: "camel case type", input: []string{"blogPosts"}, expected: "jsonapi.blog-posts"},
		{name: "snake case type", input: []string{"blog_posts"}, expected: "jsonapi.blog-posts"},
		{name: "leading capital kept", input: []string{"BlogPosts"}, expected: "jsonapi.Blog-posts"},
		{name: "hierarchical subject", input: []string{"people.updated"}, expected: "jsonapi.people.updated"},
		{name: "token wildcard", input: []string{"people.*"}, expected: "jsonapi.people.*"},
		{name: "full wildcard", input: []string{"people.>"}, expected: "jsonapi.people.>"},
		{name: "digits", input: []string{"v2"}, expected: "jsonapi.v2"},
		{name: "nothing", input: nil, expected: "jsonapi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := namespace(tt.input...)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestFormatForNamespace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "comments", expected: "comments"},
		{name: "uppercase run", input: "URL", expected: "URL"},
		{name: "camel case", input: "readCount", expected: "read-count"},
		{name: "pascal case", input: "ReadCount", expected: "Read-count"},
		{name: "acronym prefix", input: "HTTPRoute", expected: "HTTPRoute"},
		{name: "underscore", input: "read_count", expected: "read-count"},
		{name: "repeated underscores", input: "read__count", expected: "read--count"},
		{name: "dash kept", input: "read-count", expected: "read-count"},
		{name: "digit then capital", input: "v2Posts", expected: "v2Posts"},
		{name: "spaces dropped", input: "read count", expected: "readcount"},
		{name: "symbols dropped", input: "read#count!", expected: "readcount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatForNamespace(tt.input)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func BenchmarkNamespace(b *testing.B) {
	for i := 0; i < b.N; i++ {
		namespace("blogPosts", "commentAdded")
	}
}
