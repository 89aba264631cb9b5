package jsonapi

import (
	"strings"
)

// Meta is free-form meta information.
type Meta map[string]any

// Links maps link names such as "self" or "related" to links.
type Links map[string]Link

// Link is a link value. It is written as a bare string when it carries no
// meta and as an {href, meta} object otherwise.
type Link struct {
	Href string
	Meta Meta
}

// Version is the top-level jsonapi member.
type Version struct {
	Version string `json:"version,omitempty"`
	Meta    Meta   `json:"meta,omitempty"`
}

// ErrorSource points at the part of a request an error refers to.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// Error is a JSON:API error object.
type Error struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status,omitempty"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
	Links  Links        `json:"links,omitempty"`
	Meta   Meta         `json:"meta,omitempty"`
}

func (e Error) Error() string {
	var parts []string
	for _, s := range []string{e.Status, e.Code, e.Title, e.Detail} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "jsonapi: error object"
	}
	return "jsonapi: " + strings.Join(parts, ": ")
}

// Errors is the errors member of a document. Decoding an error document
// into a target that is not a Document returns it as an error.
type Errors []Error

func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "jsonapi: empty errors"
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = strings.TrimPrefix(e[i].Error(), "jsonapi: ")
	}
	return "jsonapi: " + strings.Join(msgs, "; ")
}
