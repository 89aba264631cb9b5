package jsonapi

import (
	"fmt"
	"reflect"
)

// FormatError reports a structural violation of the JSON:API document
// shape at Path.
type FormatError struct {
	Path    string
	Message string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "jsonapi: " + e.Message
	}
	return fmt.Sprintf("jsonapi: %s at %s", e.Message, e.Path)
}

func formatErrorf(c *Cursor, format string, args ...any) error {
	return &FormatError{Path: c.Path(), Message: fmt.Sprintf(format, args...)}
}

// TypeMismatchError reports a resource whose resolved Go type is not
// assignable to the type expected at Path. It is raised when one (type, id)
// pair is decoded into two incompatible Go types within a document.
type TypeMismatchError struct {
	Path      string
	Reference Reference
	Expected  reflect.Type
	Actual    reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("jsonapi: resource %s at %s is %s, not assignable to %s",
		e.Reference, e.Path, e.Actual, e.Expected)
}
