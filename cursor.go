package jsonapi

import (
	"fmt"
	"strconv"
	"strings"
)

// tape is the shared append-only arena behind a family of cursors. Every
// token pulled from the source is recorded exactly once together with its
// structural position, so any cursor can compute its path and forks never
// re-read the source.
type tape struct {
	src    TokenReader
	tokens []tapeToken
	frames []tapeFrame
	err    error
}

type tapeToken struct {
	Token
	parent int
	key    string
}

type tapeFrame struct {
	begin int
	array bool
	count int
	name  string
}

func (t *tape) pull() error {
	if t.err != nil {
		return t.err
	}
	tok, err := t.src.Next()
	if err != nil {
		t.err = err
		return err
	}

	rec := tapeToken{Token: tok, parent: -1}
	if n := len(t.frames); n > 0 {
		top := &t.frames[n-1]
		rec.parent = top.begin
		switch {
		case tok.Kind == KindName:
			top.name = tok.Text
			rec.key = tok.Text
		case tok.IsValueStart():
			if top.array {
				rec.key = strconv.Itoa(top.count)
				top.count++
			} else {
				rec.key = top.name
			}
		case tok.Kind == KindEndObject || tok.Kind == KindEndArray:
			begin := t.tokens[top.begin]
			rec.parent, rec.key = begin.parent, begin.key
		}
	}

	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		t.frames = append(t.frames, tapeFrame{begin: len(t.tokens), array: tok.Kind == KindBeginArray})
	case KindEndObject, KindEndArray:
		if len(t.frames) == 0 {
			t.err = fmt.Errorf("unbalanced %s", tok.Kind)
			return t.err
		}
		t.frames = t.frames[:len(t.frames)-1]
	}
	t.tokens = append(t.tokens, rec)
	return nil
}

// Cursor is a position in a recorded token stream. Advancing a cursor at
// the frontier pulls one more token from the source; Fork returns an
// independent cursor at the same position.
type Cursor struct {
	tape *tape
	pos  int
}

// NewCursor returns a cursor positioned at the first token of r.
func NewCursor(r TokenReader) (*Cursor, error) {
	t := &tape{src: r}
	if err := t.pull(); err != nil {
		return nil, err
	}
	return &Cursor{tape: t}, nil
}

// Token returns the current token.
func (c *Cursor) Token() Token { return c.tape.tokens[c.pos].Token }

// Kind returns the kind of the current token.
func (c *Cursor) Kind() Kind { return c.tape.tokens[c.pos].Kind }

// Text returns the text of the current token.
func (c *Cursor) Text() string { return c.tape.tokens[c.pos].Text }

// Fork returns a new cursor at the current position.
func (c *Cursor) Fork() *Cursor {
	return &Cursor{tape: c.tape, pos: c.pos}
}

// Path returns the JSON pointer of the current token, e.g.
// /data/relationships/author. Member names are reported as the path of
// the member value.
func (c *Cursor) Path() string {
	var parts []string
	for i := c.pos; i >= 0; {
		tok := c.tape.tokens[i]
		if tok.parent < 0 {
			break
		}
		parts = append(parts, escapePointer(tok.key))
		i = tok.parent
	}
	if len(parts) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(parts[i])
	}
	return sb.String()
}

// Advance moves to the next token. Advancing past EOF panics.
func (c *Cursor) Advance() error {
	if c.Kind() == KindEOF {
		panic("jsonapi: advance past end of stream")
	}
	if c.pos+1 == len(c.tape.tokens) {
		if err := c.tape.pull(); err != nil {
			return err
		}
	}
	c.pos++
	return nil
}

// SkipValue advances past the value starting at the current token. The
// cursor must be positioned at the start of a value.
func (c *Cursor) SkipValue() error {
	if !c.Token().IsValueStart() {
		panic(fmt.Sprintf("jsonapi: SkipValue at %s (%s)", c.Kind(), c.Path()))
	}
	depth := 0
	for {
		switch c.Kind() {
		case KindBeginObject, KindBeginArray:
			depth++
		case KindEndObject, KindEndArray:
			depth--
		}
		if err := c.Advance(); err != nil {
			return err
		}
		if depth == 0 {
			return nil
		}
	}
}

// ReadUntil advances until pred reports true for the current token or the
// end of the stream is reached. It reports whether pred matched.
func (c *Cursor) ReadUntil(pred func(Token) bool) (bool, error) {
	for {
		if pred(c.Token()) {
			return true, nil
		}
		if c.Kind() == KindEOF {
			return false, nil
		}
		if err := c.Advance(); err != nil {
			return false, err
		}
	}
}

func escapePointer(s string) string {
	if !strings.ContainsAny(s, "~/") {
		return s
	}
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}

// eachMember calls fn for every member of the object at the cursor with the
// cursor positioned at the member value; fn must consume the value. On
// return the cursor is positioned after the object.
func eachMember(c *Cursor, fn func(name string) error) error {
	if c.Kind() != KindBeginObject {
		return formatErrorf(c, "expected an object, found %s", describe(c.Token()))
	}
	if err := c.Advance(); err != nil {
		return err
	}
	for c.Kind() != KindEndObject {
		if c.Kind() != KindName {
			return formatErrorf(c, "expected a member name, found %s", describe(c.Token()))
		}
		name := c.Text()
		if err := c.Advance(); err != nil {
			return err
		}
		if err := fn(name); err != nil {
			return err
		}
	}
	return c.Advance()
}

// eachElement calls fn for every element of the array at the cursor.
func eachElement(c *Cursor, fn func(i int) error) error {
	if c.Kind() != KindBeginArray {
		return formatErrorf(c, "expected an array, found %s", describe(c.Token()))
	}
	if err := c.Advance(); err != nil {
		return err
	}
	for i := 0; c.Kind() != KindEndArray; i++ {
		if err := fn(i); err != nil {
			return err
		}
	}
	return c.Advance()
}

// ReadReference scans the object at c for its string id and type members
// without materializing anything else. c is consumed; pass a fork to keep
// the original position. ok is false when no type member is present.
func ReadReference(c *Cursor) (ref Reference, ok bool, err error) {
	err = eachMember(c, func(name string) error {
		switch name {
		case "id", "type":
			if c.Kind() != KindString {
				return formatErrorf(c, "%s must be a string, found %s", name, describe(c.Token()))
			}
			if name == "id" {
				ref.ID = c.Text()
			} else {
				ref.Type = c.Text()
				ok = true
			}
			return c.Advance()
		default:
			return c.SkipValue()
		}
	})
	return ref, ok, err
}

func describe(t Token) string {
	switch t.Kind {
	case KindBeginObject:
		return "object"
	case KindBeginArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindNull:
		return "null"
	case KindEOF:
		return "end of input"
	default:
		return t.Kind.String()
	}
}
