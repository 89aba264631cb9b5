package jsonapi

import (
	"fmt"
	"io"
)

// Kind is the kind of a Token.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBeginObject
	KindEndObject
	KindBeginArray
	KindEndArray
	KindName
	KindString
	KindNumber
	KindBool
	KindNull
	KindEOF
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBeginObject:
		return "{"
	case KindEndObject:
		return "}"
	case KindBeginArray:
		return "["
	case KindEndArray:
		return "]"
	case KindName:
		return "NAME"
	case KindString:
		return "STRING"
	case KindNumber:
		return "NUMBER"
	case KindBool:
		return "BOOL"
	case KindNull:
		return "NULL"
	case KindEOF:
		return "EOF"
	default:
		return "INVALID"
	}
}

// Token is one element of a token stream. Text holds the member name for
// KindName, the decoded string for KindString and the literal for
// KindNumber. Bool holds the value for KindBool.
type Token struct {
	Kind Kind
	Text string
	Bool bool
}

// IsValueStart reports whether the token begins a value.
func (t Token) IsValueStart() bool {
	switch t.Kind {
	case KindBeginObject, KindBeginArray, KindString, KindNumber, KindBool, KindNull:
		return true
	}
	return false
}

// String returns a debug representation of the token.
func (t Token) String() string {
	switch t.Kind {
	case KindName, KindString, KindNumber:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
	case KindBool:
		return fmt.Sprintf("%s(%t)", t.Kind, t.Bool)
	default:
		return t.Kind.String()
	}
}

// TokenReader pulls tokens from an underlying stream. After the single
// top-level value has been read it returns a KindEOF token.
type TokenReader interface {
	Next() (Token, error)
}

// TokenWriter writes a token stream. Write errors are sticky and reported
// by Flush.
type TokenWriter interface {
	BeginObject()
	EndObject()
	BeginArray()
	EndArray()
	Name(name string)
	String(s string)
	Number(literal string)
	Bool(b bool)
	Null()
	Flush() error
}

// Format binds a concrete wire encoding to the token interfaces.
type Format interface {
	Name() string
	NewReader(r io.Reader) TokenReader
	NewWriter(w io.Writer) TokenWriter
}

// WriteToken writes a single token to w.
func WriteToken(w TokenWriter, t Token) {
	switch t.Kind {
	case KindBeginObject:
		w.BeginObject()
	case KindEndObject:
		w.EndObject()
	case KindBeginArray:
		w.BeginArray()
	case KindEndArray:
		w.EndArray()
	case KindName:
		w.Name(t.Text)
	case KindString:
		w.String(t.Text)
	case KindNumber:
		w.Number(t.Text)
	case KindBool:
		w.Bool(t.Bool)
	case KindNull:
		w.Null()
	}
}

// Copy transcodes one value from src to dst and flushes dst.
func Copy(dst TokenWriter, src TokenReader) error {
	for {
		t, err := src.Next()
		if err != nil {
			return err
		}
		if t.Kind == KindEOF {
			return dst.Flush()
		}
		WriteToken(dst, t)
	}
}
