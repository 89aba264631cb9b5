package jsonapi

// TokenBuffer is a TokenWriter that records tokens in memory. It backs the
// classification probe and formats that need a whole value before writing
// (container lengths, trees).
type TokenBuffer struct {
	tokens []Token
}

var _ TokenWriter = &TokenBuffer{}

func (b *TokenBuffer) BeginObject() {
	b.tokens = append(b.tokens, Token{Kind: KindBeginObject})
}

func (b *TokenBuffer) EndObject() {
	b.tokens = append(b.tokens, Token{Kind: KindEndObject})
}

func (b *TokenBuffer) BeginArray() {
	b.tokens = append(b.tokens, Token{Kind: KindBeginArray})
}

func (b *TokenBuffer) EndArray() {
	b.tokens = append(b.tokens, Token{Kind: KindEndArray})
}

func (b *TokenBuffer) Name(name string) {
	b.tokens = append(b.tokens, Token{Kind: KindName, Text: name})
}

func (b *TokenBuffer) String(s string) {
	b.tokens = append(b.tokens, Token{Kind: KindString, Text: s})
}

func (b *TokenBuffer) Number(lit string) {
	b.tokens = append(b.tokens, Token{Kind: KindNumber, Text: lit})
}

func (b *TokenBuffer) Bool(v bool) {
	b.tokens = append(b.tokens, Token{Kind: KindBool, Bool: v})
}

func (b *TokenBuffer) Null() {
	b.tokens = append(b.tokens, Token{Kind: KindNull})
}

func (b *TokenBuffer) Flush() error {
	return nil
}

// Len returns the number of recorded tokens.
func (b *TokenBuffer) Len() int { return len(b.tokens) }

// Tokens returns the recorded tokens. The slice is owned by the buffer.
func (b *TokenBuffer) Tokens() []Token { return b.tokens }

// Reset discards all recorded tokens.
func (b *TokenBuffer) Reset() { b.tokens = b.tokens[:0] }

// WriteTo replays the recorded tokens into w.
func (b *TokenBuffer) WriteTo(w TokenWriter) {
	for _, t := range b.tokens {
		WriteToken(w, t)
	}
}

// Reader returns a TokenReader over the recorded tokens.
func (b *TokenBuffer) Reader() TokenReader {
	return NewTokenSliceReader(b.tokens)
}

type sliceReader struct {
	tokens []Token
	pos    int
}

// NewTokenSliceReader returns a TokenReader yielding tokens followed by EOF.
func NewTokenSliceReader(tokens []Token) TokenReader {
	return &sliceReader{tokens: tokens}
}

func (r *sliceReader) Next() (Token, error) {
	if r.pos >= len(r.tokens) {
		return Token{Kind: KindEOF}, nil
	}
	t := r.tokens[r.pos]
	r.pos++
	return t, nil
}

// ContainerLengths returns, for each BeginObject or BeginArray index in
// tokens, the number of members or elements it directly contains.
func ContainerLengths(tokens []Token) map[int]int {
	lengths := make(map[int]int)
	var stack []int
	for i, t := range tokens {
		if t.Kind == KindName {
			lengths[stack[len(stack)-1]]++
			continue
		}
		if t.IsValueStart() && len(stack) > 0 {
			top := stack[len(stack)-1]
			if tokens[top].Kind == KindBeginArray {
				lengths[top]++
			}
		}
		switch t.Kind {
		case KindBeginObject, KindBeginArray:
			lengths[i] = 0
			stack = append(stack, i)
		case KindEndObject, KindEndArray:
			stack = stack[:len(stack)-1]
		}
	}
	return lengths
}
