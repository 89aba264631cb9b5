package jsonapi

// Encoder defines the interface for document serialization and deserialization.
// Codec implements it for every Format; the msgpack and protobuf encoders
// return Codecs configured with their own Format.
type Encoder interface {
	// Encode serializes v into a JSON:API document.
	Encode(v any) ([]byte, error)

	// Decode deserializes a JSON:API document into v.
	Decode(data []byte, v any) error
}
