package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of the vault API.
const CodecName = "json"

// codec marshals vault API messages as JSON.
type codec struct{}

//nolint:gochecknoinits // gRPC codecs are registered globally by name.
func init() {
	encoding.RegisterCodec(codec{})
}

// Marshal implements encoding.Codec.
func (codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (codec) Name() string {
	return CodecName
}
