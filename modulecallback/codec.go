package modulecallback

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec lets the callback client invoke a module's gRPC service without
// protoc-generated stubs: request/response messages are plain Go structs
// marshaled as JSON over the wire instead of protobuf wire format. This
// mirrors the pattern of registering an alternate content-subtype codec
// instead of replacing gRPC's framing/transport machinery.
type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

const codecName = "json"
