package wire

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json. It stands in for the protobuf binary codec that a real
// protoc-generated service would use (see the package doc in types.go for
// why). Registered under the name "json"; callers select it per-call via
// grpc.CallContentSubtype("json").
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
func (jsonCodec) Name() string { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ContentSubtype is passed to grpc.CallContentSubtype on every client call
// so the server selects the JSON codec registered above.
const ContentSubtype = "json"
