package transport

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype of every message of the Coordinator service.
const CodecName = "cbor"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec marshals gRPC messages as CBOR. The messages are plain Go structs, so no generated code is
// needed on either side.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}
