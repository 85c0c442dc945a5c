// Package encoding centralizes JSON serialization on the sonic codec.
// Snapshot payloads carry tens of thousands of edges, so the faster
// codec matters on the hot request path.
package encoding

import (
	"io"

	"github.com/bytedance/sonic"
)

// api is the shared sonic configuration. Sorted keys keep response
// bodies byte-stable, which the response cache depends on.
var api = sonic.Config{
	SortMapKeys:      true,
	CompactMarshaler: true,
}.Froze()

// Marshal serializes v to JSON.
func Marshal(v interface{}) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal parses JSON into v.
func Unmarshal(data []byte, v interface{}) error {
	return api.Unmarshal(data, v)
}

// NewDecoder returns a streaming decoder over r.
func NewDecoder(r io.Reader) sonic.Decoder {
	return api.NewDecoder(r)
}

// NewEncoder returns a streaming encoder writing to w.
func NewEncoder(w io.Writer) sonic.Encoder {
	return api.NewEncoder(w)
}
