package cache

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes values stored in a CacheService.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// MsgpackCodec is the default Codec. Interface values are decoded loosely:
// every signed integer comes back as int64, unsigned as uint64 and floats as
// float64, which matches what the store client returns for scanned rows.
type MsgpackCodec struct{}

// Marshal implements Codec.
func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal implements Codec.
func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}
