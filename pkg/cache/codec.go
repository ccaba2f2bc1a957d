package cache

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/pario-ai/sift/pkg/models"
)

// Codec turns result sets into compact cache payloads. It is safe for
// concurrent use.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec creates a zstd-backed codec.
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Encode marshals and compresses a result set.
func (c *Codec) Encode(rs models.ResultSet) ([]byte, error) {
	raw, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("encode result set: %w", err)
	}
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode reverses Encode.
func (c *Codec) Decode(payload []byte) (models.ResultSet, error) {
	var rs models.ResultSet
	raw, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return rs, fmt.Errorf("decompress result set: %w", err)
	}
	if err := json.Unmarshal(raw, &rs); err != nil {
		return rs, fmt.Errorf("decode result set: %w", err)
	}
	return rs, nil
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}
