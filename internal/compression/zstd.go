// Package compression wraps zstd for the bank's on-disk and on-wire payloads.
package compression

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Magic is the zstd frame magic number.
var Magic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	enabled bool
}

func NewCompressor(level int, enabled bool) (*Compressor, error) {
	if !enabled {
		return &Compressor{enabled: false}, nil
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(EncoderLevel(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	return &Compressor{
		encoder: encoder,
		decoder: decoder,
		enabled: true,
	}, nil
}

// EncoderLevel maps 1..3 onto zstd speed presets; anything else is the default.
func EncoderLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedDefault
	}
}

func (c *Compressor) Compress(data []byte) []byte {
	if !c.enabled {
		return data
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress accepts both compressed and raw payloads so snapshots written
// with compression disabled stay readable.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if !c.enabled || !IsCompressed(data) {
		return data, nil
	}

	decompressed, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return decompressed, nil
}

func (c *Compressor) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}

// IsCompressed reports whether data starts with a zstd frame.
func IsCompressed(data []byte) bool {
	if len(data) < len(Magic) {
		return false
	}
	for i, b := range Magic {
		if data[i] != b {
			return false
		}
	}
	return true
}

// NewReader returns a streaming decoder for r. Closing it releases the decoder.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}
