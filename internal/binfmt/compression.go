package binfmt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the body codec of an envelope.
//
// NOTE: codes are persisted; keep them stable.
type Compression uint8

const (
	// None stores the payload as is.
	None Compression = 0
	// LZ4 uses LZ4 block compression (fast, moderate ratio).
	LZ4 Compression = 1
	// ZSTD uses Zstandard (slower, better ratio).
	ZSTD Compression = 2
	// Snappy uses Snappy block compression.
	Snappy Compression = 3
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	case Snappy:
		return "snappy"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses a codec name as produced by String.
func ParseCompression(name string) (Compression, error) {
	for _, c := range []Compression{None, LZ4, ZSTD, Snappy} {
		if strings.EqualFold(c.String(), name) {
			return c, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// compress returns the encoded body and the codec actually used. When a
// codec does not shrink the payload the raw bytes are stored instead.
func compress(payload []byte, c Compression) ([]byte, Compression, error) {
	if c == None || len(payload) == 0 {
		return payload, None, nil
	}

	var out []byte
	switch c {
	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, dst, nil)
		if err != nil {
			return nil, c, err
		}
		if n == 0 {
			return payload, None, nil // incompressible
		}
		out = dst[:n]
	case ZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, c, err
		}
		out = enc.EncodeAll(payload, nil)
		zstdEncoderPool.Put(enc)
	case Snappy:
		out = snappy.Encode(nil, payload)
	default:
		return nil, c, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}

	if len(out) >= len(payload) {
		return payload, None, nil
	}
	return out, c, nil
}

func decompress(body []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case None:
		return body, nil
	case LZ4:
		dst := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		return dst[:n], nil
	case ZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		return out, nil
	case Snappy:
		out, err := snappy.Decode(make([]byte, rawLen), body)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %w", ErrCorrupt, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}
