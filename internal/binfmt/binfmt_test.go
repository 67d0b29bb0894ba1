package binfmt

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bw := NewWriter(&buf)
	bw.U8(7)
	bw.Bool(true)
	bw.U16(65534)
	bw.I32(-12)
	bw.U64(1 << 60)
	bw.F64(3.25)
	bw.Uvarint(300)
	bw.String("partition")
	bw.Bytes([]byte{1, 2, 3})
	require.NoError(t, bw.Err())
	assert.Equal(t, int64(buf.Len()), bw.Len())

	br := NewReader(&buf)
	assert.Equal(t, uint8(7), br.U8())
	assert.True(t, br.Bool())
	assert.Equal(t, uint16(65534), br.U16())
	assert.Equal(t, int32(-12), br.I32())
	assert.Equal(t, uint64(1<<60), br.U64())
	assert.Equal(t, 3.25, br.F64())
	assert.Equal(t, uint64(300), br.Uvarint())
	assert.Equal(t, "partition", br.String())
	assert.Equal(t, []byte{1, 2, 3}, br.Bytes())
	require.NoError(t, br.Err())

	// Reading past the end is sticky.
	br.U32()
	assert.ErrorIs(t, br.Err(), io.ErrUnexpectedEOF)
	assert.Equal(t, "", br.String())
}

func TestReaderRejectsHugeLength(t *testing.T) {
	var buf bytes.Buffer
	bw := NewWriter(&buf)
	bw.Uvarint(MaxBlobSize + 1)

	br := NewReader(&buf)
	assert.Nil(t, br.Bytes())
	assert.ErrorIs(t, br.Err(), ErrCorrupt)
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestWriterStickyError(t *testing.T) {
	boom := errors.New("boom")
	bw := NewWriter(failingWriter{err: boom})
	bw.U32(1)
	bw.String("ignored")
	assert.ErrorIs(t, bw.Err(), boom)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("arriba partition payload "), 200)

	for _, c := range []Compression{None, LZ4, ZSTD, Snappy} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, payload, c))
			if c != None {
				assert.Less(t, buf.Len(), len(payload))
			}

			got, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestEnvelopeEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil, ZSTD))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEnvelopeDetectsCorruption(t *testing.T) {
	payload := []byte("hello, partition")
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, payload, None))

	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF

	_, err := Decode(bytes.NewReader(data))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)

	var mismatch *ChecksumMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestEnvelopeBadHeader(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("nope")))
	assert.ErrorIs(t, err, ErrCorrupt)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []byte("x"), None))
	data := buf.Bytes()
	data[0] = 'X'
	_, err = Decode(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrCorrupt)

	buf.Reset()
	require.NoError(t, Encode(&buf, []byte("x"), None))
	data = buf.Bytes()
	data[4] = Version + 1
	_, err = Decode(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrVersion)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, ZSTD, c)

	_, err = ParseCompression("brotli")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}
