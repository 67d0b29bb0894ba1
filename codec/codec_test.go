package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Name       string    `json:"name"`
	Generation uint64    `json:"generation"`
	Files      []file    `json:"files"`
	SavedAt    time.Time `json:"savedAt"`
}

type file struct {
	Mask     string `json:"mask"`
	Rows     int    `json:"rows"`
	Checksum uint32 `json:"crc32c"`
}

func testDocument() document {
	return document{
		Name:       "bugs",
		Generation: 7,
		Files: []file{
			{Mask: "0", Rows: 10, Checksum: 0xdeadbeef},
			{Mask: "1", Rows: 12, Checksum: 1},
		},
		SavedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
	assert.Equal(t, "go-json", Default.Name())
}

func TestCodecsAreInterchangeable(t *testing.T) {
	want := testDocument()
	codecs := []Codec{JSON{}, GoJSON{}}

	for _, enc := range codecs {
		data, err := enc.Marshal(want)
		require.NoError(t, err)
		for _, dec := range codecs {
			var got document
			require.NoError(t, dec.Unmarshal(data, &got), "%s -> %s", enc.Name(), dec.Name())
			assert.Equal(t, want, got, "%s -> %s", enc.Name(), dec.Name())
		}
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		var d document
		assert.Error(t, c.Unmarshal([]byte("{"), &d), c.Name())
	}
}

func BenchmarkCodec(b *testing.B) {
	doc := testDocument()
	for i := range 254 {
		doc.Files = append(doc.Files, file{Mask: "01010101", Rows: i, Checksum: uint32(i)})
	}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		data, err := c.Marshal(doc)
		if err != nil {
			b.Fatal(err)
		}

		b.Run(c.Name()+"/marshal", func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			for b.Loop() {
				if _, err := c.Marshal(doc); err != nil {
					b.Fatal(err)
				}
			}
		})
		b.Run(c.Name()+"/unmarshal", func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			var sink document
			for b.Loop() {
				if err := c.Unmarshal(data, &sink); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
