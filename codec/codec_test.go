package codec_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats/codec"
)

func TestBinaryCodec_RoundTrip(t *testing.T) {
	c, err := codec.Lookup(codec.Binary)
	require.NoError(t, err)

	payload, err := c.Encode([]byte("hello"), codec.Header{})
	require.NoError(t, err)

	v, err := c.Decode(payload, codec.Header{}, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	c, err := codec.Lookup(codec.JSON)
	require.NoError(t, err)

	payload, err := c.Encode(map[string]any{"success": true}, codec.Header{})
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true}`, string(payload))

	v, err := c.Decode(payload, codec.Header{}, 0)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"success": true}, v)
}

func TestJSONCodec_NullSentinel(t *testing.T) {
	c, err := codec.Lookup(codec.JSON)
	require.NoError(t, err)

	payload, err := c.Encode(codec.NULL, codec.Header{})
	require.NoError(t, err)
	require.Equal(t, "null", string(payload))
}

func TestFilesCodec_RoundTrip(t *testing.T) {
	a, err := os.CreateTemp("", "cats-codec-test-a-*")
	require.NoError(t, err)
	defer os.Remove(a.Name())
	_, err = a.Write([]byte("aaaa"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := os.CreateTemp("", "cats-codec-test-b-*")
	require.NoError(t, err)
	defer os.Remove(b.Name())
	_, err = b.Write([]byte("bbbbbb"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	c, err := codec.Lookup(codec.Files)
	require.NoError(t, err)

	headers := codec.Header{}
	payload, err := c.Encode([]string{a.Name(), b.Name()}, headers)
	require.NoError(t, err)
	require.Len(t, payload, 10)

	v, err := c.Decode(payload, headers, 0)
	require.NoError(t, err)
	files := v.([]codec.DecodedFile)
	require.Len(t, files, 2)
	require.Equal(t, []byte("aaaa"), files[0].Bytes)
	require.Equal(t, []byte("bbbbbb"), files[1].Bytes)
}

func TestFilesCodec_Decode_Spools_AboveMaxPlainSize(t *testing.T) {
	c, err := codec.Lookup(codec.Files)
	require.NoError(t, err)

	headers := codec.Header{}
	headers.SetFiles([]codec.FileEntry{{Key: "0", Name: "a.bin", Size: 4}})
	v, err := c.Decode([]byte("aaaa"), headers, 1)
	require.NoError(t, err)

	files := v.([]codec.DecodedFile)
	require.Len(t, files, 1)
	require.NotEmpty(t, files[0].Path)
	defer os.Remove(files[0].Path)
	got, err := os.ReadFile(files[0].Path)
	require.NoError(t, err)
	require.Equal(t, []byte("aaaa"), got)
}

func TestCompress_GzipRoundTrip(t *testing.T) {
	plain := []byte(`{"hello":"world"}`)
	compressed, err := codec.Compress(codec.CompressionGzip, plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, compressed)

	got, err := codec.Decompress(codec.CompressionGzip, compressed)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestApplyOffset_Binary(t *testing.T) {
	out, err := codec.ApplyOffset(codec.Binary, []byte("0123456789"), codec.Header{}, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("456789"), out)
}

func TestApplyOffset_Files_PartiallyConsumesFirstFile(t *testing.T) {
	headers := codec.Header{}
	headers.SetFiles([]codec.FileEntry{
		{Key: "0", Name: "a.bin", Size: 4},
		{Key: "1", Name: "b.bin", Size: 6},
	})
	payload := []byte("aaaabbbbbb")

	out, err := codec.ApplyOffset(codec.Files, payload, headers, 6)
	require.NoError(t, err)
	require.Equal(t, []byte("bbbb"), out)

	remaining, err := headers.Files()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "b.bin", remaining[0].Name)
	require.Equal(t, int64(4), remaining[0].Size)
}
