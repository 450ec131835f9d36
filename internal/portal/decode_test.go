package portal

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = "<html><body><form method=post></form></body></html>"

func gzipBytes(t *testing.T, in []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(in)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, in []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(in, nil)
}

func TestDecodeBody(t *testing.T) {
	raw := []byte(samplePage)

	var zl bytes.Buffer
	zw := zlib.NewWriter(&zl)
	_, _ = zw.Write(raw)
	require.NoError(t, zw.Close())

	var fl bytes.Buffer
	fw, err := flate.NewWriter(&fl, flate.DefaultCompression)
	require.NoError(t, err)
	_, _ = fw.Write(raw)
	require.NoError(t, fw.Close())

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", raw},
		{"explicit identity", "identity", raw},
		{"gzip", "gzip", gzipBytes(t, raw)},
		{"zstd", "zstd", zstdBytes(t, raw)},
		{"deflate zlib-wrapped", "deflate", zl.Bytes()},
		{"deflate raw", "deflate", fl.Bytes()},
		{"chained", "gzip, zstd", zstdBytes(t, gzipBytes(t, raw))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBody(tt.encoding, tt.body, maxBodyBytes)
			require.NoError(t, err)
			assert.Equal(t, samplePage, string(got))
		})
	}
}

func TestDecodeBody_Errors(t *testing.T) {
	_, err := decodeBody("br", []byte("x"), maxBodyBytes)
	assert.ErrorContains(t, err, "unsupported content encoding")

	_, err = decodeBody("gzip", []byte("not gzip"), maxBodyBytes)
	assert.Error(t, err)

	big := gzipBytes(t, bytes.Repeat([]byte("a"), 1024))
	_, err = decodeBody("gzip", big, 100)
	assert.ErrorContains(t, err, "exceeds")
}
