package portal

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding lists the codings decodeBody understands. Setting
// Accept-Encoding explicitly disables net/http's transparent gzip handling,
// so every coding advertised here must be decoded below.
const acceptEncoding = "gzip, deflate, zstd"

// decodeBody reverses the Content-Encoding chain of a response body. Codings
// are applied by the server in listed order, so they are undone in reverse.
func decodeBody(contentEncoding string, raw []byte, limit int64) ([]byte, error) {
	if strings.TrimSpace(contentEncoding) == "" {
		return raw, nil
	}

	codings := strings.Split(contentEncoding, ",")
	body := raw
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		var err error
		switch coding {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			body, err = readAllLimited(func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }, body, limit)
		case "deflate":
			body, err = inflate(body, limit)
		case "zstd":
			body, err = readAllLimited(func(r io.Reader) (io.ReadCloser, error) {
				d, err := zstd.NewReader(r)
				if err != nil {
					return nil, err
				}
				return d.IOReadCloser(), nil
			}, body, limit)
		default:
			return nil, fmt.Errorf("unsupported content encoding %q", coding)
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s body: %w", coding, err)
		}
	}
	return body, nil
}

// inflate handles "deflate", which servers send either zlib-wrapped (per the
// RFC) or as a raw DEFLATE stream.
func inflate(body []byte, limit int64) ([]byte, error) {
	out, err := readAllLimited(func(r io.Reader) (io.ReadCloser, error) { return zlib.NewReader(r) }, body, limit)
	if err == nil {
		return out, nil
	}
	return readAllLimited(func(r io.Reader) (io.ReadCloser, error) { return flate.NewReader(r), nil }, body, limit)
}

func readAllLimited(open func(io.Reader) (io.ReadCloser, error), body []byte, limit int64) ([]byte, error) {
	rc, err := open(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	out, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("decoded body exceeds %d bytes", limit)
	}
	return out, nil
}
