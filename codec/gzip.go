package codec

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

type gzipDecoder struct {
	token string
}

// NewGZIP handles the gzip coding.
func NewGZIP() Decoder {
	return gzipDecoder{token: "gzip"}
}

// NewXGZIP handles the legacy x-gzip alias.
func NewXGZIP() Decoder {
	return gzipDecoder{token: "x-gzip"}
}

func (g gzipDecoder) Token() string {
	return g.token
}

func (g gzipDecoder) Open(src io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(src)
}
