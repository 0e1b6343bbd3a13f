package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

type zstdDecoder struct{}

// NewZSTD handles the zstd coding.
func NewZSTD() Decoder {
	return zstdDecoder{}
}

func (zstdDecoder) Token() string {
	return "zstd"
}

func (zstdDecoder) Open(src io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}

	return d.IOReadCloser(), nil
}
