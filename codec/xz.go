package codec

import (
	"io"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

type xzDecoder struct{}

// NewXZ handles the xz coding.
func NewXZ() Decoder {
	return xzDecoder{}
}

func (xzDecoder) Token() string {
	return "xz"
}

func (xzDecoder) Open(src io.Reader) (io.ReadCloser, error) {
	r, err := xz.NewReader(src)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(r), nil
}

type lzmaDecoder struct{}

// NewLZMA handles the legacy lzma coding.
func NewLZMA() Decoder {
	return lzmaDecoder{}
}

func (lzmaDecoder) Token() string {
	return "lzma"
}

func (lzmaDecoder) Open(src io.Reader) (io.ReadCloser, error) {
	r, err := lzma.NewReader(src)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(r), nil
}
