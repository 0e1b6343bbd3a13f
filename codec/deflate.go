package codec

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

type deflateDecoder struct{}

// NewDeflate handles the deflate coding. Senders disagree on whether deflate
// means a zlib stream or a raw flate stream, so the leading bytes are
// sniffed.
func NewDeflate() Decoder {
	return deflateDecoder{}
}

func (deflateDecoder) Token() string {
	return "deflate"
}

func (deflateDecoder) Open(src io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(src)

	head, err := br.Peek(2)
	if err == nil && isZlibHeader(head[0], head[1]) {
		return zlib.NewReader(br)
	}

	return flate.NewReader(br), nil
}

// isZlibHeader checks the CMF/FLG pair: deflate method with a valid check
// value.
func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0F == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
