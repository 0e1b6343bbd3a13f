package http1

import (
	"errors"

	"github.com/cccs-rtmorti/htp/internal/hexconv"
)

type chunkedState uint8

const (
	cLength chunkedState = iota + 1
	cExtension
	cLengthCR
	cBody
	cBodyCR
	cBodyLF
)

// maxChunkLengthDigits puts an implicit 4GiB cap on a single chunk.
const maxChunkLengthDigits = 8

var errInvalidChunk = errors.New("malformed chunk length")

type chunkedParser struct {
	state  chunkedState
	digits uint8
	length uint64
}

func newChunkedParser() chunkedParser {
	return chunkedParser{state: cLength}
}

// Parse returns at most one piece of decoded payload per call. done reports
// that the terminal chunk was consumed; the trailer section stays in extra.
// On a malformed length the unconsumed bytes, bad ones included, are left in
// extra for the caller's fallback framing.
func (c *chunkedParser) Parse(data []byte) (chunk, extra []byte, done bool, err error) {
	switch c.state {
	case cLength:
		goto length
	case cExtension:
		goto extension
	case cLengthCR:
		goto lengthCR
	case cBody:
		goto body
	case cBodyCR:
		goto bodyCR
	case cBodyLF:
		goto bodyLF
	default:
		panic("unreachable code")
	}

length:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case '\r':
			data = data[i+1:]
			goto lengthCR
		case '\n':
			data = data[i+1:]
			goto afterLength
		case ';':
			data = data[i+1:]
			goto extension
		default:
			v := hexconv.Halfbyte[char]
			if v == 0xFF {
				return nil, data[i:], false, errInvalidChunk
			}

			if c.digits++; c.digits > maxChunkLengthDigits {
				return nil, data[i:], false, errInvalidChunk
			}

			c.length = c.length<<4 | uint64(v)
		}
	}

	c.state = cLength
	return nil, nil, false, nil

extension:
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\r':
			data = data[i+1:]
			goto lengthCR
		case '\n':
			data = data[i+1:]
			goto afterLength
		}
	}

	c.state = cExtension
	return nil, nil, false, nil

lengthCR:
	if len(data) == 0 {
		c.state = cLengthCR
		return nil, nil, false, nil
	}

	if data[0] != '\n' {
		return nil, data, false, errInvalidChunk
	}

	data = data[1:]
	goto afterLength

afterLength:
	if c.digits == 0 {
		return nil, data, false, errInvalidChunk
	}

	c.digits = 0

	if c.length == 0 {
		// terminal chunk; what follows is the trailer section
		c.state = cLength
		return nil, data, true, nil
	}

	goto body

body:
	if len(data) == 0 {
		c.state = cBody
		return nil, nil, false, nil
	}

	if uint64(len(data)) >= c.length {
		chunk, extra = data[:c.length], data[c.length:]
		c.length = 0
		c.state = cBodyCR

		return chunk, extra, false, nil
	}

	c.length -= uint64(len(data))
	c.state = cBody

	return data, nil, false, nil

bodyCR:
	if len(data) == 0 {
		c.state = cBodyCR
		return nil, nil, false, nil
	}

	if data[0] == '\r' {
		data = data[1:]
	}

	goto bodyLF

bodyLF:
	if len(data) == 0 {
		c.state = cBodyLF
		return nil, nil, false, nil
	}

	if data[0] != '\n' {
		return nil, data, false, errInvalidChunk
	}

	data = data[1:]
	goto length
}
