// Package urinorm resolves the encoding ambiguities of request paths and
// parameters the way the configured personality would, recording an anomaly
// flag for every deviation from a plain unambiguous interpretation.
package urinorm

import (
	"bytes"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/internal/hexconv"
	"github.com/indigo-web/utils/uf"
)

// Path normalizes a raw request path. The returned string is what the
// modeled implementation would serve, with every evasion technique used to
// produce it reported in the flags.
func Path(d config.Decode, raw string) (string, anomaly.Flag) {
	out, st, flags := decodePass(d, uf.S2B(raw), true)

	if st.decoded > 0 && !st.preserved && containsEscape(d, out) {
		flags |= anomaly.DoubleEncoding
	}

	if d.DoubleDecodePath {
		again, st, f := decodePass(d, out, true)
		if st.decoded > 0 {
			flags |= f | anomaly.DoubleEncoding
			out = again
		}
	}

	out, f := normalizeUTF8(d, out, true)
	flags |= f

	out, f = normalizeSegments(d, out)
	flags |= f

	return uf.B2S(out), flags
}

// Component decodes a single urlencoded component, such as a query parameter
// name or value. Pluses become spaces on top of the Path decoding rules.
func Component(d config.Decode, raw string) (string, anomaly.Flag) {
	out, st, flags := decodePass(d, uf.S2B(raw), false)

	if st.decoded > 0 && !st.preserved && containsEscape(d, out) {
		flags |= anomaly.DoubleEncoding
	}

	if d.DoubleDecodeQuery {
		again, st, f := decodePass(d, out, false)
		if st.decoded > 0 {
			flags |= f | anomaly.DoubleEncoding
			out = again
		}
	}

	out, f := normalizeUTF8(d, out, false)
	flags |= f

	return uf.B2S(out), flags
}

// passState reports what a decode pass did: how many escape sequences it
// resolved, and whether it deliberately kept any escape undecoded.
type passState struct {
	decoded   int
	preserved bool
}

// decodePass performs one layer of percent-decoding. Path mode additionally
// interprets separators, NUL bytes and control characters.
func decodePass(d config.Decode, src []byte, path bool) (out []byte, st passState, flags anomaly.Flag) {
	out = make([]byte, 0, len(src))

	for i := 0; i < len(src); {
		c := src[i]

		switch {
		case c == '%':
			var (
				b    byte
				n    int
				emit bool
				f    anomaly.Flag
			)
			b, n, emit, f = decodeEscape(d, src[i:], path)
			flags |= f

			if n == 0 {
				// unresolvable even under the personality's rules
				switch d.Invalid {
				case config.StripPercent:
					i++
				default:
					out = append(out, finishByte(d, '%', path))
					i++
				}

				continue
			}

			if emit {
				st.decoded++
			}
			i += n

			if !emit {
				continue
			}

			if b == 0 && path {
				flags |= anomaly.NulByteInPath
				if d.NulEncodedTerminates {
					return out, st, flags
				}
			}

			if path && isSeparator(d, b) {
				flags |= anomaly.EncodedSeparator
				if !d.EncodedSeparators {
					// keep the escape, the server treats it as data
					st.preserved = true
					out = append(out, src[i-n:i]...)
					continue
				}
			}

			if path && b != 0 && b < 0x20 {
				flags |= anomaly.ControlCharInPath
			}

			out = append(out, finishByte(d, b, path))
		case c == '+' && !path:
			out = append(out, ' ')
			i++
		case c == 0 && path:
			flags |= anomaly.NulByteInPath
			if d.NulRawTerminates {
				return out, st, flags
			}

			out = append(out, c)
			i++
		case c < 0x20 && path:
			flags |= anomaly.ControlCharInPath
			out = append(out, finishByte(d, c, path))
			i++
		default:
			out = append(out, finishByte(d, c, path))
			i++
		}
	}

	return out, st, flags
}

// decodeEscape resolves one escape sequence starting at the percent sign.
// n is the number of input bytes consumed, zero when the sequence is invalid
// and the personality preserves it.
func decodeEscape(d config.Decode, src []byte, path bool) (b byte, n int, emit bool, flags anomaly.Flag) {
	if len(src) >= 2 && (src[1] == 'u' || src[1] == 'U') {
		if !d.UEncoding {
			flags |= anomaly.InvalidEncoding
			return 0, 0, false, flags
		}

		if len(src) >= 6 && allHex(src[2:6]) {
			hi := hexconv.Pair(src[2], src[3])
			lo := hexconv.Pair(src[4], src[5])

			switch {
			case hi == 0:
				// overlong: the wide encoding was not needed at all
				flags |= anomaly.OverlongUTF8
				b = lo
			case hi == 0xFF && lo <= 0xEF:
				flags |= anomaly.HalfFullWidth
				b = bestfit(hi, lo)
			default:
				b = bestfit(hi, lo)
			}

			return b, 6, true, flags
		}

		// %u with no four hex digits behind it
		flags |= anomaly.InvalidEncoding
		switch d.Invalid {
		case config.StripPercent:
			return 0, 1, false, flags
		case config.DecodeAnyway:
			if len(src) >= 6 {
				hi := hexconv.Halfbyte[src[2]]&0xF<<4 | hexconv.Halfbyte[src[3]]&0xF
				lo := hexconv.Halfbyte[src[4]]&0xF<<4 | hexconv.Halfbyte[src[5]]&0xF
				return bestfit(hi, lo), 6, true, flags
			}

			return 0, 0, false, flags
		default:
			return 0, 0, false, flags
		}
	}

	if len(src) >= 3 && hexconv.Is(src[1]) && hexconv.Is(src[2]) {
		return hexconv.Pair(src[1], src[2]), 3, true, flags
	}

	flags |= anomaly.InvalidEncoding

	switch d.Invalid {
	case config.StripPercent:
		return 0, 1, false, flags
	case config.DecodeAnyway:
		if len(src) >= 3 {
			return hexconv.Halfbyte[src[1]]&0xF<<4 | hexconv.Halfbyte[src[2]]&0xF, 3, true, flags
		}

		return 0, 0, false, flags
	default:
		return 0, 0, false, flags
	}
}

// finishByte applies the byte-level personality conversions.
func finishByte(d config.Decode, b byte, path bool) byte {
	if path && b == '\\' && d.BackslashToSlash {
		b = '/'
	}

	if path && d.Lowercase && b >= 'A' && b <= 'Z' {
		b |= 0x20
	}

	return b
}

func isSeparator(d config.Decode, b byte) bool {
	return b == '/' || (b == '\\' && d.BackslashToSlash)
}

// containsEscape tells whether data still holds a decodable escape sequence
// after a completed decode pass.
func containsEscape(d config.Decode, data []byte) bool {
	for i := 0; i+2 < len(data); i++ {
		if data[i] != '%' {
			continue
		}

		if hexconv.Is(data[i+1]) && hexconv.Is(data[i+2]) {
			return true
		}

		if d.UEncoding && (data[i+1] == 'u' || data[i+1] == 'U') &&
			i+5 < len(data) && allHex(data[i+2:i+6]) {
			return true
		}
	}

	return false
}

// normalizeUTF8 detects overlong UTF-8 sequences, decoding them down to
// their true character when the personality does.
func normalizeUTF8(d config.Decode, src []byte, path bool) ([]byte, anomaly.Flag) {
	var flags anomaly.Flag

	out := make([]byte, 0, len(src))

	for i := 0; i < len(src); {
		c := src[i]

		switch {
		case (c == 0xC0 || c == 0xC1) && i+1 < len(src) && isCont(src[i+1]):
			flags |= anomaly.OverlongUTF8
			if d.ConvertOverlongUTF8 {
				out = append(out, finishByte(d, c&0x1F<<6|src[i+1]&0x3F, path))
			} else {
				out = append(out, src[i], src[i+1])
			}

			i += 2
		case c == 0xE0 && i+2 < len(src) && src[i+1] >= 0x80 && src[i+1] <= 0x9F && isCont(src[i+2]):
			flags |= anomaly.OverlongUTF8
			if d.ConvertOverlongUTF8 {
				decoded := uint16(src[i+1]&0x3F)<<6 | uint16(src[i+2]&0x3F)
				if decoded <= 0xFF {
					out = append(out, finishByte(d, byte(decoded), path))
				} else {
					out = append(out, '?')
				}
			} else {
				out = append(out, src[i], src[i+1], src[i+2])
			}

			i += 3
		default:
			out = append(out, c)
			i++
		}
	}

	return out, flags
}

// normalizeSegments applies separator compression and dot-segment collapsing
// over a fully decoded path.
func normalizeSegments(d config.Decode, p []byte) ([]byte, anomaly.Flag) {
	if !d.CollapseTraversal && !d.CompressSeparators {
		return p, 0
	}

	var flags anomaly.Flag

	rooted := len(p) > 0 && p[0] == '/'
	trailing := len(p) > 1 && p[len(p)-1] == '/'

	body := p
	if rooted {
		body = p[1:]
	}

	var segments [][]byte

	for _, segment := range bytes.Split(body, []byte{'/'}) {
		switch {
		case len(segment) == 0:
			if !d.CompressSeparators {
				segments = append(segments, segment)
			}
		case d.CollapseTraversal && len(segment) == 2 && segment[0] == '.' && segment[1] == '.':
			flags |= anomaly.PathTraversal
			if n := len(segments); n > 0 {
				segments = segments[:n-1]
			}
		case d.CollapseTraversal && len(segment) == 1 && segment[0] == '.':
		default:
			segments = append(segments, segment)
		}
	}

	out := make([]byte, 0, len(p))
	if rooted {
		out = append(out, '/')
	}

	out = append(out, bytes.Join(segments, []byte{'/'})...)

	if trailing && len(out) > 0 && out[len(out)-1] != '/' {
		out = append(out, '/')
	}

	if rooted && len(out) == 0 {
		out = append(out, '/')
	}

	return out, flags
}

func allHex(b []byte) bool {
	for _, c := range b {
		if !hexconv.Is(c) {
			return false
		}
	}

	return true
}

func isCont(c byte) bool {
	return c&0xC0 == 0x80
}

// bestfit maps a wide character onto the single-byte stream. Characters
// outside latin-1 have no faithful narrow form and degrade to '?', which is
// what the modeled servers' best-fit tables do to most of them anyway.
func bestfit(hi, lo byte) byte {
	if hi == 0 {
		return lo
	}

	return '?'
}
