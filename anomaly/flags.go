package anomaly

import "strings"

// Flag is a set of anomaly markers recorded on a transaction. Flags are only
// ever added for the lifetime of a transaction, never cleared.
type Flag uint64

const (
	// BareLF marks a line terminated by a lone LF instead of CRLF.
	BareLF Flag = 1 << iota
	// LeadingJunk marks ignorable bytes (empty or whitespace lines) seen
	// before the request line. Some servers silently skip those.
	LeadingJunk
	// HTTP09 marks a request line carrying no protocol token at all.
	HTTP09
	// RequestLineInvalid marks a request line that could not be split into
	// method, target and protocol. The raw line is retained.
	RequestLineInvalid
	// StatusLineInvalid marks an unparseable response status line.
	StatusLineInvalid

	// FieldFolded marks a header continuation line merged into the previous
	// header value.
	FieldFolded
	// FieldRepeated marks a header name occurring more than once.
	FieldRepeated
	// FieldUnparseable marks a header line with no colon; the line is kept
	// raw under an empty name.
	FieldUnparseable
	// FieldInvalid marks otherwise suspicious header syntax, such as
	// whitespace before the colon.
	FieldInvalid

	// InvalidContentLength marks a Content-Length value that required
	// guessing: leading sign, trailing garbage, or no digits at all.
	InvalidContentLength
	// FramingConflict marks the simultaneous presence of Content-Length and
	// Transfer-Encoding: chunked.
	FramingConflict
	// InvalidChunkEncoding marks a malformed chunk size; chunked decoding
	// stops there and the remaining bytes fall back to close-delimited
	// framing.
	InvalidChunkEncoding

	// UnknownContentEncoding marks a Content-Encoding token without a
	// registered decoder; the body passes through unmodified.
	UnknownContentEncoding
	// CompressionBombSuspected marks decompression truncated by the output
	// size or expansion ratio limit.
	CompressionBombSuspected
	// BodyTruncated marks body bytes dropped past the configured capture
	// cap. Framing is still consumed, so the stream stays in sync.
	BodyTruncated

	// InvalidEncoding marks an invalid percent-encoding in a path or
	// parameter.
	InvalidEncoding
	// DoubleEncoding marks percent-decoding that revealed another layer of
	// percent-encoding underneath.
	DoubleEncoding
	// OverlongUTF8 marks an overlong UTF-8 sequence or an overlong %u
	// encoding in a path or parameter.
	OverlongUTF8
	// HalfFullWidth marks a %u encoding in the U+FF00-U+FFEF range, a
	// classic IIS evasion.
	HalfFullWidth
	// NulByteInPath marks a NUL byte, raw or encoded, in the request path.
	NulByteInPath
	// ControlCharInPath marks any other control character in the request
	// path.
	ControlCharInPath
	// EncodedSeparator marks a path separator that was hidden behind
	// percent-encoding.
	EncodedSeparator
	// PathTraversal marks dot-dot segments removed while collapsing the
	// path.
	PathTraversal

	// MultipartMalformed marks a multipart body whose structure deviated
	// from the declared boundary framing.
	MultipartMalformed
	// MultipartBoundaryQuirk marks tolerated boundary variations, such as
	// trailing whitespace after a delimiter line.
	MultipartBoundaryQuirk
	// MultipartNestedTooDeep marks a nested multipart part beyond the
	// configured depth; the part is kept opaque.
	MultipartNestedTooDeep
	// PartTruncated marks a multipart part cut off by end of stream.
	PartTruncated

	// UnsolicitedResponse marks a response for which no request was ever
	// observed on the connection.
	UnsolicitedResponse
	// Truncated marks a transaction finalized by connection close before
	// its declared framing was satisfied.
	Truncated
)

var names = []struct {
	flag Flag
	name string
}{
	{BareLF, "BareLF"},
	{LeadingJunk, "LeadingJunk"},
	{HTTP09, "HTTP09"},
	{RequestLineInvalid, "RequestLineInvalid"},
	{StatusLineInvalid, "StatusLineInvalid"},
	{FieldFolded, "FieldFolded"},
	{FieldRepeated, "FieldRepeated"},
	{FieldUnparseable, "FieldUnparseable"},
	{FieldInvalid, "FieldInvalid"},
	{InvalidContentLength, "InvalidContentLength"},
	{FramingConflict, "FramingConflict"},
	{InvalidChunkEncoding, "InvalidChunkEncoding"},
	{UnknownContentEncoding, "UnknownContentEncoding"},
	{CompressionBombSuspected, "CompressionBombSuspected"},
	{BodyTruncated, "BodyTruncated"},
	{InvalidEncoding, "InvalidEncoding"},
	{DoubleEncoding, "DoubleEncoding"},
	{OverlongUTF8, "OverlongUTF8"},
	{HalfFullWidth, "HalfFullWidth"},
	{NulByteInPath, "NulByteInPath"},
	{ControlCharInPath, "ControlCharInPath"},
	{EncodedSeparator, "EncodedSeparator"},
	{PathTraversal, "PathTraversal"},
	{MultipartMalformed, "MultipartMalformed"},
	{MultipartBoundaryQuirk, "MultipartBoundaryQuirk"},
	{MultipartNestedTooDeep, "MultipartNestedTooDeep"},
	{PartTruncated, "PartTruncated"},
	{UnsolicitedResponse, "UnsolicitedResponse"},
	{Truncated, "Truncated"},
}

// Has tells whether all bits of other are set.
func (f Flag) Has(other Flag) bool {
	return f&other == other
}

// Split returns the individual flags set in f, in declaration order.
func (f Flag) Split() (flags []Flag) {
	for _, entry := range names {
		if f.Has(entry.flag) {
			flags = append(flags, entry.flag)
		}
	}

	return flags
}

func (f Flag) String() string {
	var parts []string

	for _, entry := range names {
		if f.Has(entry.flag) {
			parts = append(parts, entry.name)
		}
	}

	if len(parts) == 0 {
		return "<none>"
	}

	return strings.Join(parts, "|")
}

// ConnFlag is a connection-level marker, kept apart from transaction flags.
type ConnFlag uint8

const (
	// Pipelined is set once a request is seen while an earlier response is
	// still outstanding.
	Pipelined ConnFlag = 1 << iota
)
