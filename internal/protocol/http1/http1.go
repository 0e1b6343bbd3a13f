// Package http1 implements resumable, tolerance-first parsers for the two
// halves of an HTTP/1.x exchange. Structural deviations turn into anomaly
// flags on the transaction; errors are reserved for streams that cannot be
// followed any further.
package http1

import (
	"bytes"
	"errors"
	"strings"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/internal/buffer"
	"github.com/cccs-rtmorti/htp/internal/strutil"
	"github.com/cccs-rtmorti/htp/kv"
)

// Event tells the caller what a Parse call produced.
type Event uint8

const (
	// EventPending means all input was consumed without completing the next
	// element. Feed more data.
	EventPending Event = iota
	// EventRequestLine means the request line is parsed and normalized.
	EventRequestLine
	// EventStatusLine means the status line is parsed.
	EventStatusLine
	// EventHeaders means the header block ended and framing is resolved.
	EventHeaders
	// EventBodyData carries a piece of transfer-decoded body payload.
	EventBodyData
	// EventComplete means the message half is fully observed.
	EventComplete
)

var (
	ErrLineTooLong     = errors.New("line exceeds the configured limit")
	ErrTooManyHeaders  = errors.New("too many header fields")
	ErrHeadersTooLarge = errors.New("header block exceeds the configured limit")
)

// lineReader cuts complete lines off the stream, carrying partial lines
// across feed calls in a buffer.
type lineReader struct {
	buf          *buffer.Buffer
	clearPending bool
}

func newLineReader(cfg *config.Config) lineReader {
	max := cfg.Headers.MaxSpace
	if cfg.URI.MaxLength > max {
		max = cfg.URI.MaxLength
	}

	return lineReader{buf: buffer.New(cfg.URI.BufferPrealloc, max)}
}

// next returns the first complete line, already stripped of its terminator.
// bare reports a lone LF. The line may point into the carry buffer and must
// be consumed before the following next call.
func (l *lineReader) next(data []byte) (line, rest []byte, bare, complete bool, err error) {
	if l.clearPending {
		l.buf.Clear()
		l.clearPending = false
	}

	i := bytes.IndexByte(data, '\n')
	if i == -1 {
		if !l.buf.Append(data) {
			return nil, nil, false, false, ErrLineTooLong
		}

		return nil, nil, false, false, nil
	}

	line, rest = data[:i], data[i+1:]
	if l.buf.Len() > 0 {
		if !l.buf.Append(line) {
			return nil, nil, false, false, ErrLineTooLong
		}

		line = l.buf.Bytes()
		l.clearPending = true
	}

	bare = true
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line, bare = line[:n-1], false
	}

	return line, rest, bare, true, nil
}

func (l *lineReader) reset() {
	l.buf.Clear()
	l.clearPending = false
}

// midLine tells whether a partial line is buffered.
func (l *lineReader) midLine() bool {
	return !l.clearPending && l.buf.Len() > 0
}

// consumeFieldLine folds one header line into storage, tolerating the
// deviations seen in the wild instead of rejecting them.
func consumeFieldLine(storage *kv.Storage, line []byte) (flags anomaly.Flag) {
	if line[0] == ' ' || line[0] == '\t' {
		// continuation of the previous field
		flags |= anomaly.FieldFolded

		pairs := storage.Expose()
		if len(pairs) == 0 {
			storage.Add("", string(bytes.TrimLeft(line, " \t")))
			return flags | anomaly.FieldInvalid
		}

		last := &pairs[len(pairs)-1]
		last.Value += " " + strutil.StripWS(string(line))

		return flags
	}

	name, value, ok := bytes.Cut(line, []byte{':'})
	if !ok {
		// no colon; keep the raw line rather than losing it
		storage.Add("", string(line))
		return flags | anomaly.FieldUnparseable
	}

	key := string(name)
	if trimmed := strutil.RStripWS(key); len(trimmed) != len(key) {
		// whitespace before the colon enables some smuggling tricks
		flags |= anomaly.FieldInvalid
		key = trimmed
	}

	if len(key) > 0 && storage.Has(key) {
		flags |= anomaly.FieldRepeated
	}

	storage.Add(key, strutil.StripWS(string(value)))

	return flags
}

// parseContentLength mirrors lenient server behavior: surrounding whitespace
// and a leading plus are tolerated, digits are read until the first
// non-digit, and every irregularity is flagged.
func parseContentLength(value string) (n int64, flags anomaly.Flag) {
	s := strutil.StripWS(value)
	if len(s) == 0 {
		return 0, anomaly.InvalidContentLength
	}

	i := 0
	switch s[0] {
	case '+':
		flags |= anomaly.InvalidContentLength
		i++
	case '-':
		return 0, anomaly.InvalidContentLength
	}

	start := i
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int64(s[i]-'0')
		if n < 0 {
			return 0, anomaly.InvalidContentLength
		}
	}

	if i == start {
		return 0, flags | anomaly.InvalidContentLength
	}

	if i != len(s) {
		flags |= anomaly.InvalidContentLength
	}

	return n, flags
}

// hasToken reports whether a comma-separated token list contains the token,
// ignoring case.
func hasToken(list, token string) bool {
	for _, t := range strings.Split(list, ",") {
		if strutil.CmpFold(strutil.StripWS(t), token) {
			return true
		}
	}

	return false
}

type framing uint8

const (
	framingNone framing = iota
	framingLength
	framingChunked
)

// resolveFraming inspects the stored headers and decides how the body is
// delimited. Conflicting declarations are flagged and settled by the
// configured policy.
func resolveFraming(cfg *config.Config, headers *kv.Storage) (f framing, length int64, flags anomaly.Flag) {
	var chunked bool

	for _, te := range headers.Values("Transfer-Encoding") {
		if hasToken(te, "chunked") {
			chunked = true
		}
	}

	lengths := headers.Values("Content-Length")
	if len(lengths) > 0 {
		for _, v := range lengths[1:] {
			if !strutil.CmpFold(strutil.StripWS(v), strutil.StripWS(lengths[0])) {
				flags |= anomaly.FramingConflict
			}
		}

		n, lf := parseContentLength(lengths[0])
		length = n
		flags |= lf
	}

	switch {
	case chunked && len(lengths) > 0:
		flags |= anomaly.FramingConflict
		if cfg.Framing == config.PreferContentLength {
			return framingLength, length, flags
		}

		return framingChunked, 0, flags
	case chunked:
		return framingChunked, 0, flags
	case len(lengths) > 0:
		return framingLength, length, flags
	default:
		return framingNone, 0, flags
	}
}
