package http1

import (
	"strings"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/internal/strutil"
	"github.com/cccs-rtmorti/htp/tx"
)

type responseState uint8

const (
	rsLine responseState = iota + 1
	rsHeaders
	rsBodyLength
	rsBodyChunked
	rsTrailers
	rsBodyUntilClose
	rsDone
)

// ResponseParser reconstructs the server half of a transaction from the
// to-client byte stream.
type ResponseParser struct {
	cfg *config.Config
	tx  *tx.Transaction

	state responseState
	lr    lineReader

	headerCount int
	headerBytes int

	remaining      int64
	chunked        chunkedParser
	closeDelimited bool
}

func NewResponseParser(cfg *config.Config) *ResponseParser {
	return &ResponseParser{
		cfg:   cfg,
		state: rsLine,
		lr:    newLineReader(cfg),
	}
}

// Attach points the parser at the transaction whose response comes next.
// The transaction's request half, if observed, steers body framing.
func (p *ResponseParser) Attach(t *tx.Transaction) {
	p.tx = t
	p.state = rsLine
	p.lr.reset()
	p.headerCount = 0
	p.headerBytes = 0
	p.remaining = 0
	p.chunked = newChunkedParser()
	p.closeDelimited = false

	if t.Flags.Has(anomaly.HTTP09) {
		// a version-less exchange has no status line; the whole stream is
		// the body
		p.closeDelimited = true
		p.state = rsBodyUntilClose
	}
}

// Started tells whether any part of the current response was observed.
func (p *ResponseParser) Started() bool {
	return p.tx != nil && p.tx.ResponseProgress != tx.ProgressNone || p.lr.midLine()
}

// FinishesAtClose reports whether end of stream completes the current
// response cleanly.
func (p *ResponseParser) FinishesAtClose() bool {
	return p.state == rsDone || p.state == rsBodyUntilClose
}

// Parse consumes data until it can report an event, mirroring
// RequestParser.Parse.
func (p *ResponseParser) Parse(data []byte) (ev Event, chunk, extra []byte, err error) {
	switch p.state {
	case rsLine:
		goto statusLine
	case rsHeaders:
		goto headers
	case rsBodyLength:
		goto bodyLength
	case rsBodyChunked:
		goto bodyChunked
	case rsTrailers:
		goto trailers
	case rsBodyUntilClose:
		goto bodyUntilClose
	case rsDone:
		goto done
	default:
		panic("unreachable code")
	}

statusLine:
	for {
		line, rest, bare, complete, lerr := p.lr.next(data)
		if lerr != nil {
			return 0, nil, nil, lerr
		}

		if !complete {
			return EventPending, nil, nil, nil
		}

		data = rest

		if len(strutil.StripWS(string(line))) == 0 {
			p.tx.AddFlags(anomaly.LeadingJunk)
			continue
		}

		if bare {
			p.tx.AddFlags(anomaly.BareLF)
		}

		if len(line) > p.cfg.URI.MaxLength {
			return 0, nil, nil, ErrLineTooLong
		}

		p.parseStatusLine(string(line))
		p.tx.ResponseProgress = tx.ProgressLine
		p.state = rsHeaders

		return EventStatusLine, nil, data, nil
	}

headers:
	for {
		line, rest, bare, complete, lerr := p.lr.next(data)
		if lerr != nil {
			return 0, nil, nil, lerr
		}

		if !complete {
			return EventPending, nil, nil, nil
		}

		data = rest

		if bare {
			p.tx.AddFlags(anomaly.BareLF)
		}

		if len(line) == 0 {
			p.tx.ResponseProgress = tx.ProgressHeaders
			p.resolveBody()

			return EventHeaders, nil, data, nil
		}

		if p.headerBytes += len(line); p.headerBytes > p.cfg.Headers.MaxSpace {
			return 0, nil, nil, ErrHeadersTooLarge
		}

		if p.headerCount++; p.headerCount > p.cfg.Headers.MaxNumber {
			return 0, nil, nil, ErrTooManyHeaders
		}

		p.tx.AddFlags(consumeFieldLine(p.tx.ResponseHeaders, line))
	}

bodyLength:
	{
		if len(data) == 0 {
			return EventPending, nil, nil, nil
		}

		n := int64(len(data))
		if n > p.remaining {
			n = p.remaining
		}

		chunk, extra = data[:n], data[n:]
		if p.remaining -= n; p.remaining == 0 {
			p.state = rsDone
		}

		p.tx.ResponseProgress = tx.ProgressBody

		return EventBodyData, chunk, extra, nil
	}

bodyChunked:
	{
		if len(data) == 0 {
			return EventPending, nil, nil, nil
		}

		chunk, rest, finished, cerr := p.chunked.Parse(data)
		if cerr != nil {
			p.tx.AddFlags(anomaly.InvalidChunkEncoding)
			p.tx.ResponseProgress = tx.ProgressBody
			p.closeDelimited = true
			p.state = rsBodyUntilClose

			return EventBodyData, rest, nil, nil
		}

		if finished {
			p.state = rsTrailers
			data = rest
			goto trailers
		}

		if len(chunk) > 0 {
			p.tx.ResponseProgress = tx.ProgressBody
			return EventBodyData, chunk, rest, nil
		}

		data = rest
		goto bodyChunked
	}

trailers:
	for {
		line, rest, bare, complete, lerr := p.lr.next(data)
		if lerr != nil {
			return 0, nil, nil, lerr
		}

		if !complete {
			return EventPending, nil, nil, nil
		}

		data = rest

		if bare {
			p.tx.AddFlags(anomaly.BareLF)
		}

		if len(line) == 0 {
			p.state = rsDone
			goto done
		}

		p.tx.AddFlags(consumeFieldLine(p.tx.ResponseTrailers, line))
	}

bodyUntilClose:
	if len(data) == 0 {
		return EventPending, nil, nil, nil
	}

	p.tx.ResponseProgress = tx.ProgressBody

	return EventBodyData, data, nil, nil

done:
	return EventComplete, nil, data, nil
}

// resolveBody settles the response's framing. Unlike requests, a response
// without explicit framing runs until the connection closes, unless its
// status or the request's method forbids a body altogether.
func (p *ResponseParser) resolveBody() {
	t := p.tx

	if t.StatusCode >= 100 && t.StatusCode < 200 && t.StatusCode != 101 {
		// interim response; the final status line follows on the same
		// exchange
		p.state = rsLine
		p.headerCount = 0
		p.headerBytes = 0

		return
	}

	if !p.hasBody() {
		p.state = rsDone
		return
	}

	f, length, flags := resolveFraming(p.cfg, t.ResponseHeaders)
	t.AddFlags(flags)

	switch f {
	case framingChunked:
		p.chunked = newChunkedParser()
		p.state = rsBodyChunked
	case framingLength:
		if length > 0 {
			p.remaining = length
			p.state = rsBodyLength
		} else {
			p.state = rsDone
		}
	default:
		p.closeDelimited = true
		p.state = rsBodyUntilClose
	}
}

func (p *ResponseParser) hasBody() bool {
	t := p.tx

	switch {
	case t.StatusCode == 101, t.StatusCode == 204, t.StatusCode == 304:
		return false
	case strutil.CmpFold(t.Method, "HEAD"):
		return false
	case strutil.CmpFold(t.Method, "CONNECT") && t.StatusCode >= 200 && t.StatusCode < 300:
		return false
	default:
		return true
	}
}

func (p *ResponseParser) parseStatusLine(raw string) {
	t := p.tx
	t.ResponseLineRaw = raw

	proto, rest, ok := strings.Cut(raw, " ")
	if !ok || !strutil.HasPrefixFold(proto, "HTTP/") {
		t.AddFlags(anomaly.StatusLineInvalid)
	}

	t.ResponseProtocol = proto

	codeStr, reason, _ := strings.Cut(strutil.LStripWS(rest), " ")

	code, digits := 0, 0
	for ; digits < len(codeStr) && digits < 9 && codeStr[digits] >= '0' && codeStr[digits] <= '9'; digits++ {
		code = code*10 + int(codeStr[digits]-'0')
	}

	if digits == 0 || digits != len(codeStr) || code > 999 {
		t.AddFlags(anomaly.StatusLineInvalid)
	}

	t.StatusCode = code
	t.ReasonPhrase = strutil.StripWS(reason)
}
