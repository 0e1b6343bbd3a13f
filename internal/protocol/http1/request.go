package http1

import (
	"strings"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/form"
	"github.com/cccs-rtmorti/htp/internal/strutil"
	"github.com/cccs-rtmorti/htp/tx"
	"github.com/cccs-rtmorti/htp/urinorm"
	"github.com/indigo-web/utils/uf"
)

type requestState uint8

const (
	rqLine requestState = iota + 1
	rqHeaders
	rqBodyLength
	rqBodyChunked
	rqTrailers
	rqBodyUntilClose
	rqDone
)

// RequestParser reconstructs the client half of a transaction from the
// to-server byte stream. It never buffers past the next event: Parse returns
// as soon as something is reportable, handing back the unconsumed extra.
type RequestParser struct {
	cfg *config.Config
	tx  *tx.Transaction

	state requestState
	lr    lineReader

	headerCount int
	headerBytes int

	remaining int64
	chunked   chunkedParser
}

func NewRequestParser(cfg *config.Config) *RequestParser {
	return &RequestParser{
		cfg:   cfg,
		state: rqLine,
		lr:    newLineReader(cfg),
	}
}

// Attach points the parser at the transaction to fill and rearms it.
func (p *RequestParser) Attach(t *tx.Transaction) {
	p.tx = t
	p.state = rqLine
	p.lr.reset()
	p.headerCount = 0
	p.headerBytes = 0
	p.remaining = 0
	p.chunked = newChunkedParser()
}

// Started tells whether any part of the current request was observed.
func (p *RequestParser) Started() bool {
	return p.tx != nil && p.tx.RequestProgress != tx.ProgressNone || p.lr.midLine()
}

// FinishesAtClose reports whether end of stream completes the current
// request cleanly: it either already ended, or its framing degraded to
// reading until close.
func (p *RequestParser) FinishesAtClose() bool {
	return p.state == rqDone || p.state == rqBodyUntilClose
}

// Parse consumes data until it can report an event. extra holds the bytes
// left over; feed them back in after handling the event.
func (p *RequestParser) Parse(data []byte) (ev Event, chunk, extra []byte, err error) {
	switch p.state {
	case rqLine:
		goto requestLine
	case rqHeaders:
		goto headers
	case rqBodyLength:
		goto bodyLength
	case rqBodyChunked:
		goto bodyChunked
	case rqTrailers:
		goto trailers
	case rqBodyUntilClose:
		goto bodyUntilClose
	case rqDone:
		goto done
	default:
		panic("unreachable code")
	}

requestLine:
	for {
		line, rest, bare, complete, lerr := p.lr.next(data)
		if lerr != nil {
			return 0, nil, nil, lerr
		}

		if !complete {
			return EventPending, nil, nil, nil
		}

		data = rest

		if len(strutil.StripWS(uf.B2S(line))) == 0 {
			// some servers skip stray blank lines between requests
			p.tx.AddFlags(anomaly.LeadingJunk)
			continue
		}

		if bare {
			p.tx.AddFlags(anomaly.BareLF)
		}

		if len(line) > p.cfg.URI.MaxLength {
			return 0, nil, nil, ErrLineTooLong
		}

		p.parseRequestLine(string(line))
		p.tx.RequestProgress = tx.ProgressLine

		if len(p.tx.Protocol) == 0 {
			// a version-less request has no headers and no body
			p.state = rqDone
		} else {
			p.state = rqHeaders
		}

		return EventRequestLine, nil, data, nil
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
			p.tx.RequestProgress = tx.ProgressHeaders
			p.resolveBody()

			return EventHeaders, nil, data, nil
		}

		if p.headerBytes += len(line); p.headerBytes > p.cfg.Headers.MaxSpace {
			return 0, nil, nil, ErrHeadersTooLarge
		}

		if p.headerCount++; p.headerCount > p.cfg.Headers.MaxNumber {
			return 0, nil, nil, ErrTooManyHeaders
		}

		p.tx.AddFlags(consumeFieldLine(p.tx.Headers, line))
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
			p.state = rqDone
		}

		p.tx.RequestProgress = tx.ProgressBody

		return EventBodyData, chunk, extra, nil
	}

bodyChunked:
	{
		if len(data) == 0 {
			return EventPending, nil, nil, nil
		}

		chunk, rest, finished, cerr := p.chunked.Parse(data)
		if cerr != nil {
			// framing is lost; degrade to capturing raw bytes until close
			p.tx.AddFlags(anomaly.InvalidChunkEncoding)
			p.tx.RequestProgress = tx.ProgressBody
			p.state = rqBodyUntilClose

			return EventBodyData, rest, nil, nil
		}

		if finished {
			p.state = rqTrailers
			data = rest
			goto trailers
		}

		if len(chunk) > 0 {
			p.tx.RequestProgress = tx.ProgressBody
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
			p.state = rqDone
			goto done
		}

		p.tx.AddFlags(consumeFieldLine(p.tx.Trailers, line))
	}

bodyUntilClose:
	if len(data) == 0 {
		return EventPending, nil, nil, nil
	}

	return EventBodyData, data, nil, nil

done:
	return EventComplete, nil, data, nil
}

// resolveBody settles the request's body framing from the parsed headers.
// Requests carry a body only when they declare one.
func (p *RequestParser) resolveBody() {
	f, length, flags := resolveFraming(p.cfg, p.tx.Headers)
	p.tx.AddFlags(flags)

	switch f {
	case framingChunked:
		p.chunked = newChunkedParser()
		p.state = rqBodyChunked
	case framingLength:
		if length > 0 {
			p.remaining = length
			p.state = rqBodyLength
		} else {
			p.state = rqDone
		}
	default:
		p.state = rqDone
	}
}

func (p *RequestParser) parseRequestLine(raw string) {
	t := p.tx
	t.RequestLineRaw = raw

	method, rest, ok := strings.Cut(raw, " ")
	if !ok {
		// a lone token; treat it as a method with no target
		t.AddFlags(anomaly.RequestLineInvalid | anomaly.HTTP09)
		t.Method = strutil.StripWS(raw)

		return
	}

	t.Method = method
	target := rest

	if sp := strings.LastIndexByte(rest, ' '); sp != -1 && strutil.HasPrefixFold(strutil.LStripWS(rest[sp+1:]), "HTTP/") {
		t.Protocol = strutil.StripWS(rest[sp+1:])
		target = rest[:sp]
	} else {
		t.AddFlags(anomaly.HTTP09)
	}

	t.RawTarget = strutil.StripWS(target)
	p.normalizeTarget(t)
}

// normalizeTarget splits the request target and normalizes the path under
// the configured personality. Query parameters are decoded right away so
// header hooks already see them.
func (p *RequestParser) normalizeTarget(t *tx.Transaction) {
	target := t.RawTarget

	switch {
	case target == "*":
		t.Path = target
		return
	case strutil.CmpFold(t.Method, "CONNECT"):
		// authority form; there is nothing to decode
		t.Path = target
		return
	}

	// absolute form: skip scheme and authority
	if i := strings.Index(target, "://"); i != -1 {
		if slash := strings.IndexByte(target[i+3:], '/'); slash != -1 {
			target = target[i+3+slash:]
		} else {
			target = "/"
		}
	}

	rawPath := target
	if q := strings.IndexByte(target, '?'); q != -1 {
		t.Query = target[q+1:]
		rawPath = target[:q]
	}

	path, flags := urinorm.Path(p.cfg.Decode, rawPath)
	t.Path = path
	t.AddFlags(flags)

	if len(t.Query) > 0 {
		params, flags := form.ParseURLEncoded(p.cfg.Decode, p.cfg.Params.Separators, t.Query, form.SourceQuery)
		t.Params = append(t.Params, params...)
		t.AddFlags(flags)
	}
}
