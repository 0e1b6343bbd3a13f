// Package htp reconstructs HTTP/1.x transactions from passively captured
// byte streams. It is built for intrusion detection: malformed traffic is
// parsed the way the modeled server implementation would parse it, with
// every deviation recorded as an anomaly flag instead of an error.
package htp

import (
	"fmt"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/codec"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/form"
	"github.com/cccs-rtmorti/htp/internal/protocol/http1"
	"github.com/cccs-rtmorti/htp/internal/strutil"
	"github.com/cccs-rtmorti/htp/tx"
	"github.com/google/uuid"
	"github.com/indigo-web/utils/uf"
)

// Direction tells which peer produced the bytes being fed.
type Direction uint8

const (
	// ToServer is the client's stream.
	ToServer Direction = iota
	// ToClient is the server's stream.
	ToClient
)

// Conn observes both directions of one TCP connection and reconstructs the
// transactions carried over it. Responses pair with requests first-in
// first-out, which also covers pipelining.
//
// Conn is not safe for concurrent use; a capture pipeline feeds each
// connection from a single goroutine.
type Conn struct {
	cfg *config.Config
	id  uuid.UUID

	reqParser  *http1.RequestParser
	respParser *http1.ResponseParser

	txs []*tx.Transaction

	reqIdx       int
	respIdx      int
	attachedReq  int
	attachedResp int

	decoders  *codec.Registry
	hooks     hooks
	connFlags anomaly.ConnFlag

	tunneled bool
	closed   bool
}

// New opens a monitor over one connection. A nil cfg selects the Generic
// personality with default limits.
func New(cfg *config.Config) *Conn {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Conn{
		cfg:          cfg,
		id:           uuid.New(),
		reqParser:    http1.NewRequestParser(cfg),
		respParser:   http1.NewResponseParser(cfg),
		decoders:     codec.Default(),
		attachedReq:  -1,
		attachedResp: -1,
	}
}

// ID identifies the connection in exported records.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// ConnFlags returns connection-level markers.
func (c *Conn) ConnFlags() anomaly.ConnFlag {
	return c.connFlags
}

// Transactions returns every transaction observed so far, in wire order.
func (c *Conn) Transactions() []*tx.Transaction {
	out := make([]*tx.Transaction, 0, len(c.txs))

	for _, t := range c.txs {
		if t.RequestProgress == tx.ProgressNone && t.ResponseProgress == tx.ProgressNone {
			continue
		}

		out = append(out, t)
	}

	return out
}

// Feed pushes captured bytes of one direction into the parsers. The returned
// count tells how many bytes were consumed; it falls short of len(data) only
// together with an error, after which the connection accepts no further
// traffic in that direction.
func (c *Conn) Feed(dir Direction, data []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}

	if c.tunneled {
		return 0, ErrTunneledTraffic
	}

	if dir == ToServer {
		return c.feedRequest(data)
	}

	return c.feedResponse(data)
}

// Close marks the end of both streams. Close-delimited bodies end cleanly
// here; every other transaction still in flight is settled as truncated.
func (c *Conn) Close() error {
	if c.closed {
		return ErrClosed
	}

	c.closed = true

	if c.attachedResp == c.respIdx && c.respIdx < len(c.txs) {
		t := c.txs[c.respIdx]
		if t.ResponseProgress != tx.ProgressComplete && c.respParser.Started() && c.respParser.FinishesAtClose() {
			c.finalizeResponse(t)
			c.respIdx++
		}
	}

	// requests degrade to until-close framing after broken chunking
	if c.attachedReq == c.reqIdx && c.reqIdx < len(c.txs) {
		t := c.txs[c.reqIdx]
		if t.RequestProgress != tx.ProgressComplete && c.reqParser.Started() && c.reqParser.FinishesAtClose() {
			c.finalizeRequest(t)
			c.reqIdx++
		}
	}

	live := c.txs[:0]
	for _, t := range c.txs {
		if t.RequestProgress == tx.ProgressNone && t.ResponseProgress == tx.ProgressNone {
			continue
		}

		live = append(live, t)
	}
	c.txs = live

	for _, t := range c.txs {
		if t.Complete() {
			continue
		}

		c.flagTx(t, anomaly.Truncated)
		c.call(c.hooks.transaction, t)
	}

	return nil
}

func (c *Conn) feedRequest(data []byte) (int, error) {
	total := len(data)

	for {
		if c.attachedReq != c.reqIdx {
			if len(data) == 0 {
				return total, nil
			}

			c.reqParser.Attach(c.txAt(c.reqIdx))
			c.attachedReq = c.reqIdx
		}

		t := c.txs[c.reqIdx]

		before := t.Flags
		ev, chunk, extra, err := c.reqParser.Parse(data)
		c.notifyAnomalies(t, before)

		if err != nil {
			return total - len(data), fmt.Errorf("%w: %v", ErrProtocolDesync, err)
		}

		switch ev {
		case http1.EventPending:
			return total, nil
		case http1.EventRequestLine:
			if c.reqIdx > c.respIdx {
				c.connFlags |= anomaly.Pipelined
			}

			c.call(c.hooks.requestLine, t)
		case http1.EventHeaders:
			c.call(c.hooks.requestHeaders, t)
		case http1.EventBodyData:
			var dropped bool
			t.RequestBody, dropped = appendBounded(t.RequestBody, chunk, c.cfg.Body.MaxSize)
			if dropped {
				c.flagTx(t, anomaly.BodyTruncated)
			}

			if c.hooks.requestBodyData != nil {
				c.hooks.requestBodyData(t, chunk)
			}
		case http1.EventComplete:
			c.finalizeRequest(t)
			c.reqIdx++
		}

		data = extra
	}
}

func (c *Conn) feedResponse(data []byte) (int, error) {
	total := len(data)

	for {
		if c.tunneled {
			if len(data) > 0 {
				return total - len(data), ErrTunneledTraffic
			}

			return total, nil
		}

		if c.attachedResp != c.respIdx {
			if len(data) == 0 {
				return total, nil
			}

			t := c.txAt(c.respIdx)
			if t.RequestProgress == tx.ProgressNone {
				c.flagTx(t, anomaly.UnsolicitedResponse)
			}

			c.respParser.Attach(t)
			c.attachedResp = c.respIdx
		}

		t := c.txs[c.respIdx]

		before := t.Flags
		ev, chunk, extra, err := c.respParser.Parse(data)
		c.notifyAnomalies(t, before)

		if err != nil {
			return total - len(data), fmt.Errorf("%w: %v", ErrProtocolDesync, err)
		}

		switch ev {
		case http1.EventPending:
			return total, nil
		case http1.EventStatusLine:
			c.call(c.hooks.responseLine, t)
		case http1.EventHeaders:
			c.call(c.hooks.responseHeaders, t)
		case http1.EventBodyData:
			var dropped bool
			t.ResponseBody, dropped = appendBounded(t.ResponseBody, chunk, c.cfg.Body.MaxSize)
			if dropped {
				c.flagTx(t, anomaly.BodyTruncated)
			}

			if c.hooks.responseBodyData != nil {
				c.hooks.responseBodyData(t, chunk)
			}
		case http1.EventComplete:
			c.finalizeResponse(t)
			c.respIdx++
		}

		data = extra
	}
}

// finalizeRequest settles the request half: content decoding, then body
// parameter extraction.
func (c *Conn) finalizeRequest(t *tx.Transaction) {
	before := t.Flags

	if enc := t.Headers.Value("Content-Encoding"); len(enc) > 0 {
		body, flags := c.decoders.Decode(c.cfg.Decompression, enc, t.RequestBody)
		t.RequestBody = body
		t.AddFlags(flags)
	}

	ctype := t.Headers.Value("Content-Type")
	mediatype, _ := strutil.CutHeader(ctype)

	switch {
	case strutil.CmpFold(mediatype, "application/x-www-form-urlencoded") && len(t.RequestBody) > 0:
		params, flags := form.ParseURLEncoded(c.cfg.Decode, c.cfg.Params.Separators, uf.B2S(t.RequestBody), form.SourceBody)
		t.Params = append(t.Params, params...)
		t.AddFlags(flags)
	case strutil.HasPrefixFold(mediatype, "multipart/") && len(t.RequestBody) > 0:
		parts, flags := form.ParseMultipart(c.cfg.Multipart, ctype, t.RequestBody)
		t.Params = append(t.Params, form.PartParams(parts)...)
		t.AddFlags(flags)
	}

	t.RequestProgress = tx.ProgressComplete
	c.notifyAnomalies(t, before)
	c.call(c.hooks.requestComplete, t)
	c.deliverIfComplete(t)
}

func (c *Conn) finalizeResponse(t *tx.Transaction) {
	before := t.Flags

	if enc := t.ResponseHeaders.Value("Content-Encoding"); len(enc) > 0 {
		body, flags := c.decoders.Decode(c.cfg.Decompression, enc, t.ResponseBody)
		t.ResponseBody = body
		t.AddFlags(flags)
	}

	t.ResponseProgress = tx.ProgressComplete
	c.notifyAnomalies(t, before)
	c.call(c.hooks.responseComplete, t)
	c.deliverIfComplete(t)

	if t.StatusCode == 101 ||
		(strutil.CmpFold(t.Method, "CONNECT") && t.StatusCode >= 200 && t.StatusCode < 300) {
		c.tunneled = true
	}
}

func (c *Conn) deliverIfComplete(t *tx.Transaction) {
	if t.Complete() {
		c.call(c.hooks.transaction, t)
	}
}

func (c *Conn) txAt(i int) *tx.Transaction {
	for i >= len(c.txs) {
		c.txs = append(c.txs, tx.New(len(c.txs)))
	}

	return c.txs[i]
}

func (c *Conn) notifyAnomalies(t *tx.Transaction, before anomaly.Flag) {
	if added := t.Flags &^ before; added != 0 && c.hooks.anomalies != nil {
		c.hooks.anomalies(t, added)
	}
}

func (c *Conn) flagTx(t *tx.Transaction, f anomaly.Flag) {
	if added := t.AddFlags(f); added != 0 && c.hooks.anomalies != nil {
		c.hooks.anomalies(t, added)
	}
}

func (c *Conn) call(fn func(*tx.Transaction), t *tx.Transaction) {
	if fn != nil {
		fn(t)
	}
}

func appendBounded(dst, chunk []byte, max int64) (out []byte, dropped bool) {
	room := max - int64(len(dst))
	if room <= 0 {
		return dst, len(chunk) > 0
	}

	if int64(len(chunk)) > room {
		return append(dst, chunk[:room]...), true
	}

	return append(dst, chunk...), false
}
