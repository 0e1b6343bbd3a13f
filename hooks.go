package htp

import (
	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/tx"
)

// hooks holds the registered observers. Callbacks run synchronously on the
// feeding goroutine, so an analyst sees milestones in exact wire order.
type hooks struct {
	requestLine      func(*tx.Transaction)
	requestHeaders   func(*tx.Transaction)
	requestBodyData  func(*tx.Transaction, []byte)
	requestComplete  func(*tx.Transaction)
	responseLine     func(*tx.Transaction)
	responseHeaders  func(*tx.Transaction)
	responseBodyData func(*tx.Transaction, []byte)
	responseComplete func(*tx.Transaction)
	transaction      func(*tx.Transaction)
	anomalies        func(*tx.Transaction, anomaly.Flag)
}

// OnRequestLine runs fn once a request line is parsed and normalized.
func (c *Conn) OnRequestLine(fn func(*tx.Transaction)) *Conn {
	c.hooks.requestLine = fn
	return c
}

// OnRequestHeaders runs fn once a request's header block is complete.
func (c *Conn) OnRequestHeaders(fn func(*tx.Transaction)) *Conn {
	c.hooks.requestHeaders = fn
	return c
}

// OnRequestBodyData runs fn for every piece of transfer-decoded request
// body. Content decoding happens later, at completion.
func (c *Conn) OnRequestBodyData(fn func(*tx.Transaction, []byte)) *Conn {
	c.hooks.requestBodyData = fn
	return c
}

// OnRequestComplete runs fn once the request half is fully observed.
func (c *Conn) OnRequestComplete(fn func(*tx.Transaction)) *Conn {
	c.hooks.requestComplete = fn
	return c
}

// OnResponseLine runs fn once a status line is parsed.
func (c *Conn) OnResponseLine(fn func(*tx.Transaction)) *Conn {
	c.hooks.responseLine = fn
	return c
}

// OnResponseHeaders runs fn once a response's header block is complete.
// Interim responses report their headers too.
func (c *Conn) OnResponseHeaders(fn func(*tx.Transaction)) *Conn {
	c.hooks.responseHeaders = fn
	return c
}

// OnResponseBodyData runs fn for every piece of transfer-decoded response
// body.
func (c *Conn) OnResponseBodyData(fn func(*tx.Transaction, []byte)) *Conn {
	c.hooks.responseBodyData = fn
	return c
}

// OnResponseComplete runs fn once the response half is fully observed.
func (c *Conn) OnResponseComplete(fn func(*tx.Transaction)) *Conn {
	c.hooks.responseComplete = fn
	return c
}

// OnTransaction runs fn once both halves of a transaction are settled,
// including transactions cut short by connection close.
func (c *Conn) OnTransaction(fn func(*tx.Transaction)) *Conn {
	c.hooks.transaction = fn
	return c
}

// OnAnomaly runs fn whenever new anomaly flags appear on a transaction,
// carrying only the newly set bits.
func (c *Conn) OnAnomaly(fn func(*tx.Transaction, anomaly.Flag)) *Conn {
	c.hooks.anomalies = fn
	return c
}
