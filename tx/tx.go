// Package tx holds the transaction model: one observed request paired with
// the response that answered it.
package tx

import (
	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/form"
	"github.com/cccs-rtmorti/htp/kv"
)

// Progress tracks how far one half of a transaction has been observed.
type Progress uint8

const (
	ProgressNone Progress = iota
	ProgressLine
	ProgressHeaders
	ProgressBody
	ProgressComplete
)

func (p Progress) String() string {
	switch p {
	case ProgressNone:
		return "none"
	case ProgressLine:
		return "line"
	case ProgressHeaders:
		return "headers"
	case ProgressBody:
		return "body"
	case ProgressComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Transaction is the normalized record of one request/response exchange.
// Raw wire fragments are kept next to their decoded forms so an analyst can
// always see what the evasion looked like.
type Transaction struct {
	// Index is the zero-based position of the transaction on its
	// connection.
	Index int

	RequestLineRaw string
	Method         string
	// RawTarget is the request target exactly as sent. Path and Query hold
	// its normalized split.
	RawTarget string
	Path      string
	Query     string
	// Protocol is empty for a version-less request.
	Protocol string

	Headers  *kv.Storage
	Trailers *kv.Storage
	// Params collects decoded parameters from the query string and, where
	// applicable, the request body.
	Params []form.Param
	// RequestBody is the dechunked, decompressed request body.
	RequestBody []byte

	ResponseLineRaw  string
	ResponseProtocol string
	StatusCode       int
	ReasonPhrase     string

	ResponseHeaders  *kv.Storage
	ResponseTrailers *kv.Storage
	// ResponseBody is the dechunked, decompressed response body.
	ResponseBody []byte

	Flags anomaly.Flag

	RequestProgress  Progress
	ResponseProgress Progress
}

// headerPrealloc fits common header counts without growing.
const headerPrealloc = 16

func New(index int) *Transaction {
	return &Transaction{
		Index:            index,
		Headers:          kv.NewPrealloc(headerPrealloc),
		Trailers:         kv.New(),
		ResponseHeaders:  kv.NewPrealloc(headerPrealloc),
		ResponseTrailers: kv.New(),
	}
}

// AddFlags merges f into the transaction's flags and returns the bits that
// were not set before. Flags only ever accumulate.
func (t *Transaction) AddFlags(f anomaly.Flag) (added anomaly.Flag) {
	added = f &^ t.Flags
	t.Flags |= f

	return added
}

// Complete tells whether both halves have been fully observed.
func (t *Transaction) Complete() bool {
	return t.RequestProgress == ProgressComplete && t.ResponseProgress == ProgressComplete
}
