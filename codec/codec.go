// Package codec reverses content codings on captured message bodies.
package codec

import (
	"bytes"
	"io"
	"strings"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/internal/strutil"
)

// Decoder reverses a single content coding.
type Decoder interface {
	// Token returns the coding token the decoder registers under.
	Token() string
	Open(src io.Reader) (io.ReadCloser, error)
}

// Registry maps content coding tokens onto decoders.
type Registry struct {
	decoders map[string]Decoder
}

func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{
		decoders: make(map[string]Decoder, len(decoders)),
	}

	for _, d := range decoders {
		r.decoders[strings.ToLower(d.Token())] = d
	}

	return r
}

// Default returns a registry holding every supported coding.
func Default() *Registry {
	return NewRegistry(
		NewGZIP(),
		NewXGZIP(),
		NewDeflate(),
		NewZSTD(),
		NewXZ(),
		NewLZMA(),
	)
}

// Lookup resolves a coding token, ignoring case.
func (r *Registry) Lookup(token string) (Decoder, bool) {
	d, found := r.decoders[strings.ToLower(token)]
	return d, found
}

// Decode reverses the coding chain of a Content-Encoding value over a fully
// captured body. Codings were applied left to right by the sender, so
// decoding walks the tokens backwards. Identity tokens are skipped. The
// first unknown token stops the chain, passing the remaining bytes through
// untouched. Output is bounded by the decompression limits; hitting one
// truncates the result instead of failing.
func (r *Registry) Decode(cfg config.Decompression, encoding string, body []byte) ([]byte, anomaly.Flag) {
	var flags anomaly.Flag

	tokens := splitTokens(encoding)

	for i := len(tokens) - 1; i >= 0; i-- {
		token := tokens[i]
		if strutil.CmpFold(token, "identity") {
			continue
		}

		dec, found := r.Lookup(token)
		if !found {
			return body, flags | anomaly.UnknownContentEncoding
		}

		src, err := dec.Open(bytes.NewReader(body))
		if err != nil {
			// the token promised a stream the bytes do not deliver
			return body, flags | anomaly.UnknownContentEncoding
		}

		out, truncated, err := readBounded(src, limitFor(cfg, int64(len(body))))
		if truncated {
			return out, flags | anomaly.CompressionBombSuspected
		}

		if err != nil {
			if len(out) == 0 {
				return body, flags | anomaly.UnknownContentEncoding
			}

			// corrupt tail; keep what decoded cleanly
			return out, flags
		}

		body = out
	}

	return body, flags
}

func limitFor(cfg config.Decompression, inputSize int64) int64 {
	limit := cfg.MaxOutputSize

	if cfg.MaxRatio > 0 {
		if byRatio := inputSize * cfg.MaxRatio; byRatio < limit {
			limit = byRatio
		}
	}

	return limit
}

func readBounded(src io.ReadCloser, limit int64) (out []byte, truncated bool, err error) {
	defer src.Close()

	var buf bytes.Buffer

	n, err := io.Copy(&buf, io.LimitReader(src, limit+1))
	if n > limit {
		return buf.Bytes()[:limit], true, nil
	}

	return buf.Bytes(), false, err
}

func splitTokens(encoding string) (tokens []string) {
	for _, token := range strings.Split(encoding, ",") {
		if token = strutil.StripWS(token); len(token) > 0 {
			tokens = append(tokens, token)
		}
	}

	return tokens
}
