package htp

import (
	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/form"
	"github.com/cccs-rtmorti/htp/kv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type exportPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type exportParam struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

type exportTransaction struct {
	Connection string `json:"connection"`
	Index      int    `json:"index"`

	Method          string        `json:"method,omitempty"`
	Target          string        `json:"target,omitempty"`
	Path            string        `json:"path,omitempty"`
	Query           string        `json:"query,omitempty"`
	Protocol        string        `json:"protocol,omitempty"`
	Headers         []exportPair  `json:"headers,omitempty"`
	Trailers        []exportPair  `json:"trailers,omitempty"`
	Params          []exportParam `json:"params,omitempty"`
	RequestBodySize int           `json:"request_body_size"`

	StatusCode       int          `json:"status_code,omitempty"`
	ReasonPhrase     string       `json:"reason,omitempty"`
	ResponseHeaders  []exportPair `json:"response_headers,omitempty"`
	ResponseTrailers []exportPair `json:"response_trailers,omitempty"`
	ResponseBodySize int          `json:"response_body_size"`

	Flags     []string `json:"flags,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
}

// ExportJSON renders the observed transactions for downstream tooling. The
// connection id keys the records back to the capture.
func (c *Conn) ExportJSON() ([]byte, error) {
	txs := c.Transactions()
	out := make([]exportTransaction, len(txs))

	for i, t := range txs {
		out[i] = exportTransaction{
			Connection:       c.id.String(),
			Index:            t.Index,
			Method:           t.Method,
			Target:           t.RawTarget,
			Path:             t.Path,
			Query:            t.Query,
			Protocol:         t.Protocol,
			Headers:          exportPairs(t.Headers),
			Trailers:         exportPairs(t.Trailers),
			Params:           exportParams(t.Params),
			RequestBodySize:  len(t.RequestBody),
			StatusCode:       t.StatusCode,
			ReasonPhrase:     t.ReasonPhrase,
			ResponseHeaders:  exportPairs(t.ResponseHeaders),
			ResponseTrailers: exportPairs(t.ResponseTrailers),
			ResponseBodySize: len(t.ResponseBody),
			Flags:            flagNames(t.Flags),
			Truncated:        t.Flags.Has(anomaly.Truncated),
		}
	}

	return json.Marshal(out)
}

func exportPairs(s *kv.Storage) (pairs []exportPair) {
	for name, value := range s.Iter() {
		pairs = append(pairs, exportPair{Name: name, Value: value})
	}

	return pairs
}

func exportParams(params []form.Param) (out []exportParam) {
	for _, p := range params {
		out = append(out, exportParam{
			Name:   p.Name,
			Value:  p.Value,
			Source: p.Source.String(),
		})
	}

	return out
}

func flagNames(f anomaly.Flag) (names []string) {
	for _, flag := range f.Split() {
		names = append(names, flag.String())
	}

	return names
}
