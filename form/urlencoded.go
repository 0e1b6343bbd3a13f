package form

import (
	"strings"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/urinorm"
)

// ParseURLEncoded parses a urlencoded parameter string, be it a query string
// or a form body. Separators lists the accepted pair separator bytes, since
// some servers also split on semicolons. A pair without an equals sign
// becomes a parameter with an empty value.
func ParseURLEncoded(d config.Decode, separators, data string, source Source) ([]Param, anomaly.Flag) {
	var (
		params []Param
		flags  anomaly.Flag
	)

	for len(data) > 0 {
		var pair string

		if i := strings.IndexAny(data, separators); i == -1 {
			pair, data = data, ""
		} else {
			pair, data = data[:i], data[i+1:]
		}

		if len(pair) == 0 {
			continue
		}

		name, value, _ := strings.Cut(pair, "=")

		decodedName, f := urinorm.Component(d, name)
		flags |= f

		decodedValue, f := urinorm.Component(d, value)
		flags |= f

		params = append(params, Param{
			Name:   decodedName,
			Value:  decodedValue,
			Source: source,
		})
	}

	return params, flags
}
