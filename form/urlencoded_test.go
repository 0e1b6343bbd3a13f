package form

import (
	"testing"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/dchest/uniuri"
	"github.com/stretchr/testify/require"
)

func TestParseURLEncoded(t *testing.T) {
	cfg := config.Default()

	t.Run("simple pairs", func(t *testing.T) {
		params, flags := ParseURLEncoded(cfg.Decode, cfg.Params.Separators, "a=1&b=2", SourceQuery)
		require.Zero(t, flags)
		require.Equal(t, []Param{
			{Name: "a", Value: "1", Source: SourceQuery},
			{Name: "b", Value: "2", Source: SourceQuery},
		}, params)
	})

	t.Run("duplicates keep wire order", func(t *testing.T) {
		params, _ := ParseURLEncoded(cfg.Decode, cfg.Params.Separators, "name=a&name=b", SourceBody)
		require.Len(t, params, 2)
		require.Equal(t, "a", params[0].Value)
		require.Equal(t, "b", params[1].Value)
	})

	t.Run("semicolon separator", func(t *testing.T) {
		params, _ := ParseURLEncoded(cfg.Decode, cfg.Params.Separators, "a=1;b=2", SourceQuery)
		require.Len(t, params, 2)
		require.Equal(t, "b", params[1].Name)
	})

	t.Run("ampersand only for minimal", func(t *testing.T) {
		minimal := config.For(config.Minimal)
		params, _ := ParseURLEncoded(minimal.Decode, minimal.Params.Separators, "a=1;b=2", SourceQuery)
		require.Len(t, params, 1)
		require.Equal(t, "1;b=2", params[0].Value)
	})

	t.Run("valueless pair", func(t *testing.T) {
		params, _ := ParseURLEncoded(cfg.Decode, cfg.Params.Separators, "flag", SourceQuery)
		require.Equal(t, []Param{{Name: "flag", Source: SourceQuery}}, params)
	})

	t.Run("empty segments skipped", func(t *testing.T) {
		params, _ := ParseURLEncoded(cfg.Decode, cfg.Params.Separators, "a=1&&b=2&", SourceQuery)
		require.Len(t, params, 2)
	})

	t.Run("component decoding", func(t *testing.T) {
		params, flags := ParseURLEncoded(cfg.Decode, cfg.Params.Separators, "a%20b=c+d", SourceQuery)
		require.Zero(t, flags)
		require.Equal(t, "a b", params[0].Name)
		require.Equal(t, "c d", params[0].Value)
	})

	t.Run("double encoding surfaces", func(t *testing.T) {
		_, flags := ParseURLEncoded(cfg.Decode, cfg.Params.Separators, "a=%2541", SourceQuery)
		require.True(t, flags.Has(anomaly.DoubleEncoding))
	})

	t.Run("long opaque value survives", func(t *testing.T) {
		value := uniuri.NewLenChars(4096, []byte("abcdefghijklmnopqrstuvwxyz0123456789"))
		params, flags := ParseURLEncoded(cfg.Decode, cfg.Params.Separators, "blob="+value, SourceBody)
		require.Zero(t, flags)
		require.Equal(t, value, params[0].Value)
	})
}
