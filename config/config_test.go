package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, Generic, cfg.Personality)
	require.Equal(t, PreferChunked, cfg.Framing)
	require.Positive(t, cfg.Body.MaxSize)
	require.Positive(t, cfg.Decompression.MaxOutputSize)
	require.Positive(t, cfg.Decompression.MaxRatio)
}

func TestPersonalityTables(t *testing.T) {
	t.Run("minimal decodes nothing", func(t *testing.T) {
		cfg := For(Minimal)
		require.False(t, cfg.Decode.CollapseTraversal)
		require.False(t, cfg.Decode.UEncoding)
		require.Equal(t, "&", cfg.Params.Separators)
	})

	t.Run("ids decodes everything", func(t *testing.T) {
		cfg := For(IDS)
		require.True(t, cfg.Decode.UEncoding)
		require.True(t, cfg.Decode.ConvertOverlongUTF8)
		require.True(t, cfg.Decode.CollapseTraversal)
		require.Equal(t, DecodeAnyway, cfg.Decode.Invalid)
	})

	t.Run("iis7 has no u-encoding", func(t *testing.T) {
		require.True(t, For(IIS60).Decode.UEncoding)
		require.False(t, For(IIS70).Decode.UEncoding)
	})

	t.Run("apache keeps backslashes", func(t *testing.T) {
		require.False(t, For(Apache2).Decode.BackslashToSlash)
		require.True(t, For(Generic).Decode.BackslashToSlash)
	})
}

func TestPersonalityString(t *testing.T) {
	require.Equal(t, "apache2", Apache2.String())
	require.Equal(t, "unknown", Personality(200).String())
}
