package urinorm

import (
	"testing"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/stretchr/testify/require"
)

func TestPathPlain(t *testing.T) {
	d := config.For(config.Generic).Decode

	path, flags := Path(d, "/index.html")
	require.Equal(t, "/index.html", path)
	require.Zero(t, flags)
}

func TestPathPercentDecoding(t *testing.T) {
	d := config.For(config.Generic).Decode

	path, flags := Path(d, "/a%20b")
	require.Equal(t, "/a b", path)
	require.Zero(t, flags)
}

func TestPathTraversal(t *testing.T) {
	t.Run("collapsing personality", func(t *testing.T) {
		d := config.For(config.IDS).Decode
		path, flags := Path(d, "/a/%2e%2e/b")
		require.Equal(t, "/b", path)
		require.True(t, flags.Has(anomaly.PathTraversal))
	})

	t.Run("non-collapsing personality", func(t *testing.T) {
		d := config.For(config.Minimal).Decode
		path, flags := Path(d, "/a/%2e%2e/b")
		require.Equal(t, "/a/../b", path)
		require.Zero(t, flags)
	})

	t.Run("cannot escape the root", func(t *testing.T) {
		d := config.For(config.Generic).Decode
		path, flags := Path(d, "/../../etc/passwd")
		require.Equal(t, "/etc/passwd", path)
		require.True(t, flags.Has(anomaly.PathTraversal))
	})
}

func TestPathDoubleEncoding(t *testing.T) {
	d := config.For(config.Generic).Decode

	path, flags := Path(d, "/%252e%252e/secret")
	require.Equal(t, "/%2e%2e/secret", path)
	require.True(t, flags.Has(anomaly.DoubleEncoding))

	t.Run("second pass when the personality decodes twice", func(t *testing.T) {
		dd := d
		dd.DoubleDecodePath = true
		path, flags := Path(dd, "/a/%252e%252e/secret")
		require.Equal(t, "/secret", path)
		require.True(t, flags.Has(anomaly.DoubleEncoding))
		require.True(t, flags.Has(anomaly.PathTraversal))
	})
}

func TestPathNulBytes(t *testing.T) {
	t.Run("flag only", func(t *testing.T) {
		d := config.For(config.Generic).Decode
		path, flags := Path(d, "/a%00b")
		require.Equal(t, "/a\x00b", path)
		require.True(t, flags.Has(anomaly.NulByteInPath))
	})

	t.Run("terminating personality", func(t *testing.T) {
		d := config.For(config.IIS60).Decode
		path, flags := Path(d, "/a%00b")
		require.Equal(t, "/a", path)
		require.True(t, flags.Has(anomaly.NulByteInPath))
	})
}

func TestPathControlChars(t *testing.T) {
	d := config.For(config.Generic).Decode

	_, flags := Path(d, "/a%09b")
	require.True(t, flags.Has(anomaly.ControlCharInPath))
}

func TestPathUEncoding(t *testing.T) {
	t.Run("decoded by IIS-like personalities", func(t *testing.T) {
		d := config.For(config.IIS50).Decode
		path, flags := Path(d, "/%u0041")
		require.Equal(t, "/a", path) // IIS 5 also lowercases
		require.True(t, flags.Has(anomaly.OverlongUTF8))
		require.Zero(t, flags&anomaly.InvalidEncoding)
	})

	t.Run("fullwidth range flagged", func(t *testing.T) {
		d := config.For(config.IIS50).Decode
		_, flags := Path(d, "/%uFF0F")
		require.True(t, flags.Has(anomaly.HalfFullWidth))
	})

	t.Run("rejected when disabled", func(t *testing.T) {
		d := config.For(config.Generic).Decode
		path, flags := Path(d, "/%u0041")
		require.Equal(t, "/%u0041", path)
		require.True(t, flags.Has(anomaly.InvalidEncoding))
	})
}

func TestPathOverlongUTF8(t *testing.T) {
	t.Run("converted", func(t *testing.T) {
		d := config.For(config.IDS).Decode
		path, flags := Path(d, "/a%c0%afb")
		require.Equal(t, "/a/b", path)
		require.True(t, flags.Has(anomaly.OverlongUTF8))
	})

	t.Run("kept raw but flagged", func(t *testing.T) {
		d := config.For(config.Minimal).Decode
		path, flags := Path(d, "/a%c0%afb")
		require.Equal(t, "/a\xc0\xafb", path)
		require.True(t, flags.Has(anomaly.OverlongUTF8))
	})
}

func TestPathBackslashes(t *testing.T) {
	t.Run("converted", func(t *testing.T) {
		d := config.For(config.Generic).Decode
		path, _ := Path(d, `/a\b`)
		require.Equal(t, "/a/b", path)
	})

	t.Run("kept by apache", func(t *testing.T) {
		d := config.For(config.Apache2).Decode
		path, _ := Path(d, `/a\b`)
		require.Equal(t, `/a\b`, path)
	})

	t.Run("encoded separator", func(t *testing.T) {
		d := config.For(config.Generic).Decode
		path, flags := Path(d, "/a%2fb")
		require.Equal(t, "/a/b", path)
		require.True(t, flags.Has(anomaly.EncodedSeparator))
	})

	t.Run("encoded separator kept by apache", func(t *testing.T) {
		d := config.For(config.Apache2).Decode
		path, flags := Path(d, "/a%2fb")
		require.Equal(t, "/a%2fb", path)
		require.True(t, flags.Has(anomaly.EncodedSeparator))
	})
}

func TestPathSeparatorCompression(t *testing.T) {
	d := config.For(config.Nginx).Decode

	path, flags := Path(d, "//a///b/")
	require.Equal(t, "/a/b/", path)
	require.Zero(t, flags)

	t.Run("apache preserves empty segments", func(t *testing.T) {
		d := config.For(config.Apache2).Decode
		path, _ := Path(d, "/a//b")
		require.Equal(t, "/a//b", path)
	})
}

func TestPathInvalidEncoding(t *testing.T) {
	t.Run("preserved", func(t *testing.T) {
		d := config.For(config.Generic).Decode
		path, flags := Path(d, "/a%zzb")
		require.Equal(t, "/a%zzb", path)
		require.True(t, flags.Has(anomaly.InvalidEncoding))
	})

	t.Run("stripped", func(t *testing.T) {
		d := config.For(config.Generic).Decode
		d.Invalid = config.StripPercent
		path, flags := Path(d, "/a%zzb")
		require.Equal(t, "/azzb", path)
		require.True(t, flags.Has(anomaly.InvalidEncoding))
	})
}

func TestComponent(t *testing.T) {
	d := config.For(config.Generic).Decode

	t.Run("plus means space", func(t *testing.T) {
		value, flags := Component(d, "hello+world")
		require.Equal(t, "hello world", value)
		require.Zero(t, flags)
	})

	t.Run("percent decoding", func(t *testing.T) {
		value, flags := Component(d, "a%3db")
		require.Equal(t, "a=b", value)
		require.Zero(t, flags)
	})

	t.Run("double encoding flagged", func(t *testing.T) {
		value, flags := Component(d, "%2541")
		require.Equal(t, "%41", value)
		require.True(t, flags.Has(anomaly.DoubleEncoding))
	})
}
