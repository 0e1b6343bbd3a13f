package codec

import (
	"bytes"
	"testing"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/dchest/uniuri"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func zstded(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestDecodeGZIP(t *testing.T) {
	cfg := config.Default().Decompression
	payload := []byte(uniuri.NewLen(1024))

	for _, token := range []string{"gzip", "x-gzip", "GZIP"} {
		out, flags := Default().Decode(cfg, token, gzipped(t, payload))
		require.Zero(t, flags, token)
		require.Equal(t, payload, out, token)
	}
}

func TestDecodeDeflate(t *testing.T) {
	cfg := config.Default().Decompression
	payload := []byte(uniuri.NewLen(1024))

	t.Run("zlib wrapped", func(t *testing.T) {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, err := w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		out, flags := Default().Decode(cfg, "deflate", buf.Bytes())
		require.Zero(t, flags)
		require.Equal(t, payload, out)
	})

	t.Run("raw stream", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		_, err = w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		out, flags := Default().Decode(cfg, "deflate", buf.Bytes())
		require.Zero(t, flags)
		require.Equal(t, payload, out)
	})
}

func TestDecodeZSTD(t *testing.T) {
	cfg := config.Default().Decompression
	payload := []byte(uniuri.NewLen(1024))

	out, flags := Default().Decode(cfg, "zstd", zstded(t, payload))
	require.Zero(t, flags)
	require.Equal(t, payload, out)
}

func TestDecodeChain(t *testing.T) {
	cfg := config.Default().Decompression
	payload := []byte(uniuri.NewLen(1024))

	// applied gzip first, then zstd on top
	wire := zstded(t, gzipped(t, payload))

	out, flags := Default().Decode(cfg, "gzip, zstd", wire)
	require.Zero(t, flags)
	require.Equal(t, payload, out)
}

func TestDecodeIdentity(t *testing.T) {
	cfg := config.Default().Decompression
	payload := []byte("plain")

	out, flags := Default().Decode(cfg, "identity", payload)
	require.Zero(t, flags)
	require.Equal(t, payload, out)
}

func TestDecodeUnknownToken(t *testing.T) {
	cfg := config.Default().Decompression
	payload := []byte("opaque bytes")

	out, flags := Default().Decode(cfg, "br", payload)
	require.True(t, flags.Has(anomaly.UnknownContentEncoding))
	require.Equal(t, payload, out)
}

func TestDecodeCorruptStream(t *testing.T) {
	cfg := config.Default().Decompression

	out, flags := Default().Decode(cfg, "gzip", []byte("not gzip at all"))
	require.True(t, flags.Has(anomaly.UnknownContentEncoding))
	require.Equal(t, []byte("not gzip at all"), out)
}

func TestDecodeOutputLimit(t *testing.T) {
	cfg := config.Default().Decompression
	cfg.MaxOutputSize = 512
	cfg.MaxRatio = 0

	payload := bytes.Repeat([]byte{'A'}, 4096)

	out, flags := Default().Decode(cfg, "gzip", gzipped(t, payload))
	require.True(t, flags.Has(anomaly.CompressionBombSuspected))
	require.Len(t, out, 512)
}

func TestDecodeRatioLimit(t *testing.T) {
	cfg := config.Default().Decompression
	cfg.MaxRatio = 4

	// a megabyte of zeroes compresses far beyond 4x
	payload := make([]byte, 1<<20)

	out, flags := Default().Decode(cfg, "gzip", gzipped(t, payload))
	require.True(t, flags.Has(anomaly.CompressionBombSuspected))
	require.Less(t, len(out), len(payload))
}
