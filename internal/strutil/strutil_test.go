package strutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCmpFold(t *testing.T) {
	require.True(t, CmpFold("Content-Length", "content-length"))
	require.True(t, CmpFold("", ""))
	require.False(t, CmpFold("a", "ab"))
	require.False(t, CmpFold("content-type", "content-typo"))
}

func TestStrip(t *testing.T) {
	require.Equal(t, "value", LStripWS(" \tvalue"))
	require.Equal(t, "value", RStripWS("value \t"))
	require.Equal(t, "value", StripWS("  value  "))
	require.Equal(t, "", StripWS(" \t "))
}

func TestCutHeader(t *testing.T) {
	value, params := CutHeader("multipart/form-data; boundary=xyz")
	require.Equal(t, "multipart/form-data", value)
	require.Equal(t, "boundary=xyz", params)

	value, params = CutHeader("text/plain")
	require.Equal(t, "text/plain", value)
	require.Empty(t, params)
}

func TestHeaderParam(t *testing.T) {
	_, params := CutHeader(`multipart/form-data; charset=utf-8; boundary="compound boundary"`)

	boundary, found := HeaderParam(params, "boundary")
	require.True(t, found)
	require.Equal(t, "compound boundary", boundary)

	charset, found := HeaderParam(params, "Charset")
	require.True(t, found)
	require.Equal(t, "utf-8", charset)

	_, found = HeaderParam(params, "filename")
	require.False(t, found)
}
