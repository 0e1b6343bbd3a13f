package http1

import (
	"fmt"
	"testing"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/tx"
	"github.com/stretchr/testify/require"
)

func driveResponse(t *testing.T, p *ResponseParser, input []byte, n int) (events []Event, body []byte, completed bool) {
	t.Helper()

	for _, piece := range splitIntoParts(input, n) {
		data := piece

		for {
			ev, chunk, extra, err := p.Parse(data)
			require.NoError(t, err)

			if ev == EventPending {
				break
			}

			events = append(events, ev)
			if ev == EventBodyData {
				body = append(body, chunk...)
			}

			if ev == EventComplete {
				return events, body, true
			}

			data = extra
		}
	}

	return events, body, false
}

func newResponse(cfg *config.Config) (*ResponseParser, *tx.Transaction) {
	p := NewResponseParser(cfg)
	trans := tx.New(0)
	trans.Method = "GET"
	trans.Protocol = "HTTP/1.1"
	trans.RequestProgress = tx.ProgressComplete
	p.Attach(trans)

	return p, trans
}

func TestResponseSimple(t *testing.T) {
	input := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")

	for _, n := range []int{1, 3, len(input)} {
		t.Run(fmt.Sprintf("%d parts", n), func(t *testing.T) {
			p, trans := newResponse(config.Default())

			_, body, completed := driveResponse(t, p, input, n)
			require.True(t, completed)
			require.Equal(t, 200, trans.StatusCode)
			require.Equal(t, "OK", trans.ReasonPhrase)
			require.Equal(t, "HTTP/1.1", trans.ResponseProtocol)
			require.Equal(t, "hello", string(body))
			require.Zero(t, trans.Flags)
		})
	}
}

func TestResponseNoBodyStatuses(t *testing.T) {
	for _, code := range []int{204, 304} {
		t.Run(fmt.Sprintf("%d", code), func(t *testing.T) {
			p, trans := newResponse(config.Default())

			input := []byte(fmt.Sprintf("HTTP/1.1 %d X\r\nContent-Length: 10\r\n\r\n", code))

			_, body, completed := driveResponse(t, p, input, 1)
			require.True(t, completed)
			require.Equal(t, code, trans.StatusCode)
			require.Empty(t, body)
		})
	}
}

func TestResponseHeadNoBody(t *testing.T) {
	p, trans := newResponse(config.Default())
	trans.Method = "HEAD"

	input := []byte("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n")

	_, body, completed := driveResponse(t, p, input, 1)
	require.True(t, completed)
	require.Empty(t, body)
}

func TestResponseCloseDelimited(t *testing.T) {
	p, trans := newResponse(config.Default())

	input := []byte("HTTP/1.1 200 OK\r\nServer: old\r\n\r\neverything until close")

	_, body, completed := driveResponse(t, p, input, 1)
	require.False(t, completed)
	require.Equal(t, "everything until close", string(body))
	require.True(t, p.FinishesAtClose())
	require.Equal(t, tx.ProgressBody, trans.ResponseProgress)
}

func TestResponseChunked(t *testing.T) {
	p, trans := newResponse(config.Default())

	input := []byte(
		"HTTP/1.1 200 OK\r\n" +
			"Transfer-Encoding: chunked\r\n" +
			"\r\n" +
			"3\r\nabc\r\n" +
			"0\r\n" +
			"X-Trailer: yes\r\n" +
			"\r\n",
	)

	_, body, completed := driveResponse(t, p, input, 1)
	require.True(t, completed)
	require.Equal(t, "abc", string(body))
	require.Equal(t, "yes", trans.ResponseTrailers.Value("X-Trailer"))
}

func TestResponseInterimContinue(t *testing.T) {
	p, trans := newResponse(config.Default())

	input := []byte(
		"HTTP/1.1 100 Continue\r\n" +
			"\r\n" +
			"HTTP/1.1 200 OK\r\n" +
			"Content-Length: 2\r\n" +
			"\r\n" +
			"ok",
	)

	events, body, completed := driveResponse(t, p, input, 1)
	require.True(t, completed)
	require.Equal(t, 200, trans.StatusCode)
	require.Equal(t, "ok", string(body))

	statusLines := 0
	for _, ev := range events {
		if ev == EventStatusLine {
			statusLines++
		}
	}
	require.Equal(t, 2, statusLines)
}

func TestResponseInvalidStatusLine(t *testing.T) {
	p, trans := newResponse(config.Default())

	input := []byte("SOMETHING ELSE\r\nContent-Length: 0\r\n\r\n")

	_, _, completed := driveResponse(t, p, input, 1)
	require.True(t, completed)
	require.True(t, trans.Flags.Has(anomaly.StatusLineInvalid))
}

func TestResponseVersionlessExchange(t *testing.T) {
	p, trans := newResponse(config.Default())
	trans.Protocol = ""
	trans.AddFlags(anomaly.HTTP09)
	p.Attach(trans)

	_, body, completed := driveResponse(t, p, []byte("<html>old</html>"), 1)
	require.False(t, completed)
	require.Equal(t, "<html>old</html>", string(body))
	require.True(t, p.FinishesAtClose())
}

func TestResponseChunkedInvalidFallsBack(t *testing.T) {
	p, trans := newResponse(config.Default())

	input := []byte(
		"HTTP/1.1 200 OK\r\n" +
			"Transfer-Encoding: chunked\r\n" +
			"\r\n" +
			"nope\r\nrest of stream",
	)

	_, body, completed := driveResponse(t, p, input, 1)
	require.False(t, completed)
	require.True(t, trans.Flags.Has(anomaly.InvalidChunkEncoding))
	require.Equal(t, "nope\r\nrest of stream", string(body))
	require.True(t, p.FinishesAtClose())
}
