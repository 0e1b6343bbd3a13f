package htp

import "errors"

var (
	// ErrClosed is returned when feeding a connection after Close.
	ErrClosed = errors.New("connection already closed")
	// ErrProtocolDesync means a stream broke its framing beyond what the
	// parsers can follow. No further traffic is accepted.
	ErrProtocolDesync = errors.New("stream desynchronized")
	// ErrTunneledTraffic is returned once a CONNECT or upgrade succeeded;
	// from that point the byte streams are opaque to HTTP parsing.
	ErrTunneledTraffic = errors.New("connection switched to opaque tunneling")
)
