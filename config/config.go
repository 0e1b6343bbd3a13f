package config

type (
	// URI limits the request line.
	URI struct {
		// BufferPrealloc is the initial size of the buffer assembling
		// request lines split across feeds.
		BufferPrealloc int
		// MaxLength caps a single request or status line. Lines past the
		// cap desynchronize the stream and abort parsing.
		MaxLength int
	}

	Headers struct {
		// MaxNumber caps the number of header fields per message half.
		MaxNumber int
		// MaxSpace caps the memory occupied by one message's header block.
		MaxSpace int
	}

	Body struct {
		// MaxSize caps the accumulated (transfer-decoded) body per message.
		// Bytes past the cap are still consumed for framing but dropped,
		// flagging the transaction.
		MaxSize int64
	}

	// Decompression bounds content decoding against decompression bombs.
	Decompression struct {
		// MaxOutputSize caps decoded output per message body.
		MaxOutputSize int64
		// MaxRatio caps output/input expansion. Exceeding either bound
		// truncates the output and flags the transaction.
		MaxRatio int64
	}

	Multipart struct {
		// MaxNestingDepth bounds recursive multipart parsing. Parts nested
		// deeper stay opaque.
		MaxNestingDepth int
	}

	Params struct {
		// Separators is the set of characters splitting urlencoded
		// parameter entries. Real implementations disagree whether ';'
		// separates.
		Separators string
	}
)

// FramingPolicy decides the winner when Content-Length and
// Transfer-Encoding: chunked are both present. Deployed implementations
// legitimately disagree here, so the policy follows the personality but may
// be overridden.
type FramingPolicy uint8

const (
	// PreferChunked follows the current smuggling-resistant convention.
	PreferChunked FramingPolicy = iota
	// PreferContentLength reproduces implementations that let
	// Content-Length win.
	PreferContentLength
)

// Config is read-only after the connection is created. Connections may share
// one Config instance.
type Config struct {
	// Personality names the implementation whose parsing quirks are
	// reproduced. Fixed at creation.
	Personality Personality
	// Framing resolves Content-Length vs Transfer-Encoding conflicts.
	Framing FramingPolicy
	// Decode is the personality's path/parameter decoding table. Prefer
	// adjusting Personality over editing fields directly.
	Decode Decode

	URI           URI
	Headers       Headers
	Body          Body
	Decompression Decompression
	Multipart     Multipart
	Params        Params
}

// Default returns the Generic personality with balanced limits. Always start
// from Default (or For) and adjust, rather than building a Config literal.
func Default() *Config {
	return For(Generic)
}

// For returns the default limits combined with the decoding table of the
// given personality.
func For(p Personality) *Config {
	cfg := &Config{
		Personality: p,
		URI: URI{
			BufferPrealloc: 2 * 1024,
			// most servers cut request lines off at 4-8kb; being a monitor,
			// we tolerate noticeably more before declaring desync.
			MaxLength: 32 * 1024,
		},
		Headers: Headers{
			MaxNumber: 256,
			MaxSpace:  64 * 1024,
		},
		Body: Body{
			MaxSize: 64 * 1024 * 1024,
		},
		Decompression: Decompression{
			MaxOutputSize: 32 * 1024 * 1024,
			MaxRatio:      2048,
		},
		Multipart: Multipart{
			MaxNestingDepth: 2,
		},
		Params: Params{
			Separators: "&;",
		},
	}

	applyPersonality(cfg)

	return cfg
}
