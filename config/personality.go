package config

// Personality selects the closed set of modeled HTTP implementations. A
// passive monitor must interpret traffic the way the true endpoint does, so
// each personality fixes a table of decoding parameters approximating one
// implementation's observed behavior.
type Personality uint8

const (
	// Minimal performs no interpretation beyond framing.
	Minimal Personality = iota
	// Generic is a reasonable mainstream server.
	Generic
	// IDS is the most aggressive interpretation: decode everything an
	// endpoint might, so nothing hides from inspection.
	IDS
	// Apache2 models Apache httpd 2.x.
	Apache2
	// IIS50 models IIS 5.0.
	IIS50
	// IIS60 models IIS 6.0.
	IIS60
	// IIS70 models IIS 7.0+.
	IIS70
	// Nginx models nginx.
	Nginx
)

var personalityNames = map[Personality]string{
	Minimal: "minimal",
	Generic: "generic",
	IDS:     "ids",
	Apache2: "apache2",
	IIS50:   "iis5.0",
	IIS60:   "iis6.0",
	IIS70:   "iis7.0",
	Nginx:   "nginx",
}

func (p Personality) String() string {
	if name, ok := personalityNames[p]; ok {
		return name
	}

	return "unknown"
}

// InvalidHandling tells what to do with a percent sign followed by something
// that is not a valid encoding.
type InvalidHandling uint8

const (
	// PreserveLiteral leaves the malformed sequence as-is.
	PreserveLiteral InvalidHandling = iota
	// StripPercent consumes the percent sign and keeps the rest.
	StripPercent
	// DecodeAnyway decodes the following bytes as if they were valid hex.
	DecodeAnyway
)

// Decode is the per-personality table of path and parameter decoding
// parameters.
type Decode struct {
	// UEncoding enables %uXXXX wide-character decoding.
	UEncoding bool
	// DoubleDecodePath runs a second decode pass over the path.
	DoubleDecodePath bool
	// DoubleDecodeQuery runs a second decode pass over query parameters.
	DoubleDecodeQuery bool
	// Invalid selects the treatment of malformed percent sequences.
	Invalid InvalidHandling
	// BackslashToSlash converts backslashes into forward slashes.
	BackslashToSlash bool
	// EncodedSeparators decodes %2F into a real path separator. Servers
	// that keep it encoded treat it as data, not structure.
	EncodedSeparators bool
	// Lowercase folds the path to lower case.
	Lowercase bool
	// NulEncodedTerminates cuts the path at a %00.
	NulEncodedTerminates bool
	// NulRawTerminates cuts the path at a raw NUL byte.
	NulRawTerminates bool
	// ConvertOverlongUTF8 decodes overlong UTF-8 sequences down to their
	// ASCII value instead of leaving the raw bytes.
	ConvertOverlongUTF8 bool
	// CollapseTraversal resolves "." and ".." segments.
	CollapseTraversal bool
	// CompressSeparators merges consecutive slashes.
	CompressSeparators bool
}

func applyPersonality(cfg *Config) {
	switch cfg.Personality {
	case Minimal:
		cfg.Decode = Decode{Invalid: PreserveLiteral}
		cfg.Params.Separators = "&"
	case Generic:
		cfg.Decode = Decode{
			Invalid:            PreserveLiteral,
			BackslashToSlash:   true,
			EncodedSeparators:  true,
			CollapseTraversal:  true,
			CompressSeparators: true,
		}
	case IDS:
		cfg.Decode = Decode{
			UEncoding:           true,
			Invalid:             DecodeAnyway,
			BackslashToSlash:    true,
			EncodedSeparators:   true,
			Lowercase:           true,
			ConvertOverlongUTF8: true,
			CollapseTraversal:   true,
			CompressSeparators:  true,
		}
	case Apache2:
		// Apache rejects invalid encodings and encoded separators with a
		// 400/404 rather than interpreting them, and leaves backslashes
		// alone.
		cfg.Decode = Decode{
			Invalid:           PreserveLiteral,
			CollapseTraversal: true,
		}
	case IIS50:
		cfg.Decode = Decode{
			UEncoding:           true,
			Invalid:             DecodeAnyway,
			BackslashToSlash:    true,
			EncodedSeparators:   true,
			Lowercase:           true,
			NulRawTerminates:    true,
			ConvertOverlongUTF8: true,
			CollapseTraversal:   true,
		}
	case IIS60:
		cfg.Decode = Decode{
			UEncoding:            true,
			Invalid:              DecodeAnyway,
			BackslashToSlash:     true,
			EncodedSeparators:    true,
			Lowercase:            true,
			NulEncodedTerminates: true,
			NulRawTerminates:     true,
			ConvertOverlongUTF8:  true,
			CollapseTraversal:    true,
		}
	case IIS70:
		// IIS 7 dropped %u support and rejects most invalid encodings, but
		// still folds case and converts backslashes.
		cfg.Decode = Decode{
			Invalid:           PreserveLiteral,
			BackslashToSlash:  true,
			EncodedSeparators: true,
			Lowercase:         true,
			NulRawTerminates:  true,
			CollapseTraversal: true,
		}
	case Nginx:
		cfg.Decode = Decode{
			Invalid:            PreserveLiteral,
			EncodedSeparators:  true,
			CollapseTraversal:  true,
			CompressSeparators: true, // merge_slashes defaults to on
		}
	}
}
