package form

import (
	"bytes"

	"github.com/cccs-rtmorti/htp/anomaly"
	"github.com/cccs-rtmorti/htp/config"
	"github.com/cccs-rtmorti/htp/internal/strutil"
	"github.com/cccs-rtmorti/htp/kv"
)

// Part is one decoded part of a multipart body.
type Part struct {
	// Headers holds the part's header fields in wire order.
	Headers *kv.Storage
	// Name and Filename come from the Content-Disposition header. Filename
	// stays empty for ordinary form fields.
	Name     string
	Filename string
	// Body is the raw part content. For a nested multipart part within the
	// allowed depth the content is additionally broken out into Parts.
	Body  []byte
	Parts []Part
	// Truncated is set when the stream ended before the part's closing
	// boundary.
	Truncated bool
}

// ParseMultipart breaks a complete multipart body into its parts, using the
// boundary declared in the Content-Type header value. Structural deviations
// never fail the parse, they surface as flags on a best-effort result.
func ParseMultipart(cfg config.Multipart, contentType string, body []byte) ([]Part, anomaly.Flag) {
	mediatype, params := strutil.CutHeader(contentType)
	if !strutil.HasPrefixFold(mediatype, "multipart/") {
		return nil, anomaly.MultipartMalformed
	}

	boundary, ok := strutil.HeaderParam(params, "boundary")
	if !ok || len(boundary) == 0 {
		return nil, anomaly.MultipartMalformed
	}

	return parseParts(cfg, boundary, body, 1)
}

func parseParts(cfg config.Multipart, boundary string, body []byte, depth int) (parts []Part, flags anomaly.Flag) {
	delim := []byte("--" + boundary)

	rest, found := skipPreamble(body, delim)
	if !found {
		return nil, anomaly.MultipartMalformed
	}

	for {
		// rest begins right after a delimiter token
		line, tail, terminated := cutLine(rest)

		if len(line) >= 2 && line[0] == '-' && line[1] == '-' {
			// closing delimiter; anything past it is epilogue
			if len(bytes.TrimRight(line[2:], " \t")) != 0 {
				flags |= anomaly.MultipartMalformed
			} else if len(line) > 2 {
				flags |= anomaly.MultipartBoundaryQuirk
			}

			return parts, flags
		}

		if len(bytes.TrimRight(line, " \t")) != 0 {
			flags |= anomaly.MultipartMalformed
		} else if len(line) != 0 {
			// whitespace padding after the delimiter
			flags |= anomaly.MultipartBoundaryQuirk
		}

		if !terminated {
			flags |= anomaly.PartTruncated
			return parts, flags
		}

		rest = tail
		part := Part{Headers: kv.New()}

		for {
			hline, htail, hterm := cutLine(rest)
			if !hterm {
				part.Truncated = true
				flags |= anomaly.PartTruncated
				parts = append(parts, part)

				return parts, flags
			}

			rest = htail
			if len(hline) == 0 {
				break
			}

			name, value, ok := bytes.Cut(hline, []byte{':'})
			if !ok {
				flags |= anomaly.MultipartMalformed
				continue
			}

			part.Headers.Add(
				strutil.StripWS(string(name)),
				strutil.StripWS(string(value)),
			)
		}

		end, next := findDelimiter(rest, delim)
		if end < 0 {
			part.Body = rest
			part.Truncated = true
			flags |= anomaly.PartTruncated
			parts = append(parts, finishPart(cfg, part, depth, &flags))

			return parts, flags
		}

		part.Body = rest[:end]
		rest = rest[next:]
		parts = append(parts, finishPart(cfg, part, depth, &flags))
	}
}

// finishPart resolves the part's disposition and descends into nested
// multipart content within the configured depth.
func finishPart(cfg config.Multipart, part Part, depth int, flags *anomaly.Flag) Part {
	_, params := strutil.CutHeader(part.Headers.Value("Content-Disposition"))

	part.Name, _ = strutil.HeaderParam(params, "name")
	part.Filename, _ = strutil.HeaderParam(params, "filename")

	ctype := part.Headers.Value("Content-Type")
	mediatype, _ := strutil.CutHeader(ctype)

	if strutil.HasPrefixFold(mediatype, "multipart/") {
		if depth >= cfg.MaxNestingDepth {
			*flags |= anomaly.MultipartNestedTooDeep
			return part
		}

		nested, f := parseNested(cfg, ctype, part.Body, depth+1)
		*flags |= f
		part.Parts = nested
	}

	return part
}

func parseNested(cfg config.Multipart, contentType string, body []byte, depth int) ([]Part, anomaly.Flag) {
	_, params := strutil.CutHeader(contentType)

	boundary, ok := strutil.HeaderParam(params, "boundary")
	if !ok || len(boundary) == 0 {
		return nil, anomaly.MultipartMalformed
	}

	return parseParts(cfg, boundary, body, depth)
}

// PartParams flattens the file-less parts, nested ones included, into
// parameters.
func PartParams(parts []Part) (params []Param) {
	for _, part := range parts {
		if len(part.Parts) > 0 {
			params = append(params, PartParams(part.Parts)...)
			continue
		}

		if len(part.Filename) != 0 || len(part.Name) == 0 {
			continue
		}

		params = append(params, Param{
			Name:   part.Name,
			Value:  string(part.Body),
			Source: SourceMultipart,
		})
	}

	return params
}

// skipPreamble advances past the opening delimiter, discarding any preamble
// before it.
func skipPreamble(body, delim []byte) ([]byte, bool) {
	if bytes.HasPrefix(body, delim) && delimited(body[len(delim):]) {
		return body[len(delim):], true
	}

	marker := make([]byte, 0, len(delim)+1)
	marker = append(marker, '\n')
	marker = append(marker, delim...)

	for from := 0; ; {
		i := bytes.Index(body[from:], marker)
		if i == -1 {
			return nil, false
		}

		i += from
		if rest := body[i+len(marker):]; delimited(rest) {
			return rest, true
		}

		from = i + 1
	}
}

// findDelimiter locates the next delimiter that starts a line, returning the
// exclusive end of the part body before it and the offset just past the
// delimiter token.
func findDelimiter(data, delim []byte) (end, next int) {
	if bytes.HasPrefix(data, delim) && delimited(data[len(delim):]) {
		return 0, len(delim)
	}

	marker := make([]byte, 0, len(delim)+1)
	marker = append(marker, '\n')
	marker = append(marker, delim...)

	for from := 0; ; {
		i := bytes.Index(data[from:], marker)
		if i == -1 {
			return -1, -1
		}

		i += from
		if !delimited(data[i+len(marker):]) {
			// the boundary is a prefix of a longer token; keep looking
			from = i + 1
			continue
		}

		end = i
		if end > 0 && data[end-1] == '\r' {
			end--
		}

		return end, i + len(marker)
	}
}

// delimited tells whether the bytes right after a boundary token form a legal
// delimiter continuation: line end, the closing dashes, padding, or end of
// stream.
func delimited(rest []byte) bool {
	if len(rest) == 0 {
		return true
	}

	switch rest[0] {
	case '\r', '\n', '-', ' ', '\t':
		return true
	}

	return false
}

// cutLine splits off the first line, tolerating both CRLF and a bare LF.
// terminated reports whether a line break was actually present.
func cutLine(data []byte) (line, rest []byte, terminated bool) {
	i := bytes.IndexByte(data, '\n')
	if i == -1 {
		return data, nil, false
	}

	line = data[:i]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	return line, data[i+1:], true
}
