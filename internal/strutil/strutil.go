package strutil

import "strings"

// CmpFold compares two strings ignoring ASCII case.
func CmpFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := 0; i < len(a); i++ {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}

	return true
}

// HasPrefixFold tells whether s starts with prefix, ignoring ASCII case.
func HasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && CmpFold(s[:len(prefix)], prefix)
}

func LStripWS(str string) string {
	for i := 0; i < len(str); i++ {
		switch str[i] {
		case ' ', '\t':
		default:
			return str[i:]
		}
	}

	return ""
}

func RStripWS(str string) string {
	for i := len(str); i > 0; i-- {
		switch str[i-1] {
		case ' ', '\t':
		default:
			return str[:i]
		}
	}

	return ""
}

func StripWS(str string) string {
	return LStripWS(RStripWS(str))
}

// CutHeader splits a header value from its parameters at the first semicolon,
// stripping the whitespace around the cut.
func CutHeader(header string) (value, params string) {
	sep := strings.IndexByte(header, ';')
	if sep == -1 {
		return RStripWS(header), ""
	}

	return RStripWS(header[:sep]), LStripWS(header[sep+1:])
}

// HeaderParam extracts a single parameter value from a header's parameter
// list, e.g. the boundary of a multipart Content-Type. The name is matched
// case-insensitively; a quoted value is unquoted.
func HeaderParam(params, name string) (value string, found bool) {
	for len(params) > 0 {
		var param string
		if sep := strings.IndexByte(params, ';'); sep == -1 {
			param, params = params, ""
		} else {
			param, params = params[:sep], LStripWS(params[sep+1:])
		}

		key, val, ok := strings.Cut(param, "=")
		if !ok {
			continue
		}

		if CmpFold(StripWS(key), name) {
			return Unquote(RStripWS(val)), true
		}
	}

	return "", false
}

func Unquote(str string) string {
	if len(str) > 1 && str[0] == '"' && str[len(str)-1] == '"' {
		return str[1 : len(str)-1]
	}

	return str
}
