// Package form recovers the parameters a request carries, whether in the
// query string, a urlencoded body or a multipart body.
package form

// Source tells where a parameter was found.
type Source uint8

const (
	SourceQuery Source = iota
	SourceBody
	SourceMultipart
)

func (s Source) String() string {
	switch s {
	case SourceQuery:
		return "query"
	case SourceBody:
		return "body"
	case SourceMultipart:
		return "multipart"
	default:
		return "unknown"
	}
}

// Param is a single decoded request parameter. Duplicates are preserved in
// the order they appeared on the wire.
type Param struct {
	Name   string
	Value  string
	Source Source
}
