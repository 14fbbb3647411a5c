package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// requestDomain separates request keys from any other hash of the same bytes.
const requestDomain = "pumped-gql/request/v1"

// Request is the identity of a GraphQL request: document, variables and the
// content key derived from both. Two requests with equal keys are interchangeable.
type Request struct {
	Query     string
	Variables map[string]any
	Key       string
}

// IsEmpty reports whether the request has no document.
func (r Request) IsEmpty() bool {
	return strings.TrimSpace(r.Query) == ""
}

// SameKey compares two requests by key only.
func SameKey(a, b Request) bool {
	return a.Key == b.Key
}

// NewRequest builds a Request and derives its key. It never fails: variables
// that cannot be encoded as JSON fall back to their %#v rendering.
func NewRequest(query string, variables map[string]any) Request {
	if variables == nil {
		variables = map[string]any{}
	}
	return Request{
		Query:     query,
		Variables: variables,
		Key:       RequestKey(query, variables),
	}
}

// RequestKey computes SHA256(domain 0x00 normalized-query 0x00 canonical-variables).
func RequestKey(query string, variables map[string]any) string {
	h := sha256.New()
	h.Write([]byte(requestDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(NormalizeQuery(query)))
	h.Write([]byte{0x00})
	h.Write(canonicalVariables(variables))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalVariables encodes variables with sorted keys and no HTML escaping.
func canonicalVariables(variables map[string]any) []byte {
	if len(variables) == 0 {
		return []byte("{}")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(variables); err != nil {
		return []byte(fmt.Sprintf("%#v", variables))
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// NormalizeQuery returns the NFC form of query with comments removed and
// whitespace runs outside string literals collapsed to a single space.
func NormalizeQuery(query string) string {
	query = norm.NFC.String(query)

	var sb strings.Builder
	sb.Grow(len(query))

	inString := false
	inComment := false
	pendingSpace := false
	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inComment:
			if r == '\n' || r == '\r' {
				inComment = false
				pendingSpace = true
			}
		case inString:
			sb.WriteRune(r)
			if r == '\\' && i+1 < len(runes) {
				i++
				sb.WriteRune(runes[i])
			} else if r == '"' {
				inString = false
			}
		case r == '#':
			inComment = true
		case unicode.IsSpace(r) || r == ',':
			pendingSpace = true
		default:
			if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
			if r == '"' {
				inString = true
			}
		}
	}
	return sb.String()
}
