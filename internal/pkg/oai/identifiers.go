package oai

import (
	"fmt"
	"net/url"
	"strings"
)

// EncodeIdentifier percent-encodes an OAI identifier so it can be used
// as a file name. Every byte outside the unreserved URI set
// (letters, digits, "-", ".", "_", "~") is escaped, including "/" and
// ":", which are routine in OAI identifiers but illegal or ambiguous
// in file names.
func EncodeIdentifier(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// DecodeIdentifier reverses EncodeIdentifier.
func DecodeIdentifier(s string) (string, error) {
	return url.PathUnescape(s)
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}
