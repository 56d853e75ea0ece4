// Package guard gates access to the shared list on a single static code.
//
// The code is compared in plaintext with no hashing, rate limiting or
// lockout. It keeps casual visitors out of the list; it is not a security
// boundary.
package guard

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Header carries the candidate code on every request.
const Header = "X-Access-Code"

// FallbackCode is used by the server when no code is configured.
const FallbackCode = "131023"

type Guard struct {
	expected string
}

// New trims the expected code once. An empty code means nothing is ever
// granted.
func New(expected string) *Guard {
	return &Guard{expected: strings.TrimSpace(expected)}
}

func (g *Guard) Enabled() bool {
	return g != nil && g.expected != ""
}

// Verify reports whether the trimmed candidate matches the expected code
// exactly.
func (g *Guard) Verify(candidate string) bool {
	if !g.Enabled() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(candidate)), []byte(g.expected)) == 1
}

// VerifyRequest checks the Header of an incoming request.
func (g *Guard) VerifyRequest(r *http.Request) bool {
	return g.Verify(r.Header.Get(Header))
}
