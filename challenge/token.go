package challenge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Correlation token format: prefix + UUID v4 without hyphens.
// Example: "call_7d5d747be160e280504c099d984bcfe0".
const (
	tokenPrefix    = "call_"
	tokenMinLength = 16
	tokenMaxLength = 128
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// MintToken generates a unique correlation token for one invocation
// attempt.
func MintToken() string {
	return tokenPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// IsValidToken validates correlation token format without consulting
// any registry.
func IsValidToken(token string) bool {
	if len(token) < tokenMinLength || len(token) > tokenMaxLength {
		return false
	}
	return tokenPattern.MatchString(token)
}

// ResourceFor builds the resource identifier for a tool invocation:
// mcp://tool/<name>#<token>.
func ResourceFor(tool, token string) string {
	return fmt.Sprintf("mcp://tool/%s#%s", tool, token)
}

// ParseResource splits a resource identifier into tool name and
// correlation token. The second return is false when the identifier is
// not in the gateway's resource format or the token is malformed.
func ParseResource(resource string) (tool, token string, ok bool) {
	rest, found := strings.CutPrefix(resource, "mcp://tool/")
	if !found {
		return "", "", false
	}
	tool, token, found = strings.Cut(rest, "#")
	if !found || tool == "" || !IsValidToken(token) {
		return "", "", false
	}
	return tool, token, true
}
