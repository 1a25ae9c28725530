package http

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// BasicAuthFunc validates a username and password pair. Implementations must
// be safe for concurrent use.
type BasicAuthFunc func(username, password string) bool

// FixedBasicAuthFunc returns a BasicAuthFunc that accepts exactly one
// credential pair, compared in constant time.
func FixedBasicAuthFunc(username, password string) BasicAuthFunc {
	return func(u, p string) bool {
		userMatch := subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1

		return userMatch && passMatch
	}
}

// WithBasicAuth returns a Fiber middleware enforcing HTTP Basic authentication
// with the given validator. Requests that fail validation receive a 401 with a
// WWW-Authenticate challenge for the given realm.
func WithBasicAuth(auth BasicAuthFunc, realm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user, pass, ok := parseBasicAuth(c); ok && auth(user, pass) {
			return c.Next()
		}

		c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="`+sanitizeRealm(realm)+`"`)

		return c.Status(http.StatusUnauthorized).JSON(Response{
			Code:    "UNAUTHORIZED",
			Title:   "Unauthorized",
			Message: "Valid credentials are required to access this resource.",
		})
	}
}

// parseBasicAuth extracts the username and password from the Authorization
// header of the request, if present and well formed.
func parseBasicAuth(c *fiber.Ctx) (user, pass string, ok bool) {
	header := c.Get(fiber.HeaderAuthorization)

	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}

	user, pass, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}

	return user, pass, true
}

// sanitizeRealm strips characters that would break out of the quoted realm
// value in the WWW-Authenticate header.
func sanitizeRealm(realm string) string {
	return strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(realm)
}
