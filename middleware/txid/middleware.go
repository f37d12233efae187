// Package txid attaches a correlation transaction id to every request.
// Inbound ids are trusted when present so a browser client can correlate
// its own traces; otherwise a fresh id is generated.
package txid

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	HeaderName = "X-Transaction-ID"
	ContextKey = "_txid"

	prefix       = "TRZ"
	randomLength = 10
	alphabet     = "1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Generate returns an id of the form TRZ<10 random alnum><unix millis>.
func Generate() string {
	buf := make([]byte, randomLength)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken;
		// fall back to a timestamp-only id rather than panicking.
		return fmt.Sprintf("%s%d", prefix, time.Now().UnixMilli())
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("%s%s%d", prefix, buf, time.Now().UnixMilli())
}

func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderName)
			if id == "" {
				id = Generate()
			}

			c.Set(ContextKey, id)
			c.Response().Header().Set(HeaderName, id)

			return next(c)
		}
	}
}

// FromContext returns the request's transaction id, or "" before the
// middleware has run.
func FromContext(c echo.Context) string {
	if id, ok := c.Get(ContextKey).(string); ok {
		return id
	}
	return ""
}
