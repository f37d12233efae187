package txid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	id1 := Generate()
	id2 := Generate()

	assert.True(t, strings.HasPrefix(id1, "TRZ"))
	assert.Greater(t, len(id1), len("TRZ")+randomLength)
	assert.NotEqual(t, id1, id2)
}

func TestMiddleware_GeneratesID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	handler := Middleware()(func(c echo.Context) error {
		seen = FromContext(c)
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderName))
}

func TestMiddleware_AcceptsInboundID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderName, "TRZCLIENT00001")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	assert.Equal(t, "TRZCLIENT00001", FromContext(c))
	assert.Equal(t, "TRZCLIENT00001", rec.Header().Get(HeaderName))
}

func TestFromContext_Unset(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Empty(t, FromContext(c))
}
