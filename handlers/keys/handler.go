package keys

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tech-arch1tect/treez/apperr"
	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/cookies"
	"github.com/tech-arch1tect/treez/services/logging"
	"github.com/tech-arch1tect/treez/services/pgp"
)

// Handler exposes the key exchange: clients fetch the server's public
// key and register their own per-session public key.
type Handler struct {
	cfg    *config.Config
	pgp    *pgp.Service
	logger *logging.Service
}

func NewHandler(cfg *config.Config, pgpService *pgp.Service, logger *logging.Service) *Handler {
	return &Handler{cfg: cfg, pgp: pgpService, logger: logger}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/keys/server", h.ServerKey)
	g.POST("/keys/client", h.ClientKey)
}

func (h *Handler) ServerKey(c echo.Context) error {
	publicKey, err := h.pgp.GetPublicKey()
	if err != nil {
		return apperr.InternalError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"publicKey": publicKey})
}

type clientKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

// ClientKey stores the caller's public key under their key session.
// The session id lives in a cookie so each browser session gets its own
// key slot; a fresh id is minted when the cookie is absent.
func (h *Handler) ClientKey(c echo.Context) error {
	var req clientKeyRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ValidationError("invalid request body")
	}
	if req.PublicKey == "" {
		return apperr.ValidationError("publicKey is required")
	}

	sessionID := cookies.Read(c, cookies.KeySession)
	if sessionID == "" {
		sessionID = uuid.New().String()
		cookies.SetKeySession(c, sessionID, h.cfg.JWT.RefreshExpiry, h.cfg.IsProduction())
	}

	if err := h.pgp.SetClientPublicKey(sessionID, req.PublicKey); err != nil {
		if errors.Is(err, pgp.ErrInvalidClientKey) {
			return apperr.ValidationError("public key could not be parsed or is not a public key")
		}
		return apperr.InternalError(err)
	}

	h.logger.Debug("client public key registered",
		zap.String("key_session", sessionID))

	return c.JSON(http.StatusOK, map[string]any{"message": "key registered"})
}
