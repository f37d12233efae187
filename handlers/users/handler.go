package users

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tech-arch1tect/treez/apperr"
	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/cookies"
	"github.com/tech-arch1tect/treez/middleware/guard"
	"github.com/tech-arch1tect/treez/services/cryptox"
	"github.com/tech-arch1tect/treez/services/logging"
	"github.com/tech-arch1tect/treez/services/pgp"
	"github.com/tech-arch1tect/treez/services/users"
)

type Handler struct {
	cfg     *config.Config
	users   *users.Service
	pgp     *pgp.Service
	ciphers *cryptox.Registry
	guard   *guard.Guard
	logger  *logging.Service
}

func NewHandler(cfg *config.Config, userService *users.Service, pgpService *pgp.Service, ciphers *cryptox.Registry, authGuard *guard.Guard, logger *logging.Service) *Handler {
	return &Handler{
		cfg:     cfg,
		users:   userService,
		pgp:     pgpService,
		ciphers: ciphers,
		guard:   authGuard,
		logger:  logger,
	}
}

func (h *Handler) Register(g *echo.Group) {
	authed := g.Group("", h.guard.Middleware())
	authed.GET("/profile", h.Profile)
	authed.PUT("/profile", h.UpdateProfile)
}

// profilePayload is what the client sees after PGP decryption. The id
// travels encrypted even inside the encrypted envelope, so the client
// echoes it back verbatim without learning the raw identifier.
type profilePayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
	Website  *string `json:"website,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Role     string  `json:"role"`
}

func (h *Handler) buildPayload(user *users.User) (*profilePayload, error) {
	cipher, err := h.ciphers.Default()
	if err != nil {
		return nil, err
	}

	encryptedID, err := cipher.Encrypt(user.ID, cryptox.Base64)
	if err != nil {
		return nil, err
	}

	return &profilePayload{
		ID:       encryptedID,
		Name:     user.Name,
		Email:    user.Email,
		Phone:    user.Phone,
		Location: user.Location,
		Website:  user.Website,
		Bio:      user.Bio,
		Role:     user.Role.Name,
	}, nil
}

// respondEncrypted wraps the payload in a PGP message for the caller's
// key session.
func (h *Handler) respondEncrypted(c echo.Context, payload *profilePayload) error {
	sessionID := cookies.Read(c, cookies.KeySession)
	if sessionID == "" {
		return apperr.BusinessError("no encryption key registered for this session")
	}

	armored, err := h.pgp.EncryptProfileData(sessionID, payload)
	if err != nil {
		if errors.Is(err, pgp.ErrNoClientKey) {
			return apperr.BusinessError("no encryption key registered for this session")
		}
		return apperr.InternalError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"data": armored})
}

func (h *Handler) Profile(c echo.Context) error {
	user, err := h.users.FindByID(guard.GetUserID(c))
	if err != nil {
		return apperr.InternalError(err)
	}

	payload, err := h.buildPayload(user)
	if err != nil {
		return apperr.InternalError(err)
	}

	return h.respondEncrypted(c, payload)
}

type updateProfileRequest struct {
	ID       string  `json:"id"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Location *string `json:"location"`
	Website  *string `json:"website"`
	Bio      *string `json:"bio"`
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ValidationError("invalid request body")
	}
	if req.ID == "" {
		return apperr.ValidationError("id is required")
	}

	cipher, err := h.ciphers.Default()
	if err != nil {
		return apperr.InternalError(err)
	}

	// the echoed id must decrypt to the authenticated user, so a stolen
	// request body cannot be replayed against another account
	decryptedID, err := cipher.Decrypt(req.ID, cryptox.Base64)
	if err != nil {
		return apperr.ValidationError("id could not be decrypted")
	}

	userID := guard.GetUserID(c)
	if decryptedID != userID {
		h.logger.Warn("profile update id mismatch",
			zap.String("user_id", userID))
		return apperr.ForbiddenError("profile id does not match the authenticated user")
	}

	updated, err := h.users.UpdateProfile(userID, users.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Location: req.Location,
		Website:  req.Website,
		Bio:      req.Bio,
	})
	if err != nil {
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			return apperr.BusinessError("email already in use")
		case errors.Is(err, users.ErrPhoneTaken):
			return apperr.BusinessError("phone number already in use")
		default:
			return apperr.InternalError(err)
		}
	}

	payload, err := h.buildPayload(updated)
	if err != nil {
		return apperr.InternalError(err)
	}

	return h.respondEncrypted(c, payload)
}
