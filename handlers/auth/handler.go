package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tech-arch1tect/treez/apperr"
	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/cookies"
	"github.com/tech-arch1tect/treez/middleware/guard"
	"github.com/tech-arch1tect/treez/services/jwt"
	"github.com/tech-arch1tect/treez/services/logging"
	"github.com/tech-arch1tect/treez/services/mail"
	"github.com/tech-arch1tect/treez/services/password"
	"github.com/tech-arch1tect/treez/services/pgp"
	"github.com/tech-arch1tect/treez/services/refreshtoken"
	"github.com/tech-arch1tect/treez/services/users"
)

const (
	DefaultRoleName = "user"

	passwordResetTTL = time.Hour
)

type Handler struct {
	cfg       *config.Config
	users     *users.Service
	passwords *password.Service
	jwt       *jwt.Service
	tokens    *refreshtoken.Service
	guard     *guard.Guard
	pgp       *pgp.Service
	mailer    mail.Sender
	logger    *logging.Service
}

func NewHandler(cfg *config.Config, userService *users.Service, passwordService *password.Service, jwtService *jwt.Service, tokenService *refreshtoken.Service, authGuard *guard.Guard, pgpService *pgp.Service, mailer mail.Sender, logger *logging.Service) *Handler {
	return &Handler{
		cfg:       cfg,
		users:     userService,
		passwords: passwordService,
		jwt:       jwtService,
		tokens:    tokenService,
		guard:     authGuard,
		pgp:       pgpService,
		mailer:    mailer,
		logger:    logger,
	}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/auth/register", h.RegisterUser)
	g.POST("/auth/login", h.Login)
	g.POST("/auth/refresh", h.Refresh)
	g.POST("/auth/forgot-password", h.ForgotPassword)
	g.POST("/auth/reset-password", h.ResetPassword)

	authed := g.Group("", h.guard.Middleware())
	authed.POST("/auth/logout", h.Logout)
	authed.POST("/auth/logout-all", h.LogoutAll)
	authed.POST("/auth/change-password", h.ChangePassword)
	authed.GET("/auth/sessions", h.ActiveSessions)
	authed.POST("/auth/cleanup-tokens", h.CleanupTokens)
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) RegisterUser(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ValidationError("invalid request body")
	}
	if req.Name == "" || req.Email == "" {
		return apperr.ValidationError("name and email are required")
	}
	if req.Password != req.ConfirmPassword {
		return apperr.ValidationError("passwords do not match")
	}

	if err := h.passwords.Validate(req.Password); err != nil {
		return apperr.ValidationError(err.Error())
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		return apperr.InternalError(err)
	}

	role, err := h.users.EnsureRole(DefaultRoleName)
	if err != nil {
		return apperr.InternalError(err)
	}

	user := &users.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		RoleID:       role.ID,
	}
	if err := h.users.Create(user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return apperr.BusinessError("email already in use")
		}
		return apperr.InternalError(err)
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID))

	return c.JSON(http.StatusCreated, map[string]any{
		"user": userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: role.Name},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ValidationError("invalid request body")
	}

	// a missing user and a wrong password produce the same response so
	// login cannot be used to probe for accounts
	user, err := h.users.FindByEmail(req.Email)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return apperr.AuthError("invalid email or password")
		}
		return apperr.InternalError(err)
	}

	ok, err := h.passwords.Verify(user.PasswordHash, req.Password)
	if err != nil {
		return apperr.InternalError(err)
	}
	if !ok {
		h.logger.Warn("failed login attempt", zap.String("user_id", user.ID))
		return apperr.AuthError("invalid email or password")
	}

	if err := h.issueSession(c, user, req.DeviceID); err != nil {
		return err
	}

	h.logger.Info("user logged in", zap.String("user_id", user.ID))

	return c.JSON(http.StatusOK, map[string]any{
		"user":       userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role.Name},
		"expires_in": h.jwt.AccessExpirySeconds(),
	})
}

// issueSession mints both tokens, persists the refresh token with the
// caller's device details and sets the auth cookies.
func (h *Handler) issueSession(c echo.Context, user *users.User, deviceID string) error {
	accessToken, err := h.jwt.IssueAccessToken(user.ID, user.Email, user.Role.Name)
	if err != nil {
		return apperr.InternalError(err)
	}
	refreshToken, err := h.jwt.IssueRefreshToken(user.ID, user.Email, user.Role.Name)
	if err != nil {
		return apperr.InternalError(err)
	}

	device := refreshtoken.DeviceFromRequest(deviceID, c.Request().UserAgent(), c.RealIP())
	if _, err := h.tokens.Store(user.ID, refreshToken, device, h.jwt.RefreshTokenExpiration()); err != nil {
		return apperr.InternalError(err)
	}

	secure := h.cfg.IsProduction()
	cookies.SetAccessToken(c, accessToken, h.cfg.JWT.AccessExpiry, secure)
	cookies.SetRefreshToken(c, refreshToken, h.cfg.JWT.RefreshExpiry, secure)

	return nil
}

func (h *Handler) Logout(c echo.Context) error {
	if refreshToken := cookies.Read(c, cookies.RefreshToken); refreshToken != "" {
		if err := h.tokens.Delete(refreshToken); err != nil {
			h.logger.Warn("failed to delete refresh token on logout", zap.Error(err))
		}
	}

	h.guard.InvalidateToken(cookies.Read(c, cookies.AccessToken))

	if sessionID := cookies.Read(c, cookies.KeySession); sessionID != "" {
		h.pgp.DropClientKey(sessionID)
		cookies.ClearKeySession(c, h.cfg.IsProduction())
	}

	cookies.ClearAuth(c, h.cfg.IsProduction())

	return c.JSON(http.StatusOK, map[string]any{"message": "logged out"})
}

func (h *Handler) LogoutAll(c echo.Context) error {
	userID := guard.GetUserID(c)

	count, err := h.tokens.DeactivateAll(userID)
	if err != nil {
		return apperr.InternalError(err)
	}

	h.guard.InvalidateUser(userID)

	if sessionID := cookies.Read(c, cookies.KeySession); sessionID != "" {
		h.pgp.DropClientKey(sessionID)
		cookies.ClearKeySession(c, h.cfg.IsProduction())
	}

	cookies.ClearAuth(c, h.cfg.IsProduction())

	return c.JSON(http.StatusOK, map[string]any{"sessions_ended": count})
}

// Refresh rotates the refresh token: the new one is stored before the
// old one is deleted, and the old one stops working immediately.
func (h *Handler) Refresh(c echo.Context) error {
	oldToken := cookies.Read(c, cookies.RefreshToken)
	if oldToken == "" {
		return apperr.AuthError("refresh token required")
	}

	accessToken, claims, err := h.jwt.Refresh(oldToken)
	if err != nil {
		cookies.ClearAuth(c, h.cfg.IsProduction())
		return apperr.AuthError("invalid refresh token")
	}

	newToken, err := h.jwt.IssueRefreshToken(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return apperr.InternalError(err)
	}

	if _, err := h.tokens.Rotate(oldToken, newToken, h.jwt.RefreshTokenExpiration()); err != nil {
		cookies.ClearAuth(c, h.cfg.IsProduction())
		return apperr.AuthError("invalid refresh token")
	}

	secure := h.cfg.IsProduction()
	cookies.SetAccessToken(c, accessToken, h.cfg.JWT.AccessExpiry, secure)
	cookies.SetRefreshToken(c, newToken, h.cfg.JWT.RefreshExpiry, secure)

	return c.JSON(http.StatusOK, map[string]any{
		"expires_in": h.jwt.AccessExpirySeconds(),
	})
}

type changePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// ChangePassword updates the credential and ends every other session.
// The current session continues on freshly issued tokens.
func (h *Handler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ValidationError("invalid request body")
	}
	if req.NewPassword != req.ConfirmNewPassword {
		return apperr.ValidationError("passwords do not match")
	}

	userID := guard.GetUserID(c)
	user, err := h.users.FindByID(userID)
	if err != nil {
		return apperr.InternalError(err)
	}

	ok, err := h.passwords.Verify(user.PasswordHash, req.CurrentPassword)
	if err != nil {
		return apperr.InternalError(err)
	}
	if !ok {
		return apperr.AuthError("current password is incorrect")
	}

	if err := h.passwords.Validate(req.NewPassword); err != nil {
		return apperr.ValidationError(err.Error())
	}

	hash, err := h.passwords.Hash(req.NewPassword)
	if err != nil {
		return apperr.InternalError(err)
	}
	if err := h.users.UpdatePassword(userID, hash); err != nil {
		return apperr.InternalError(err)
	}

	if _, err := h.tokens.DeactivateAll(userID); err != nil {
		return apperr.InternalError(err)
	}
	h.guard.InvalidateUser(userID)

	if err := h.issueSession(c, user, ""); err != nil {
		return err
	}

	h.logger.Info("password changed", zap.String("user_id", userID))

	return c.JSON(http.StatusOK, map[string]any{"message": "password changed"})
}

func (h *Handler) ActiveSessions(c echo.Context) error {
	sessions, err := h.tokens.ActiveSessions(guard.GetUserID(c), cookies.Read(c, cookies.RefreshToken))
	if err != nil {
		return apperr.InternalError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

type cleanupTokensRequest struct {
	UnusedDays int `json:"unusedDays"`
}

func (h *Handler) CleanupTokens(c echo.Context) error {
	var req cleanupTokensRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ValidationError("invalid request body")
	}
	if req.UnusedDays < 0 {
		return apperr.ValidationError("unusedDays must not be negative")
	}

	count, err := h.tokens.CleanupUnused(guard.GetUserID(c), req.UnusedDays)
	if err != nil {
		return apperr.InternalError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"removed": count})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword always reports success so the endpoint cannot be used
// to probe for accounts.
func (h *Handler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ValidationError("invalid request body")
	}

	response := c.JSON(http.StatusOK, map[string]any{
		"message": "if the account exists, a reset email has been sent",
	})

	user, err := h.users.FindByEmail(req.Email)
	if err != nil {
		if !errors.Is(err, users.ErrUserNotFound) {
			h.logger.Error("password reset lookup failed", zap.Error(err))
		}
		return response
	}

	token, err := h.users.CreateResetToken(user.ID, passwordResetTTL)
	if err != nil {
		h.logger.Error("failed to create password reset token", zap.Error(err))
		return response
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", h.cfg.App.URL, token)
	if err := h.mailer.SendPasswordReset(user.Email, user.Name, resetURL); err != nil {
		h.logger.Error("failed to send password reset email", zap.Error(err))
	}

	return response
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ValidationError("invalid request body")
	}

	if err := h.passwords.Validate(req.Password); err != nil {
		return apperr.ValidationError(err.Error())
	}

	user, err := h.users.ConsumeResetToken(req.Token)
	if err != nil {
		if errors.Is(err, users.ErrResetTokenInvalid) {
			return apperr.BusinessError("reset token is invalid or expired")
		}
		return apperr.InternalError(err)
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		return apperr.InternalError(err)
	}
	if err := h.users.UpdatePassword(user.ID, hash); err != nil {
		return apperr.InternalError(err)
	}

	if _, err := h.tokens.DeactivateAll(user.ID); err != nil {
		return apperr.InternalError(err)
	}
	h.guard.InvalidateUser(user.ID)

	h.logger.Info("password reset completed", zap.String("user_id", user.ID))

	return c.JSON(http.StatusOK, map[string]any{"message": "password reset"})
}
