package guard

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/tech-arch1tect/treez/apperr"
	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/cookies"
	"github.com/tech-arch1tect/treez/services/jwt"
	"github.com/tech-arch1tect/treez/services/logging"
	"github.com/tech-arch1tect/treez/services/refreshtoken"
	"github.com/tech-arch1tect/treez/services/users"
)

const (
	IdentityKey = "_guard_identity"
	UserIDKey   = "_guard_user_id"
)

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Guard authenticates requests from the token cookies, renewing the
// access token transparently when a valid refresh token is present.
type Guard struct {
	config *config.Config
	jwt    *jwt.Service
	tokens *refreshtoken.Service
	users  *users.Service
	logger *logging.Service

	// identity entries are keyed by access token, role entries by user id
	identityCache *gocache.Cache
	roleCache     *gocache.Cache
}

func New(cfg *config.Config, jwtService *jwt.Service, tokens *refreshtoken.Service, userService *users.Service, logger *logging.Service) *Guard {
	return &Guard{
		config:        cfg,
		jwt:           jwtService,
		tokens:        tokens,
		users:         userService,
		logger:        logger,
		identityCache: gocache.New(cfg.Guard.IdentityCacheTTL, 10*time.Minute),
		roleCache:     gocache.New(cfg.Guard.RoleCacheTTL, 10*time.Minute),
	}
}

func (g *Guard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accessToken := cookies.Read(c, cookies.AccessToken)

			if accessToken != "" {
				if identity, ok := g.cachedIdentity(accessToken); ok {
					setIdentity(c, identity)
					return next(c)
				}

				claims, err := g.jwt.Verify(accessToken, jwt.AccessSecret)
				if err == nil {
					// a valid access token alone is not enough: the
					// session must still exist, otherwise logout-all
					// would leave unexpired tokens usable
					if err := g.sessionAlive(c); err != nil {
						cookies.ClearAuth(c, g.config.IsProduction())
						return err
					}

					identity := identityFromClaims(claims)
					g.cacheIdentity(accessToken, identity)
					setIdentity(c, identity)
					return next(c)
				}

				g.logger.Debug("access token rejected, attempting refresh",
					zap.Error(err))
			}

			identity, err := g.refresh(c)
			if err != nil {
				cookies.ClearAuth(c, g.config.IsProduction())
				return err
			}

			setIdentity(c, identity)
			return next(c)
		}
	}
}

// sessionAlive checks that the request's refresh token is still stored,
// i.e. the session has not been ended by logout or revocation.
func (g *Guard) sessionAlive(c echo.Context) error {
	refreshToken := cookies.Read(c, cookies.RefreshToken)
	if refreshToken == "" {
		return apperr.AuthError("authentication required")
	}
	if _, err := g.tokens.Find(refreshToken); err != nil {
		g.logger.Debug("session no longer active", zap.Error(err))
		return apperr.AuthError("session expired")
	}
	return nil
}

// refresh renews the access token from the refresh token cookie. The
// refresh token itself is not rotated here; rotation happens only on
// the explicit refresh endpoint.
func (g *Guard) refresh(c echo.Context) (Identity, error) {
	refreshToken := cookies.Read(c, cookies.RefreshToken)
	if refreshToken == "" {
		return Identity{}, apperr.AuthError("authentication required")
	}

	stored, err := g.tokens.Find(refreshToken)
	if err != nil {
		g.logger.Debug("refresh token not usable", zap.Error(err))
		return Identity{}, apperr.AuthError("session expired")
	}

	accessToken, claims, err := g.jwt.Refresh(refreshToken)
	if err != nil {
		g.logger.Warn("stored refresh token failed verification",
			zap.String("token_id", stored.ID),
			zap.Error(err))
		return Identity{}, apperr.AuthError("session expired")
	}

	if err := g.tokens.TouchLastUsed(stored.ID); err != nil {
		g.logger.Warn("failed to record refresh token use",
			zap.String("token_id", stored.ID),
			zap.Error(err))
	}

	cookies.SetAccessToken(c, accessToken, g.config.JWT.AccessExpiry, g.config.IsProduction())

	identity := identityFromClaims(claims)
	g.cacheIdentity(accessToken, identity)

	g.logger.Debug("access token renewed",
		zap.String("user_id", identity.UserID))

	return identity, nil
}

// RequireRole allows only callers whose current role matches. The role
// is read from the database through a cache rather than trusted from
// token claims, so demotions take effect within the cache TTL. Role
// comparison ignores case. Failing the check does not clear the auth
// cookies: the session is still valid, just not privileged enough.
func (g *Guard) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := GetIdentity(c)
			if !ok {
				return apperr.AuthError("authentication required")
			}

			current, err := g.roleFor(identity.UserID)
			if err != nil {
				return apperr.InternalError(err)
			}

			if !strings.EqualFold(current, role) {
				return apperr.ForbiddenError("insufficient permissions")
			}

			return next(c)
		}
	}
}

func (g *Guard) roleFor(userID string) (string, error) {
	if cached, ok := g.roleCache.Get(userID); ok {
		if role, ok := cached.(string); ok {
			return role, nil
		}
	}

	user, err := g.users.FindByID(userID)
	if err != nil {
		return "", err
	}

	g.boundedSet(g.roleCache, g.config.Guard.RoleCacheSize, userID, user.Role.Name)
	return user.Role.Name, nil
}

// InvalidateToken drops the cached identity for an access token, used
// on logout so the token stops authenticating before its cache TTL.
func (g *Guard) InvalidateToken(accessToken string) {
	if accessToken != "" {
		g.identityCache.Delete(accessToken)
	}
}

// InvalidateUser drops every cache entry derived from the user, used on
// logout-all and password change.
func (g *Guard) InvalidateUser(userID string) {
	g.roleCache.Delete(userID)

	for key, item := range g.identityCache.Items() {
		if identity, ok := item.Object.(Identity); ok && identity.UserID == userID {
			g.identityCache.Delete(key)
		}
	}
}

func (g *Guard) cachedIdentity(accessToken string) (Identity, bool) {
	cached, ok := g.identityCache.Get(accessToken)
	if !ok {
		return Identity{}, false
	}
	identity, ok := cached.(Identity)
	return identity, ok
}

func (g *Guard) cacheIdentity(accessToken string, identity Identity) {
	g.boundedSet(g.identityCache, g.config.Guard.IdentityCacheSize, accessToken, identity)
}

// boundedSet keeps the cache from growing without limit: when full it
// first evicts expired entries, then falls back to dropping everything.
func (g *Guard) boundedSet(cache *gocache.Cache, maxSize int, key string, value any) {
	if maxSize > 0 && cache.ItemCount() >= maxSize {
		cache.DeleteExpired()
		if cache.ItemCount() >= maxSize {
			cache.Flush()
		}
	}
	cache.Set(key, value, gocache.DefaultExpiration)
}

func identityFromClaims(claims *jwt.Claims) Identity {
	return Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}
}

func setIdentity(c echo.Context, identity Identity) {
	c.Set(IdentityKey, identity)
	c.Set(UserIDKey, identity.UserID)
}

func GetIdentity(c echo.Context) (Identity, bool) {
	identity, ok := c.Get(IdentityKey).(Identity)
	return identity, ok
}

func GetUserID(c echo.Context) string {
	if userID, ok := c.Get(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
