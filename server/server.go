package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/tech-arch1tect/treez/apperr"
	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/middleware/ratelimit"
	"github.com/tech-arch1tect/treez/middleware/txid"
	"github.com/tech-arch1tect/treez/services/logging"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

func New(cfg *config.Config, logger *logging.Service, rateLimitCfg *ratelimit.Config) *Server {
	e := echo.New()
	e.HideBanner = true

	s := &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(echomw.Recover())
	e.Use(txid.Middleware())
	e.Use(logging.RequestLogger(logger))
	if cfg.RateLimit.Enabled {
		e.Use(ratelimit.Middleware(rateLimitCfg))
	}

	return s
}

func (s *Server) Start() {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info("starting server", zap.String("addr", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Fatal("failed to start server", zap.Error(err))
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Group(prefix string) *echo.Group {
	return s.echo.Group(prefix)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// handleError translates the error taxonomy into HTTP responses.
// Internal causes are logged with the request transaction id and never
// leak to the client.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	transactionID := txid.FromContext(c)
	body := errorBody{TransactionID: transactionID}

	var appErr *apperr.Error
	var httpErr *echo.HTTPError
	var status int

	switch {
	case errors.As(err, &appErr):
		status = appErr.Kind.HTTPStatus()
		body.Code = appErr.Kind.String()
		body.Message = appErr.Message

		if appErr.Kind == apperr.Internal {
			s.logger.Error("request failed",
				zap.String("transaction_id", transactionID),
				zap.String("path", c.Path()),
				zap.Error(errors.Unwrap(appErr)))
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		body.Code = http.StatusText(status)
		body.Message = fmt.Sprintf("%v", httpErr.Message)
	default:
		status = http.StatusInternalServerError
		body.Code = apperr.Internal.String()
		body.Message = "An internal error occurred"
		s.logger.Error("unhandled error",
			zap.String("transaction_id", transactionID),
			zap.String("path", c.Path()),
			zap.Error(err))
	}

	if writeErr := c.JSON(status, map[string]any{"error": body}); writeErr != nil {
		s.logger.Error("failed to write error response", zap.Error(writeErr))
	}
}
