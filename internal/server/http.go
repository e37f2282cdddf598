package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/om-relay/internal/logging"
)

// HTTPService runs a fiber app under the supervisor. Cancelling the serve
// context shuts the listener down gracefully.
type HTTPService struct {
	app             *fiber.App
	addr            string
	shutdownTimeout time.Duration
}

func NewHTTPService(app *fiber.App, port int, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		app:             app,
		addr:            fmt.Sprintf(":%d", port),
		shutdownTimeout: shutdownTimeout,
	}
}

func (s *HTTPService) String() string { return "http-server" }

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("server starting")
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	logging.Info().Dur("timeout", s.shutdownTimeout).Msg("server shutting down")
	if err := s.app.ShutdownWithTimeout(s.shutdownTimeout); err != nil {
		logging.Warn().Err(err).Msg("server shutdown incomplete")
	}
	<-errCh
	return ctx.Err()
}
