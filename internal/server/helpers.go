package server

import (
	"strings"

	"explorer/internal/middleware"
	"explorer/internal/models"

	"github.com/gofiber/fiber/v2"
)

// bindJSON parses the request body into dest. On failure it writes a 400 response and
// returns false; the handler must then return nil.
func bindJSON(c *fiber.Ctx, dest any) (bool, error) {
	if err := c.BodyParser(dest); err != nil {
		return false, models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	return true, nil
}

// requestUser returns the identity attached by RequireIdentity. A missing identity means a
// protected handler was mounted without the middleware and is answered with 401.
func requestUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, models.NewUnauthenticatedError("Access token required")
	}
	return user, nil
}

// publicBaseURL is the origin used in generated links. PUBLIC_BASE_URL wins; otherwise the
// request's own origin is used, upgraded to https in production.
func (s *Server) publicBaseURL(c *fiber.Ctx) string {
	if s.config.PublicBaseURL != "" {
		return s.config.PublicBaseURL
	}
	base := strings.TrimRight(c.BaseURL(), "/")
	if s.config.IsProduction() && strings.HasPrefix(base, "http://") {
		base = "https://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// siteBaseURL is the frontend origin used in the sitemap and robots.txt.
func (s *Server) siteBaseURL(c *fiber.Ctx) string {
	if s.config.FrontendURL != "" {
		return s.config.FrontendURL
	}
	return s.publicBaseURL(c)
}
