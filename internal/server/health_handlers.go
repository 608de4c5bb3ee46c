package server

import (
	"context"
	"time"

	"explorer/internal/database"
	"explorer/internal/models"

	"github.com/gofiber/fiber/v2"
)

const apiVersion = "1.0.0"

// HealthCheck godoc
// @Summary API health
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	state := "Connected"
	if err := database.Ping(ctx, s.db); err != nil {
		state = "Disconnected"
	}

	return c.JSON(fiber.Map{
		"status":    "OK",
		"message":   "Sri Lanka Explorer API is running",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"database":  state,
	})
}

// TestConnection godoc
// @Summary Database connection details
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /test-connection [get]
func (s *Server) TestConnection(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	state := "Connected"
	if err := database.Ping(ctx, s.db); err != nil {
		state = "Disconnected"
	}

	name, host := s.config.DBName, s.config.DBHost
	if s.db.Dialector.Name() == "sqlite" {
		name, host = s.config.DBDSN, "local"
	}

	return c.JSON(fiber.Map{
		"status": models.StatusSuccess,
		"database": fiber.Map{
			"state":  state,
			"driver": s.db.Dialector.Name(),
			"name":   name,
			"host":   host,
		},
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   s.now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: a disabled cache is
// reported but does not fail readiness, an unreachable configured one does.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.cache.Enabled() {
		redisStatus = "healthy"
		if err := s.cache.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": apiVersion,
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": s.now(),
	})
}

// Welcome describes the API at / outside production.
func (s *Server) Welcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      models.StatusSuccess,
		"message":     "Welcome to Sri Lanka Explorer API!",
		"version":     apiVersion,
		"description": "Backend API for Sri Lanka travel experiences",
		"endpoints": fiber.Map{
			"health":         "/api/health",
			"experiences":    "/api/experiences",
			"auth":           "/api/auth",
			"upload":         "/api/upload",
			"locations":      "/api/locations",
			"testConnection": "/api/test-connection",
			"docs":           "/api/swagger/index.html",
		},
		"documentation": "All API endpoints are prefixed with /api/",
		"timestamp":     s.now().UTC().Format(time.RFC3339),
	})
}
