package server

import (
	"explorer/internal/models"
	"explorer/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register godoc
// @Summary Register a new account
// @Description Create an account with a unique username and receive a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration details"
// @Success 201 {object} models.Envelope{data=service.AuthResult}
// @Failure 400 {object} models.Envelope
// @Failure 429 {object} models.Envelope
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	result, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusCreated, "User registered successfully", result)
}

// Login godoc
// @Summary Log in
// @Description Exchange a username and password for a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} models.Envelope{data=service.AuthResult}
// @Failure 400 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	result, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "Login successful", result)
}

// GetMe godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Router /auth/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "", fiber.Map{"user": user})
}

// UpdateProfile godoc
// @Summary Update profile
// @Description Change the display name and, with the current password, the password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Profile changes"
// @Success 200 {object} models.Envelope
// @Failure 400 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Router /auth/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	var req service.UpdateProfileInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	updated, err := s.authService.UpdateProfile(c.UserContext(), user, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "Profile updated successfully", fiber.Map{"user": updated})
}
