package server

import (
	"explorer/internal/models"
	"explorer/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListExperiences godoc
// @Summary List experiences
// @Description Newest first, optionally filtered by location
// @Tags experiences
// @Produce json
// @Param provinceId query string false "Province id"
// @Param districtId query string false "District id"
// @Param cityName query string false "City name"
// @Success 200 {object} models.Envelope{data=[]models.Experience}
// @Router /experiences [get]
func (s *Server) ListExperiences(c *fiber.Ctx) error {
	experiences, err := s.experienceService.List(c.UserContext(), models.ExperienceFilter{
		ProvinceID: c.Query("provinceId"),
		DistrictID: c.Query("districtId"),
		CityName:   c.Query("cityName"),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondList(c, experiences)
}

// GetExperience godoc
// @Summary Get an experience
// @Tags experiences
// @Produce json
// @Param id path string true "Experience ID"
// @Success 200 {object} models.Envelope{data=models.Experience}
// @Failure 404 {object} models.Envelope
// @Router /experiences/{id} [get]
func (s *Server) GetExperience(c *fiber.Ctx) error {
	experience, err := s.experienceService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "", experience)
}

// CreateExperience godoc
// @Summary Share an experience
// @Description The author is always the authenticated user
// @Tags experiences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ExperienceInput true "Experience"
// @Success 201 {object} models.Envelope{data=models.Experience}
// @Failure 400 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Router /experiences [post]
func (s *Server) CreateExperience(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	var req service.ExperienceInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	experience, err := s.experienceService.Create(c.UserContext(), user, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusCreated, "Experience created successfully", experience)
}

// UpdateExperience godoc
// @Summary Edit an experience
// @Description Only the author may edit; omitted fields are unchanged
// @Tags experiences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experience ID"
// @Param request body service.ExperiencePatch true "Changes"
// @Success 200 {object} models.Envelope{data=models.Experience}
// @Failure 400 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /experiences/{id} [put]
func (s *Server) UpdateExperience(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	var req service.ExperiencePatch
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	experience, err := s.experienceService.Update(c.UserContext(), user, c.Params("id"), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "Experience updated successfully", experience)
}

// DeleteExperience godoc
// @Summary Delete an experience
// @Description Only the author may delete; images no other experience uses are removed from storage
// @Tags experiences
// @Produce json
// @Security BearerAuth
// @Param id path string true "Experience ID"
// @Success 200 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /experiences/{id} [delete]
func (s *Server) DeleteExperience(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	if err := s.experienceService.Delete(c.UserContext(), user, c.Params("id")); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "Experience deleted successfully", nil)
}
