package server

import (
	"explorer/internal/models"
	"explorer/internal/seo"

	"github.com/gofiber/fiber/v2"
)

// Sitemap godoc
// @Summary XML sitemap
// @Description Home, province, district and city pages of the frontend
// @Tags seo
// @Produce xml
// @Success 200 {string} string
// @Router /sitemap.xml [get]
func (s *Server) Sitemap(c *fiber.Ctx) error {
	body, err := seo.Sitemap(s.siteBaseURL(c), s.locations.Provinces(), s.now())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.Send(body)
}

// Robots godoc
// @Summary robots.txt
// @Tags seo
// @Produce plain
// @Success 200 {string} string
// @Router /robots.txt [get]
func (s *Server) Robots(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(seo.Robots(s.siteBaseURL(c)))
}

// ListLocations godoc
// @Summary Location hierarchy
// @Description Every province with its districts and major cities
// @Tags locations
// @Produce json
// @Success 200 {object} models.Envelope{data=[]geo.Province}
// @Router /locations [get]
func (s *Server) ListLocations(c *fiber.Ctx) error {
	return models.RespondList(c, s.locations.Provinces())
}

// GetProvince godoc
// @Summary One province
// @Tags locations
// @Produce json
// @Param provinceId path string true "Province id"
// @Success 200 {object} models.Envelope{data=geo.Province}
// @Failure 404 {object} models.Envelope
// @Router /locations/{provinceId} [get]
func (s *Server) GetProvince(c *fiber.Ctx) error {
	province, ok := s.locations.Province(c.Params("provinceId"))
	if !ok {
		return models.RespondWithAppError(c, models.NewNotFoundError("Province"))
	}
	return models.RespondSuccess(c, fiber.StatusOK, "", province)
}
