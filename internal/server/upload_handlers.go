package server

import (
	"errors"

	"explorer/internal/models"
	"explorer/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// UploadImages godoc
// @Summary Upload images
// @Description Multipart upload of up to 10 images (jpeg, png, gif, webp) under the "images" field
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param images formData file true "Image files"
// @Success 200 {object} models.Envelope{data=service.UploadResult}
// @Failure 400 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Router /upload [post]
func (s *Server) UploadImages(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, fasthttp.ErrNoMultipartForm) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid multipart form"))
	}

	in := service.UploadInput{
		UserID:  user.ID,
		BaseURL: s.publicBaseURL(c),
	}
	if form != nil {
		in.Files = form.File["images"]
	}

	result, err := s.uploadService.Upload(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "Images uploaded successfully", result)
}

// DeleteUpload godoc
// @Summary Delete an uploaded image
// @Tags upload
// @Produce json
// @Security BearerAuth
// @Param filename path string true "Stored file name"
// @Success 200 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /upload/{filename} [delete]
func (s *Server) DeleteUpload(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.uploadService.DeleteByFilename(c.UserContext(), user.ID, c.Params("filename")); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "Image deleted successfully", nil)
}

// ImageKitAuth godoc
// @Summary ImageKit upload signature
// @Description One-time token, expiry and signature for a browser upload straight to ImageKit
// @Tags upload
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Envelope{data=service.ImageKitAuthParams}
// @Failure 500 {object} models.Envelope
// @Router /upload/imagekit-auth [post]
func (s *Server) ImageKitAuth(c *fiber.Ctx) error {
	params, err := s.uploadService.ImageKitAuth()
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondSuccess(c, fiber.StatusOK, "", params)
}
