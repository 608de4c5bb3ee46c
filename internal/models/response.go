package models

import "github.com/gofiber/fiber/v2"

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the JSON shape shared by every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RespondSuccess writes a success envelope with an optional message and payload.
func RespondSuccess(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// RespondList writes a success envelope for a collection and includes its length.
func RespondList[T any](c *fiber.Ctx, items []T) error {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	return c.JSON(Envelope{
		Status: StatusSuccess,
		Count:  &count,
		Data:   items,
	})
}
