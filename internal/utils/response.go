package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// ListMeta accompanies collection responses.
type ListMeta struct {
	Count int `json:"count"`
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus answers with a success envelope and the given status.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	return SendSuccessWithMeta(c, status, message, data, nil)
}

// SendSuccessWithMeta answers with a success envelope carrying meta. A zero status means 200.
func SendSuccessWithMeta(c *fiber.Ctx, status int, message string, data interface{}, meta interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(APIResponse{
		Success: true,
		Message: orDefault(message, "success"),
		Data:    data,
		Meta:    meta,
	})
}

// SendList answers 200 with items and their count. A nil slice is sent as [].
func SendList[T any](c *fiber.Ctx, message string, items []T) error {
	if items == nil {
		items = []T{}
	}
	return SendSuccessWithMeta(c, fiber.StatusOK, message, items, ListMeta{Count: len(items)})
}

// SendError answers with a failure envelope.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorWithDetails(c, status, message, nil)
}

// SendErrorWithDetails answers with a failure envelope and field level details.
func SendErrorWithDetails(c *fiber.Ctx, status int, message string, details interface{}) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: orDefault(message, "error"),
		Details: details,
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
