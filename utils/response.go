package utils

import (
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"taskory/config"
)

// Pagination is the envelope block returned by every list endpoint
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// NewPagination derives the pagination block from page/limit/total.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// ParsePagination reads page/limit query params with sane bounds.
func ParsePagination(c *fiber.Ctx) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

// SuccessResponse creates a standardized success envelope
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// MessageResponse creates a success envelope carrying a message and data
func MessageResponse(message string, data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	}
}

// PaginatedResponse creates a success envelope with a pagination block
func PaginatedResponse(data interface{}, page, limit int, total int64) fiber.Map {
	return fiber.Map{
		"success":    true,
		"data":       data,
		"pagination": NewPagination(page, limit, total),
	}
}

// ErrorResponse creates a standardized error envelope. Unexpected failures
// (5xx) are reported to Sentry; their details are hidden outside development.
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		if status >= fiber.StatusInternalServerError {
			sentry.CaptureException(err)
			if config.AppConfig.Environment == "development" {
				response["details"] = err.Error()
			}
		} else {
			response["details"] = err.Error()
		}
	}
	return c.Status(status).JSON(response)
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}
