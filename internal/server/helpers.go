package server

import (
	"strconv"

	"coffer/internal/codec"
	"coffer/internal/models"

	"github.com/gofiber/fiber/v2"
)

// currentUserID pulls the authenticated user ID set by the auth middleware.
// Returns 0 for anonymous requests.
func currentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// queryLimit parses the ?limit= query parameter, 0 meaning "use the default".
func queryLimit(c *fiber.Ctx) int {
	raw := c.Query("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// decodeBody unmarshals the request body, translating failures into a 422.
func decodeBody(c *fiber.Ctx, out any) error {
	if err := codec.Decode(c, out); err != nil {
		return models.NewValidationError("malformed request body")
	}
	return nil
}

// listResponse is the wire shape for all cursor-paged listings.
type listResponse struct {
	Data     any    `json:"data" cbor:"data"`
	Iterator string `json:"iterator,omitempty" cbor:"iterator,omitempty"`
	Done     bool   `json:"done" cbor:"done"`
}
