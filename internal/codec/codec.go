// Package codec negotiates request and response body encodings. The wire
// format is CBOR (the compact binary encoding clients speak) with JSON
// accepted for debugging and tests.
package codec

import (
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofiber/fiber/v2"
)

// MIMECBOR is the content type of CBOR-encoded bodies.
const MIMECBOR = "application/cbor"

// Decode unmarshals the request body according to its Content-Type.
// An absent content type defaults to CBOR.
func Decode(c *fiber.Ctx, out any) error {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(c.Get(fiber.HeaderContentType), ";")[0]))
	switch ct {
	case fiber.MIMEApplicationJSON:
		return c.App().Config().JSONDecoder(c.Body(), out)
	default:
		return cbor.Unmarshal(c.Body(), out)
	}
}

// Respond writes v with the given status, CBOR unless the client asked for
// JSON via Accept.
func Respond(c *fiber.Ctx, status int, v any) error {
	if wantsJSON(c) {
		return c.Status(status).JSON(v)
	}
	body, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, MIMECBOR)
	return c.Status(status).Send(body)
}

// NoContent writes an empty 204 response.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func wantsJSON(c *fiber.Ctx) bool {
	accept := c.Get(fiber.HeaderAccept)
	return strings.Contains(accept, fiber.MIMEApplicationJSON) &&
		!strings.Contains(accept, MIMECBOR)
}
