package server

import (
	"coffer/internal/codec"
	"coffer/internal/models"
	"coffer/internal/service"

	"github.com/gofiber/fiber/v2"
)

// itemOut is the wire shape of one encrypted item. Content is ciphertext
// passed through untouched.
type itemOut struct {
	UID     string `json:"uid" cbor:"uid"`
	Content []byte `json:"content" cbor:"content"`
	Stoken  string `json:"stoken,omitempty" cbor:"stoken,omitempty"`
}

// ListItems handles GET /api/v1/collection/:collection_uid/item/
func (s *Server) ListItems(c *fiber.Ctx) error {
	items, cursor, done, err := s.itemService.List(
		c.Context(), currentUserID(c), c.Params("collection_uid"),
		c.Query("iterator"), queryLimit(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}

	data := make([]itemOut, 0, len(items))
	for _, it := range items {
		out := itemOut{UID: it.UID, Content: it.Content}
		if it.Stoken != nil {
			out.Stoken = it.Stoken.UID
		}
		data = append(data, out)
	}
	return codec.Respond(c, fiber.StatusOK, listResponse{
		Data:     data,
		Iterator: cursor,
		Done:     done,
	})
}

// BatchPutItems handles POST /api/v1/collection/:collection_uid/item/batch/
func (s *Server) BatchPutItems(c *fiber.Ctx) error {
	var req struct {
		Items []service.ItemInput `json:"items" cbor:"items"`
	}
	if err := decodeBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	err := s.itemService.BatchPut(
		c.Context(), currentUserID(c), c.Params("collection_uid"), req.Items)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.NoContent(c)
}
