package server

import (
	"coffer/internal/codec"
	"coffer/internal/models"

	"github.com/gofiber/fiber/v2"
)

// memberOut is the wire shape of one membership row.
type memberOut struct {
	Username    string             `json:"username" cbor:"username"`
	AccessLevel models.AccessLevel `json:"access_level" cbor:"access_level"`
}

// ListMembers handles GET /api/v1/collection/:collection_uid/member/
func (s *Server) ListMembers(c *fiber.Ctx) error {
	members, cursor, done, err := s.memberService.List(
		c.Context(), currentUserID(c), c.Params("collection_uid"),
		c.Query("iterator"), queryLimit(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}

	data := make([]memberOut, 0, len(members))
	for _, m := range members {
		username := ""
		if m.User != nil {
			username = m.User.Username
		}
		data = append(data, memberOut{Username: username, AccessLevel: m.AccessLevel})
	}
	return codec.Respond(c, fiber.StatusOK, listResponse{
		Data:     data,
		Iterator: cursor,
		Done:     done,
	})
}

// PatchMember handles PATCH /api/v1/collection/:collection_uid/member/:username/
func (s *Server) PatchMember(c *fiber.Ctx) error {
	var req struct {
		AccessLevel models.AccessLevel `json:"access_level" cbor:"access_level"`
	}
	if err := decodeBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	err := s.memberService.SetAccessLevel(
		c.Context(), currentUserID(c), c.Params("collection_uid"),
		c.Params("username"), req.AccessLevel)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.NoContent(c)
}

// DeleteMember handles DELETE /api/v1/collection/:collection_uid/member/:username/
func (s *Server) DeleteMember(c *fiber.Ctx) error {
	err := s.memberService.Revoke(
		c.Context(), currentUserID(c), c.Params("collection_uid"), c.Params("username"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.NoContent(c)
}

// LeaveCollection handles POST /api/v1/collection/:collection_uid/member/leave/
func (s *Server) LeaveCollection(c *fiber.Ctx) error {
	err := s.memberService.Leave(c.Context(), currentUserID(c), c.Params("collection_uid"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.NoContent(c)
}
