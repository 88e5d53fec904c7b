package server

import (
	"coffer/internal/codec"
	"coffer/internal/models"

	"github.com/gofiber/fiber/v2"
)

type createInvitationRequest struct {
	CollectionUID       string             `json:"collection" cbor:"collection"`
	Username            string             `json:"username" cbor:"username"`
	AccessLevel         models.AccessLevel `json:"access_level" cbor:"access_level"`
	SignedEncryptionKey []byte             `json:"signed_encryption_key" cbor:"signed_encryption_key"`
}

// invitationOut is the wire shape of one pending invitation.
type invitationOut struct {
	UID                 string             `json:"uid" cbor:"uid"`
	CollectionUID       string             `json:"collection,omitempty" cbor:"collection,omitempty"`
	Username            string             `json:"username,omitempty" cbor:"username,omitempty"`
	FromUsername        string             `json:"from_username,omitempty" cbor:"from_username,omitempty"`
	AccessLevel         models.AccessLevel `json:"access_level" cbor:"access_level"`
	SignedEncryptionKey []byte             `json:"signed_encryption_key,omitempty" cbor:"signed_encryption_key,omitempty"`
}

func toInvitationOut(inv *models.CollectionInvitation) invitationOut {
	out := invitationOut{
		UID:                 inv.UID,
		AccessLevel:         inv.AccessLevel,
		SignedEncryptionKey: inv.SignedEncryptionKey,
	}
	if inv.Collection != nil {
		out.CollectionUID = inv.Collection.UID
	}
	if inv.User != nil {
		out.Username = inv.User.Username
	}
	if inv.FromUser != nil {
		out.FromUsername = inv.FromUser.Username
	}
	return out
}

// CreateInvitation handles POST /api/v1/invitation/outgoing/
func (s *Server) CreateInvitation(c *fiber.Ctx) error {
	var req createInvitationRequest
	if err := decodeBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	inv, err := s.invitationService.CreateOutgoing(
		c.Context(), currentUserID(c), req.CollectionUID, req.Username,
		req.AccessLevel, req.SignedEncryptionKey)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.Respond(c, fiber.StatusCreated, toInvitationOut(inv))
}

// ListOutgoingInvitations handles GET /api/v1/invitation/outgoing/
func (s *Server) ListOutgoingInvitations(c *fiber.Ctx) error {
	invs, err := s.invitationService.ListOutgoing(
		c.Context(), currentUserID(c), c.Query("collection"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	data := make([]invitationOut, 0, len(invs))
	for i := range invs {
		data = append(data, toInvitationOut(&invs[i]))
	}
	return codec.Respond(c, fiber.StatusOK, listResponse{Data: data, Done: true})
}

// DeleteOutgoingInvitation handles DELETE /api/v1/invitation/outgoing/:uid/
func (s *Server) DeleteOutgoingInvitation(c *fiber.Ctx) error {
	if err := s.invitationService.DeleteOutgoing(c.Context(), currentUserID(c), c.Params("uid")); err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.NoContent(c)
}

// ListIncomingInvitations handles GET /api/v1/invitation/incoming/
func (s *Server) ListIncomingInvitations(c *fiber.Ctx) error {
	invs, err := s.invitationService.ListIncoming(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	data := make([]invitationOut, 0, len(invs))
	for i := range invs {
		data = append(data, toInvitationOut(&invs[i]))
	}
	return codec.Respond(c, fiber.StatusOK, listResponse{Data: data, Done: true})
}

// AcceptInvitation handles POST /api/v1/invitation/incoming/:uid/accept/
func (s *Server) AcceptInvitation(c *fiber.Ctx) error {
	if err := s.invitationService.Accept(c.Context(), currentUserID(c), c.Params("uid")); err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.NoContent(c)
}

// DeclineInvitation handles DELETE /api/v1/invitation/incoming/:uid/
func (s *Server) DeclineInvitation(c *fiber.Ctx) error {
	if err := s.invitationService.Decline(c.Context(), currentUserID(c), c.Params("uid")); err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.NoContent(c)
}
