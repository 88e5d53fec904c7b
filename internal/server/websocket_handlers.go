package server

import (
	"context"
	"log"

	"coffer/internal/codec"
	"coffer/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// IssueWSTicket handles POST /api/v1/ws/ticket/
//
// Browsers cannot set an Authorization header on a websocket dial, so the
// client first mints a short-lived single-use ticket here and then dials
// /api/v1/ws/<ticket>.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.tickets == nil {
		return models.RespondWithError(c,
			models.NewInternalError(fiber.ErrServiceUnavailable))
	}
	ticket, err := s.tickets.Mint(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}
	return codec.Respond(c, fiber.StatusOK, fiber.Map{"ticket": ticket})
}

// WebSocketUpgrade gates the sync websocket endpoint: the ticket is redeemed
// before the upgrade so a bad ticket gets a plain 401 instead of a dropped
// socket.
func (s *Server) WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if s.tickets == nil || s.hub == nil {
			return fiber.ErrServiceUnavailable
		}
		userID, err := s.tickets.Redeem(c.Context(), c.Params("ticket"))
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		c.Locals("userID", userID)
		return c.Next()
	}
}

// WebSocketSyncHandler handles the sync nudge websocket. The connection is
// subscribed to every collection the user belongs to at connect time; it
// only ever receives change nudges and never carries data.
func (s *Server) WebSocketSyncHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.Close()
			return
		}

		collectionUIDs, err := s.collectionRepo.ListUIDsForUser(ctx, userID)
		if err != nil {
			log.Printf("WebSocket Sync: failed to load collections for user %d: %v", userID, err)
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn, collectionUIDs)
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
