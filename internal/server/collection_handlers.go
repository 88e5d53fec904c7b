package server

import (
	"coffer/internal/codec"
	"coffer/internal/models"

	"github.com/gofiber/fiber/v2"
)

type createCollectionRequest struct {
	UID            string `json:"uid" cbor:"uid"`
	CollectionType []byte `json:"collection_type" cbor:"collection_type"`
}

// collectionOut is the wire shape of one collection. Stoken carries the
// collection-level stoken UID so clients can resume syncing from it.
type collectionOut struct {
	UID            string             `json:"uid" cbor:"uid"`
	CollectionType []byte             `json:"collection_type,omitempty" cbor:"collection_type,omitempty"`
	Stoken         string             `json:"stoken,omitempty" cbor:"stoken,omitempty"`
	AccessLevel    models.AccessLevel `json:"access_level,omitempty" cbor:"access_level,omitempty"`
}

func toCollectionOut(col *models.Collection, level models.AccessLevel) collectionOut {
	out := collectionOut{
		UID:            col.UID,
		CollectionType: col.TypeHint,
		AccessLevel:    level,
	}
	if col.Stoken != nil {
		out.Stoken = col.Stoken.UID
	}
	return out
}

// CreateCollection handles POST /api/v1/collection/
func (s *Server) CreateCollection(c *fiber.Ctx) error {
	var req createCollectionRequest
	if err := decodeBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	col, err := s.collectionService.Create(c.Context(), currentUserID(c), req.UID, req.CollectionType)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.Respond(c, fiber.StatusCreated, toCollectionOut(col, models.AccessLevelAdmin))
}

// GetCollection handles GET /api/v1/collection/:collection_uid/
func (s *Server) GetCollection(c *fiber.Ctx) error {
	col, err := s.collectionService.Get(c.Context(), currentUserID(c), c.Params("collection_uid"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return codec.Respond(c, fiber.StatusOK, toCollectionOut(col, ""))
}

// ListCollections handles POST /api/v1/collection/list_multi/
// POST rather than GET: clients may filter by collection types, and the
// filter list does not fit a query string.
func (s *Server) ListCollections(c *fiber.Ctx) error {
	var req struct {
		Iterator string `json:"iterator,omitempty" cbor:"iterator,omitempty"`
		Limit    int    `json:"limit,omitempty" cbor:"limit,omitempty"`
	}
	if len(c.Body()) > 0 {
		if err := decodeBody(c, &req); err != nil {
			return models.RespondWithError(c, err)
		}
	}

	memberships, cursor, done, err := s.collectionService.ListMulti(
		c.Context(), currentUserID(c), req.Iterator, req.Limit)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	data := make([]collectionOut, 0, len(memberships))
	for _, m := range memberships {
		if m.Collection == nil {
			continue
		}
		data = append(data, toCollectionOut(m.Collection, m.AccessLevel))
	}
	return codec.Respond(c, fiber.StatusOK, listResponse{
		Data:     data,
		Iterator: cursor,
		Done:     done,
	})
}
