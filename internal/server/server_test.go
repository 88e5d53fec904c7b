package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"coffer/internal/access"
	"coffer/internal/config"
	"coffer/internal/models"
	"coffer/internal/repository"
	"coffer/internal/service"
	"coffer/internal/stoken"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandlerTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&stoken.Stoken{},
		&models.User{},
		&models.Collection{},
		&models.CollectionItem{},
		&models.CollectionMember{},
		&models.CollectionInvitation{},
	))

	cfg := &config.Config{JWTSecret: "test-secret", MaxPageSize: 1000}
	ledger := stoken.NewLedger()
	authz := access.NewAuthorizer(db)
	collectionRepo := repository.NewCollectionRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	userRepo := repository.NewUserRepository(db)

	return &Server{
		config:         cfg,
		db:             db,
		userRepo:       userRepo,
		collectionRepo: collectionRepo,
		memberRepo:     memberRepo,
		invitationRepo: invitationRepo,
		ledger:         ledger,
		authz:          authz,
		memberService: service.NewMemberService(
			db, ledger, authz, collectionRepo, memberRepo, nil, cfg.MaxPageSize),
		collectionService: service.NewCollectionService(
			db, ledger, collectionRepo, memberRepo, cfg.MaxPageSize),
		itemService: service.NewItemService(
			db, ledger, authz, collectionRepo, nil, cfg.MaxPageSize),
		invitationService: service.NewInvitationService(
			db, ledger, authz, collectionRepo, memberRepo, invitationRepo, userRepo, nil),
	}
}

// newTestApp mounts the API with a stub auth layer: the user ID is taken
// from the X-Test-User header instead of a JWT.
func newTestApp(s *Server) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if raw := c.Get("X-Test-User"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err == nil {
				c.Locals("userID", uint(id))
			}
		}
		return c.Next()
	})

	api := app.Group("/api/v1")
	api.Post("/authentication/signup/", s.Signup)
	api.Post("/authentication/login/", s.Login)
	api.Post("/collection/", s.CreateCollection)
	api.Post("/collection/list_multi/", s.ListCollections)
	api.Get("/collection/:collection_uid/", s.GetCollection)
	api.Get("/collection/:collection_uid/item/", s.ListItems)
	api.Post("/collection/:collection_uid/item/batch/", s.BatchPutItems)
	api.Get("/collection/:collection_uid/member/", s.ListMembers)
	api.Post("/collection/:collection_uid/member/leave/", s.LeaveCollection)
	api.Patch("/collection/:collection_uid/member/:username/", s.PatchMember)
	api.Delete("/collection/:collection_uid/member/:username/", s.DeleteMember)
	api.Post("/invitation/outgoing/", s.CreateInvitation)
	api.Get("/invitation/outgoing/", s.ListOutgoingInvitations)
	api.Delete("/invitation/outgoing/:uid/", s.DeleteOutgoingInvitation)
	api.Get("/invitation/incoming/", s.ListIncomingInvitations)
	api.Post("/invitation/incoming/:uid/accept/", s.AcceptInvitation)
	api.Delete("/invitation/incoming/:uid/", s.DeclineInvitation)
	return app
}

func createTestUser(t *testing.T, s *Server, username string) models.User {
	t.Helper()
	user := models.User{Username: username, Email: username + "@example.com", Password: "pw"}
	require.NoError(t, s.db.Create(&user).Error)
	return user
}

func createTestCollection(t *testing.T, s *Server, ownerID uint) *models.Collection {
	t.Helper()
	col, err := s.collectionService.Create(context.Background(), ownerID, stoken.NewUID(), nil)
	require.NoError(t, err)
	return col
}

func addTestMember(t *testing.T, s *Server, colID, userID uint, level models.AccessLevel) {
	t.Helper()
	require.NoError(t, s.db.Transaction(func(tx *gorm.DB) error {
		st, err := s.ledger.Issue(tx)
		if err != nil {
			return err
		}
		return tx.Create(&models.CollectionMember{
			CollectionID: colID,
			UserID:       userID,
			AccessLevel:  level,
			StokenID:     &st.ID,
		}).Error
	}))
}

// doJSON performs a JSON request as userID and decodes the JSON response.
func doJSON(t *testing.T, app *fiber.App, method, path string, userID uint, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
