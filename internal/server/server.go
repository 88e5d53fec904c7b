// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"

	"coffer/internal/access"
	"coffer/internal/config"
	"coffer/internal/database"
	"coffer/internal/middleware"
	"coffer/internal/notifications"
	"coffer/internal/repository"
	"coffer/internal/service"
	"coffer/internal/stoken"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo       repository.UserRepository
	collectionRepo repository.CollectionRepository
	memberRepo     repository.MemberRepository
	invitationRepo repository.InvitationRepository

	ledger *stoken.Ledger
	authz  *access.Authorizer

	notifier *notifications.Notifier
	hub      *notifications.Hub
	tickets  *notifications.TicketStore

	memberService     *service.MemberService
	collectionService *service.CollectionService
	itemService       *service.ItemService
	invitationService *service.InvitationService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	prom := fiberprometheus.New("coffer")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       repository.NewUserRepository(db),
		collectionRepo: repository.NewCollectionRepository(db),
		memberRepo:     repository.NewMemberRepository(db),
		invitationRepo: repository.NewInvitationRepository(db),
		ledger:         stoken.NewLedger(),
		authz:          access.NewAuthorizer(db),
	}
	server.shutdownCtx, server.shutdownFn = context.WithCancel(context.Background())

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		server.tickets = notifications.NewTicketStore(redisClient)
	}

	server.memberService = service.NewMemberService(
		db, server.ledger, server.authz, server.collectionRepo, server.memberRepo,
		notifierOrNil(server.notifier), cfg.MaxPageSize)
	server.collectionService = service.NewCollectionService(
		db, server.ledger, server.collectionRepo, server.memberRepo, cfg.MaxPageSize)
	server.itemService = service.NewItemService(
		db, server.ledger, server.authz, server.collectionRepo,
		notifierOrNil(server.notifier), cfg.MaxPageSize)
	server.invitationService = service.NewInvitationService(
		db, server.ledger, server.authz, server.collectionRepo, server.memberRepo,
		server.invitationRepo, server.userRepo, notifierOrNil(server.notifier))

	return server, nil
}

// notifierOrNil keeps a typed-nil *Notifier out of the service interfaces.
func notifierOrNil(n *notifications.Notifier) service.SyncNotifier {
	if n == nil {
		return nil
	}
	return n
}

// StartWiring connects the hub to the Redis subscriber. Call after the
// server is constructed and before it serves traffic.
func (s *Server) StartWiring() error {
	if s.hub == nil || s.notifier == nil {
		return nil
	}
	return s.hub.StartWiring(s.shutdownCtx, s.notifier)
}

// Shutdown stops background wiring and closes every websocket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownFn()
	if s.hub != nil {
		return s.hub.Shutdown(ctx)
	}
	return nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and user ID into logs
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.RequestLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api/v1")

	// Authentication routes
	auth := api.Group("/authentication")
	auth.Post("/signup/", s.Signup)
	auth.Post("/login/", s.Login)

	protected := api.Group("", middleware.AuthRequired)

	// Collection routes
	collections := protected.Group("/collection")
	collections.Post("/", s.CreateCollection)
	collections.Post("/list_multi/", s.ListCollections)
	collections.Get("/:collection_uid/", s.GetCollection)

	// Item routes, scoped to one collection
	items := protected.Group("/collection/:collection_uid/item")
	items.Get("/", s.ListItems)
	items.Post("/batch/", s.BatchPutItems)

	// Member routes, scoped to one collection
	members := protected.Group("/collection/:collection_uid/member")
	members.Get("/", s.ListMembers)
	members.Post("/leave/", s.LeaveCollection)
	members.Patch("/:username/", s.PatchMember)
	members.Delete("/:username/", s.DeleteMember)

	// Invitation routes
	outgoing := protected.Group("/invitation/outgoing")
	outgoing.Post("/", s.CreateInvitation)
	outgoing.Get("/", s.ListOutgoingInvitations)
	outgoing.Delete("/:uid/", s.DeleteOutgoingInvitation)

	incoming := protected.Group("/invitation/incoming")
	incoming.Get("/", s.ListIncomingInvitations)
	incoming.Post("/:uid/accept/", s.AcceptInvitation)
	incoming.Delete("/:uid/", s.DeclineInvitation)

	// WebSocket sync nudges
	protected.Post("/ws/ticket/", s.IssueWSTicket)
	api.Get("/ws/:ticket", s.WebSocketUpgrade(), s.WebSocketSyncHandler())
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ReadinessCheck reports whether the server can reach its database.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(c.Context()) != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
