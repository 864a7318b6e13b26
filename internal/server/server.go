// Package server contains HTTP and WebSocket handlers for the room API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parlor/internal/cache"
	"parlor/internal/config"
	"parlor/internal/database"
	"parlor/internal/middleware"
	"parlor/internal/notifications"
	"parlor/internal/repository"
	"parlor/internal/rtctoken"
	"parlor/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client

	roomSvc     *service.RoomService
	seatSvc     *service.SeatService
	presenceSvc *service.PresenceService
	modSvc      *service.ModerationService
	issuer      *rtctoken.Issuer

	hub      *notifications.RoomHub
	notifier *notifications.Notifier
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	middleware.InitMiddleware(cfg)

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	roomRepo := repository.NewRoomRepository(db)
	seatRepo := repository.NewSeatRepository(db)
	reqRepo := repository.NewSeatRequestRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	modRepo := repository.NewModerationRepository(db)

	issuer := rtctoken.NewIssuer(cfg)

	server := &Server{
		config:      cfg,
		db:          db,
		redis:       redisClient,
		roomSvc:     service.NewRoomService(roomRepo, issuer),
		seatSvc:     service.NewSeatService(roomRepo, seatRepo, reqRepo, db),
		presenceSvc: service.NewPresenceService(roomRepo, participantRepo),
		modSvc:      service.NewModerationService(roomRepo, modRepo, seatRepo, participantRepo, db, issuer),
		issuer:      issuer,
		hub:         notifications.NewRoomHub(),
	}

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}

	return server, nil
}

// StartRealtime wires the hub to Redis pub/sub so events published by other
// instances reach locally connected sockets.
func (s *Server) StartRealtime(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	return s.hub.StartWiring(ctx, s.notifier)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(requestid.New())
	app.Use(middleware.StructuredLogger())

	// Global rate limiting (120 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/", s.HealthCheck)

	rooms := api.Group("/rooms", middleware.AuthRequired)
	rooms.Post("/", s.CreateRoom)
	rooms.Get("/", s.ListRooms)
	rooms.Get("/:id", s.GetRoom)
	rooms.Post("/:id/end", s.EndRoom)
	rooms.Post("/:id/join", s.JoinRoom)
	rooms.Post("/:id/leave", s.LeaveRoom)
	rooms.Post("/:id/token", s.RefreshToken)

	rooms.Post("/:id/seat-requests", s.RequestSeat)
	rooms.Get("/:id/seat-requests", s.ListSeatRequests)
	rooms.Post("/seat-requests/:requestId/resolve", s.ResolveSeatRequest)
	rooms.Post("/:id/seats/leave", s.LeaveSeat)
	rooms.Post("/:id/seats/mic", s.ToggleMic)
	rooms.Post("/:id/seats/mute-all", s.MuteAll)
	rooms.Post("/:id/seats/:index/lock", s.LockSeat)
	rooms.Post("/:id/seats/:index/kick", s.KickSeat)

	rooms.Post("/:id/bans", s.BanUser)
	rooms.Get("/:id/bans", s.ListBans)
	rooms.Delete("/:id/bans/:userId", s.UnbanUser)
	rooms.Post("/:id/kicks", s.KickUser)

	// WebSocket endpoint for the realtime event channel
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/rooms/:id", s.WebSocketRoomHandler())
}

// Shutdown releases server resources after the HTTP listener has stopped.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.WarnContext(ctx, "error closing redis client", "error", err)
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			return fmt.Errorf("closing sql DB: %w", cerr)
		}
	}
	return nil
}

// HealthCheck reports basic service health.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
