// Package gateway is the connection edge of the engine: it owns the
// WebSocket endpoint, the HTTP history and fallback-send endpoints, and
// the exactly-once disconnect cleanup for every connection.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/roomchat/modules/broadcast"
	"github.com/example/roomchat/modules/chat"
	"github.com/example/roomchat/modules/history"
	"github.com/example/roomchat/modules/identity"
	"github.com/example/roomchat/modules/storage"
)

// Config holds the gateway's runtime settings.
type Config struct {
	Addr           string
	AllowedOrigins string
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// Module implements the connection gateway on Fiber.
type Module struct {
	cfg      Config
	app      *fiber.App
	handlers *Handlers

	chatModule *chat.Module
	hub        *broadcast.Hub
	resolverFn func() *identity.Resolver
	historyFn  func() *history.Service
	repoFn     func() *storage.Repository
	logger     types.Logger
}

// NewModule creates a new gateway module. The resolver, history service
// and repository are passed lazily because all three are built during
// storage init, after module construction.
func NewModule(cfg Config, chatModule *chat.Module, hub *broadcast.Hub, resolverFn func() *identity.Resolver, historyFn func() *history.Service, repoFn func() *storage.Repository, moduleLogger types.Logger) *Module {
	return &Module{
		cfg:        cfg,
		chatModule: chatModule,
		hub:        hub,
		resolverFn: resolverFn,
		historyFn:  historyFn,
		repoFn:     repoFn,
		logger:     moduleLogger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "gateway"
}

// Start builds the Fiber app and begins serving.
func (m *Module) Start(_ context.Context) error {
	m.app = fiber.New(fiber.Config{
		AppName:               "roomchat",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))
	m.app.Use(cors.New(cors.Config{
		AllowOrigins:     m.cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization",
		AllowCredentials: true,
	}))

	m.handlers = NewHandlers(m.chatModule.Service(), m.hub, m.resolverFn(), m.historyFn(), m.repoFn())
	m.registerRoutes()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.cfg.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("Gateway started", "addr", m.cfg.Addr)
	return nil
}

// Stop gracefully shuts down the server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown gateway: %w", err)
		}
	}
	m.logger.Info("Gateway stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// registerRoutes sets up all HTTP and WebSocket routes.
func (m *Module) registerRoutes() {
	m.app.Get("/health", m.handlers.HealthCheck)

	// The handshake happens here: the credential is verified before the
	// protocol upgrade, so an unauthenticated connection never reaches
	// any other component.
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		id, err := m.handlers.authenticate(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid session",
			})
		}
		c.Locals(identityKey, id)
		return c.Next()
	})
	m.app.Get("/ws", websocket.New(m.handlers.HandleWebSocket))

	m.app.Get("/me", m.handlers.RequireAuth, m.handlers.Me)
	m.app.Get("/rooms", m.handlers.ListRooms)
	m.app.Post("/rooms", m.handlers.RequireAuth, m.handlers.CreateRoom)
	m.app.Get("/rooms/:roomId/messages", m.handlers.ListRoomMessages)
	m.app.Post("/rooms/:roomId/messages", m.handlers.RequireAuth, m.handlers.PostRoomMessage)
}

// errorHandler handles errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	m.logger.Error("HTTP error", "code", code, "message", message, "error", err)
	return c.Status(code).JSON(fiber.Map{"error": message})
}
