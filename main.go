package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/roomchat/modules/broadcast"
	"github.com/example/roomchat/modules/cache"
	"github.com/example/roomchat/modules/chat"
	"github.com/example/roomchat/modules/gateway"
	"github.com/example/roomchat/modules/history"
	"github.com/example/roomchat/modules/identity"
	"github.com/example/roomchat/modules/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	dbPath := envOr("DATABASE_PATH", "roomchat.db")
	jwtSecret := envOr("JWT_SECRET", "dev-secret-change-me")
	redisAddr := os.Getenv("REDIS_ADDR")
	addr := ":" + envOr("PORT", "3000")
	origins := envOr("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	storageModule := storage.NewModule(dbPath)
	broadcastModule := broadcast.NewModule()
	chatModule := chat.NewModule(storageModule)

	// The cache is optional: without Redis the history service reads
	// names straight from storage.
	var cacheModule *cache.Module
	if redisAddr != "" {
		cacheModule = cache.NewModule(redisAddr)
	}

	gatewayModule := gateway.NewModule(
		gateway.Config{Addr: addr, AllowedOrigins: origins},
		chatModule,
		broadcastModule.GetHub(),
		func() *identity.Resolver {
			return identity.NewResolver(jwtSecret, storageModule.Repository())
		},
		func() *history.Service {
			var names history.NameCache
			if cacheModule != nil {
				names = cacheModule.Names()
			}
			return history.NewService(storageModule.Repository(), names)
		},
		storageModule.Repository,
		app.Logger(),
	)

	// Order matters: storage must init before the modules built on its
	// repository.
	app.Register(storageModule)
	if cacheModule != nil {
		app.Register(cacheModule)
	}
	app.Register(chatModule)
	app.Register(broadcastModule)
	app.Register(gatewayModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := seedLobby(storageModule.Repository()); err != nil {
		log.Fatalf("Failed to seed lobby room: %v", err)
	}

	log.Printf("roomchat listening on %s (ws: /ws)", addr)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// seedLobby creates the default public room on first boot so a fresh
// install has somewhere to chat.
func seedLobby(repo *storage.Repository) error {
	ctx := context.Background()
	rooms, err := repo.ListRooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) > 0 {
		return nil
	}
	room, err := repo.CreateRoom(ctx, "Lobby", false)
	if err != nil {
		return err
	}
	log.Printf("Seeded lobby room %s", room.ID)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
