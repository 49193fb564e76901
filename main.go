package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/room-chat-broker/config"
	"github.com/example/room-chat-broker/modules/activity"
	"github.com/example/room-chat-broker/modules/api"
	"github.com/example/room-chat-broker/modules/broadcast"
	"github.com/example/room-chat-broker/modules/chat"
	"github.com/example/room-chat-broker/ratelimit"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Room Chat Broker - Fiber WebSocket + EventBus ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logLevel := mono.LogLevelInfo
	if cfg.LogLevel == config.LogLevelError {
		logLevel = mono.LogLevelError
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	limiter, err := ratelimit.New(ctx, ratelimit.Config{
		Limit:         cfg.RateLimit,
		Window:        cfg.RateWindow,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		KeyPrefix:     ratelimit.DefaultConfig().KeyPrefix,
	})
	cancel()
	if err != nil {
		log.Fatalf("Failed to create rate limiter: %v", err)
	}

	// Create modules
	broadcastModule := broadcast.NewModule(logger)
	chatModule, err := chat.NewModule(broadcastModule.Hub(), logger, chat.WithHistoryLimit(cfg.HistoryLimit))
	if err != nil {
		log.Fatalf("Failed to create chat module: %v", err)
	}
	activityModule := activity.NewModule(logger)
	apiModule := api.NewModule(api.Config{
		Addr:       cfg.Addr(),
		CORSOrigin: cfg.CORSOrigin,
		Client: broadcast.ClientConfig{
			SendQueueSize:  cfg.SendQueueSize,
			MaxMessageSize: cfg.MaxMessageSize,
			IdleTimeout:    cfg.IdleTimeout,
		},
	}, logger)

	// The broker and hub are shared in-process; they are not exposed via
	// ServiceContainer.
	apiModule.SetBroker(chatModule.Broker())
	apiModule.SetHub(broadcastModule.Hub())
	apiModule.SetLimiter(limiter)

	// Register modules with the framework.
	// - broadcast: connection hub (send queues and write pumps)
	// - chat: room registry and broker (ServiceProviderModule + EventEmitterModule)
	// - activity: per-room counters (EventConsumerModule)
	// - api: Fiber HTTP/WebSocket server, depends on chat and activity
	app.Register(broadcastModule)
	app.Register(chatModule)
	app.Register(activityModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
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

func printStartupInfo(cfg config.Config) {
	limiter := "disabled"
	switch {
	case cfg.RateLimit > 0 && cfg.RedisAddr != "":
		limiter = "redis " + cfg.RedisAddr
	case cfg.RateLimit > 0:
		limiter = "in-memory"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - Listening on: %s", cfg.Addr())
	log.Printf("  - CORS origin: %s", cfg.CORSOrigin)
	log.Printf("  - Rate limit: %d events per %s (%s)", cfg.RateLimit, cfg.RateWindow, limiter)
	if cfg.HistoryLimit > 0 {
		log.Printf("  - History: last %d messages per room", cfg.HistoryLimit)
	} else {
		log.Println("  - History: unbounded")
	}
	log.Println("")
	log.Printf("REST API Endpoints (http://%s):", cfg.Addr())
	log.Println("  GET    /                          - Liveness text")
	log.Println("  GET    /health                    - Health check")
	log.Println("  GET    /api/v1/rooms              - List all rooms")
	log.Println("  POST   /api/v1/rooms              - Create a new room")
	log.Println("  GET    /api/v1/rooms/:id          - Get room details")
	log.Println("  GET    /api/v1/rooms/:id/history  - Get message history")
	log.Println("  GET    /api/v1/activity           - Per-room activity counters")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://%s/ws):", cfg.Addr())
	log.Println("  Client events: CREATE_ROOM, JOIN_ROOM, SEND_ROOM_MESSAGE")
	log.Println("  Server events: ROOMS, JOINED_ROOM, ROOM_MESSAGE, ERROR")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
