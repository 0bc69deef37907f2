package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"roomcast/internal/app"
	"roomcast/pkg/logger"
)

func main() {
	cfg := app.Load()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server listen address")
	flag.StringVar(&cfg.Path, "path", cfg.Path, "websocket endpoint path")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite history path (empty disables history)")
	flag.DurationVar(&cfg.TypingTTL, "typing-ttl", cfg.TypingTTL, "typing indicator expiry")
	flag.DurationVar(&cfg.RoomGrace, "room-grace", cfg.RoomGrace, "empty room grace period")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		logger.Fatal("start server: %v", err)
	}
	if err := handle.Wait(); err != nil {
		logger.Fatal("server error: %v", err)
	}
}
