package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/blindlog/blindlog/internal/auth/app"
	"github.com/blindlog/blindlog/internal/platform/otel"
)

func main() {
	log.SetPrefix("[AUTH] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := otel.Setup(ctx, "auth")
	if err != nil {
		log.Printf("otel setup: %v", err)
	} else {
		defer func() {
			if err := otelShutdown(context.Background()); err != nil {
				log.Printf("otel shutdown: %v", err)
			}
		}()
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
