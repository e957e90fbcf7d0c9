package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/politicas-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(":" + a.Cfg.Port) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			a.Log.Error("Server failed", "error", err)
			a.Close()
			os.Exit(1)
		}
	case s := <-sig:
		a.Log.Info("Shutting down", "signal", s.String())
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			a.Log.Warn("Graceful shutdown failed", "error", err)
		}
	}
}
