package main

import (
	"log/slog"

	"github.com/coffersTech/jsonsink/sdks/go/jsonsink"
)

func main() {
	opts := jsonsink.Options{
		ServerURL: "http://localhost:5000",
		Service:   "go-example-service",
	}
	handler := jsonsink.NewHandler(opts)
	defer handler.Shutdown()
	logger := slog.New(handler)

	logger.Info("Hello from Go SDK", "user_id", 42, "status", "active")
	logger.Warn("This is a warning", "retry_count", 3)
	logger.Error("Something went wrong", "error", "connection refused")
}
