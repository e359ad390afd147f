// Command vertexlb runs the OpenAI-compatible load-balancing proxy in
// front of a pool of Vertex AI projects (§6.4), following the teacher's
// main.go pattern: flag parsing, DI container construction, graceful
// shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/infrastructure/di"
)

func main() {
	debugMode := flag.Bool("debug", false, "Enable debug logging to stdout")
	flag.Parse()

	var opts []di.ContainerOption
	if *debugMode {
		opts = append(opts, di.WithDebugMode(true))
	}

	container, err := di.NewContainer(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer container.DB().Close()

	logger := container.Logger()
	server := &http.Server{
		Addr:    container.Config().Dispatch.ListenAddress,
		Handler: container.Router(),
	}

	ctx := context.Background()
	go func() {
		logger.Info(ctx, "starting dispatch proxy", domain.NewField("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "server error", domain.NewField("error", err.Error()))
			os.Exit(1)
		}
	}()

	waitForShutdown(server, logger)
}

// waitForShutdown blocks until SIGINT/SIGTERM, then drains in-flight
// requests before returning.
func waitForShutdown(server *http.Server, logger domain.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx := context.Background()
	logger.Info(ctx, "shutting down dispatch proxy")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "error during shutdown", domain.NewField("error", err.Error()))
	}
}
