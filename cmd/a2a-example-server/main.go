// Command a2a-example-server runs a ScenarioExecutor-backed A2A agent,
// grounded on the teacher's server/cmd/a2a-example-server/main.go
// (flag-configured listen address, zap production logging, SIGINT/SIGTERM
// graceful shutdown with a grace-period timer).
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gate4ai/a2a"
	"github.com/gate4ai/a2a/config"
	"github.com/gate4ai/a2a/executor"
	"github.com/gate4ai/a2a/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := loggerConfig.Build()
	defer logger.Sync()

	listenAddr := flag.String("listen", ":41241", "address and port to listen on")
	flag.Parse()

	cfg := config.NewInternalConfig()
	cfg.LogLevelValue = "debug"
	cfg.CardBase.Name = "Scenario Example Agent"
	cfg.CardBase.Description = "Demo A2A agent that echoes messages or streams an artifact when asked to."
	cfg.CardBase.Version = "0.1.0"
	cfg.CardBase.Skills = []a2a.AgentSkill{
		{ID: "echo", Name: "Echo", Description: "Replies with a single message."},
		{ID: "stream", Name: "Stream", Description: "Streams a multi-chunk artifact before completing."},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting A2A example server", zap.String("address", *listenAddr))

	srv, err := server.New(logger).Build(cfg, executor.ScenarioExecutor{},
		server.WithListenAddr(*listenAddr),
		server.WithStreaming(),
		server.WithPushNotifications(5),
		server.WithStateTransitionHistory(),
	)
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}

	errChan, err := srv.Start(ctx)
	if err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listener error", zap.Error(err))
		} else {
			logger.Info("server listener closed gracefully")
		}
	case <-ctx.Done():
		logger.Info("server context cancelled externally")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown finished with errors", zap.Error(err))
	}
	cancel()

	logger.Info("server stopped")
}
