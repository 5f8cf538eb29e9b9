package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"github.com/imrishuroy/go-foodorder/internal/config"
	"github.com/imrishuroy/go-foodorder/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger := logging.New("foodorder-api", cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.close()

	// if RUN_LOCAL is "true", serve HTTP directly for development.
	if cfg.Server.RunLocal {
		if err := a.serve(ctx); err != nil {
			logger.Error("server stopped", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(a.router)
	lambda.StartWithOptions(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}, lambda.WithEnableSIGTERM(a.close))
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      a.router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	go a.janitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("running local server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.hub.Close()
	return srv.Shutdown(shutdownCtx)
}
