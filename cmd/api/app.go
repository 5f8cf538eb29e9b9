package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-foodorder/internal/auth"
	"github.com/imrishuroy/go-foodorder/internal/aws"
	"github.com/imrishuroy/go-foodorder/internal/cart"
	"github.com/imrishuroy/go-foodorder/internal/catalog"
	"github.com/imrishuroy/go-foodorder/internal/config"
	"github.com/imrishuroy/go-foodorder/internal/database"
	"github.com/imrishuroy/go-foodorder/internal/handlers"
	"github.com/imrishuroy/go-foodorder/internal/idempotency"
	"github.com/imrishuroy/go-foodorder/internal/logging"
	"github.com/imrishuroy/go-foodorder/internal/metrics"
	"github.com/imrishuroy/go-foodorder/internal/notify"
	"github.com/imrishuroy/go-foodorder/internal/orders"
	"github.com/imrishuroy/go-foodorder/internal/payment"
	"github.com/imrishuroy/go-foodorder/internal/users"
	"github.com/imrishuroy/go-foodorder/internal/validation"
)

// app is the fully wired API process.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *gorm.DB
	idem   *idempotency.Store
	hub    *notify.Hub
	router *gin.Engine
}

func models() []any {
	return []any{
		&users.User{},
		&auth.Challenge{},
		&catalog.Category{},
		&catalog.Dish{},
		&cart.Item{},
		&orders.Order{},
		&orders.OrderItem{},
		&idempotency.Record{},
		&payment.Transaction{},
	}
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, models()...); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	var clients *aws.Clients
	if cfg.AWSEnabled() {
		clients, err = aws.NewClients(ctx, cfg.AWS.Region)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("init aws clients: %w", err)
		}
	}

	userStore := users.NewStore(db)
	catalogStore := catalog.NewStore(db)
	cartStore := cart.NewStore(db)
	idem := idempotency.NewStore(db, cfg.Orders.IdempotencyTTL)
	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL)

	var challenges auth.ChallengeStore = auth.NewSQLChallengeStore(db)
	if cfg.AWS.ResetChallengeTable != "" {
		challenges = auth.NewDynamoChallengeStore(clients.DynamoDB, cfg.AWS.ResetChallengeTable)
	}
	var mailer auth.Mailer = notify.NewLogMailer(log)
	if cfg.Mail.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
	}
	authSvc := auth.NewService(userStore, tokens, challenges, mailer, log)

	hub := notify.NewHub(cfg.Server.AllowedOrigins, log)
	fanout := notify.Multi{hub}
	if cfg.AWS.OrderEventsQueueURL != "" {
		pub := aws.NewPublisher(clients.SQS, cfg.AWS.OrderEventsQueueURL)
		fanout = append(fanout, notify.NewQueueNotifier(pub, userStore, log))
	}
	manager := orders.NewManager(orders.NewStore(db, idem), idem, catalogStore, cartStore, fanout, log)

	var reconciler *payment.Reconciler
	if cfg.PaymentsEnabled() {
		var recorder payment.Metrics = metrics.Nop{}
		if cfg.AWS.MetricsNamespace != "" {
			recorder = metrics.NewRecorder(clients.CloudWatch, cfg.AWS.MetricsNamespace, log)
		}
		gateway := payment.NewGateway(payment.Config{
			TmnCode:    cfg.VNPay.TmnCode,
			HashSecret: cfg.VNPay.HashSecret,
			PayURL:     cfg.VNPay.PayURL,
			APIURL:     cfg.VNPay.APIURL,
			ReturnURL:  cfg.VNPay.ReturnURL,
			Timeout:    cfg.VNPay.Timeout,
		}, nil)
		reconciler = payment.NewReconciler(gateway, payment.NewStore(db), manager, recorder, log)
	} else {
		log.Warn("VNPay is not configured, payment routes are disabled")
	}

	if cfg.Admin.Username != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Email); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	r := setupRouter(cfg, log, handlers.Deps{
		Log:         log,
		Validate:    validation.New(),
		Tokens:      tokens,
		Auth:        authSvc,
		Users:       userStore,
		Catalog:     catalogStore,
		Cart:        cartStore,
		Orders:      manager,
		Idempotency: idem,
		Payments:    reconciler,
		Hub:         hub,
	})
	return &app{cfg: cfg, log: log, db: db, idem: idem, hub: hub, router: r}, nil
}

func setupRouter(cfg *config.Config, log *slog.Logger, deps handlers.Deps) *gin.Engine {
	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(log))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "token", handlers.IdempotencyKeyHeader, logging.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Location", logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.Server.AllowedOrigins) == 0 || slices.Contains(cfg.Server.AllowedOrigins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.Server.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	handlers.Register(r, deps)
	return r
}

// janitor drops expired idempotency records until ctx is done.
func (a *app) janitor(ctx context.Context) {
	every := a.cfg.Orders.PurgeInterval
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.idem.PurgeExpired(ctx)
			if err != nil {
				a.log.Warn("purge idempotency records failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				a.log.Info("purged idempotency records", slog.Int64("count", n))
			}
		}
	}
}

func (a *app) close() {
	a.hub.Close()
	if err := database.Close(a.db); err != nil {
		a.log.Warn("close database failed", slog.Any("error", err))
	}
}
