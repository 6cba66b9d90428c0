package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"compraprogramada/internal/auth"
	"compraprogramada/internal/config"
	cronrunner "compraprogramada/internal/cron"
	"compraprogramada/internal/db"
	"compraprogramada/internal/fiscal"
	"compraprogramada/internal/handler"
	"compraprogramada/internal/logger"
	"compraprogramada/internal/quote"
	gormrepository "compraprogramada/internal/repository/gorm"
	"compraprogramada/internal/service"

	_ "compraprogramada/docs"
)

func main() {
	cfgPath := os.Getenv("CP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CP_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	clock := service.SystemClock{}
	settingsSvc := &service.SystemSettingsService{Repo: store, Clock: clock}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	quotes := &quote.CotahistProvider{Dir: cfg.Quotes.Dir, Logger: logger.Named("quotes")}

	// Fiscal events go to the redis stream when enabled; otherwise the
	// audit table is the only record. The websocket hub only observes.
	var stream *fiscal.RedisStreamPublisher
	fanout := &fiscal.Fanout{Logger: logger}
	if cfg.Fiscal.Enabled {
		stream = fiscal.NewRedisStreamPublisher(&redis.Options{
			Addr:     cfg.Fiscal.Redis.Addr,
			Password: cfg.Fiscal.Redis.Password,
			DB:       cfg.Fiscal.Redis.DB,
		}, cfg.Fiscal.Stream, cfg.Fiscal.MaxLen, cfg.Fiscal.Redis.WriteTimeout)
		defer stream.Close()
		fanout.Primary = stream
	} else {
		fanout.Primary = fiscal.LogPublisher{Logger: logger.Named("fiscal")}
	}
	var hub *fiscal.Hub
	if cfg.Fiscal.Websocket {
		hub = fiscal.NewHub(logger.Named("fiscal-stream"))
		fanout.Observers = append(fanout.Observers, hub)
	}
	emitter := &service.FiscalEmitter{Repo: store, Publisher: fanout, Logger: logger}

	rebalanceSvc := &service.RebalanceService{
		Repo:             store,
		Quotes:           quotes,
		Fiscal:           emitter,
		Clock:            clock,
		Logger:           logger,
		DefaultThreshold: decimal.NewFromFloat(cfg.Engine.DeviationThreshold),
	}
	purchaseSvc := &service.PurchaseService{
		Repo:   store,
		Quotes: quotes,
		Fiscal: emitter,
		Clock:  clock,
		Logger: logger,
	}
	basketSvc := &service.BasketService{
		Repo:      store,
		Quotes:    quotes,
		Fiscal:    emitter,
		Rebalance: rebalanceSvc,
		Clock:     clock,
		Logger:    logger,
	}
	clientSvc := &service.ClientService{Repo: store, Quotes: quotes, Clock: clock, Logger: logger}
	custodySvc := &service.CustodyService{Repo: store, Quotes: quotes, Clock: clock, Logger: logger}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	engine.Use(handler.RequestIDMiddleware())

	if cfg.Auth.Disabled {
		logger.Warn("auth disabled; every /api route is open")
	} else if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret is required unless auth.disabled is set")
	}
	engine.Use(auth.RequireBearerMiddleware(auth.JWT{Secret: []byte(cfg.Auth.JWTSecret)}, cfg.Auth.Disabled))
	engine.Use(handler.WriteAuditMiddleware(logger.Named("http")))

	healthHandler := &handler.HealthHandler{DB: dbConn}
	if stream != nil {
		healthHandler.Stream = stream
	}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)

	adminHandler := &handler.AdminHandler{Baskets: basketSvc, Custody: custodySvc, Repo: store, Logger: logger}
	adminHandler.Register(engine)
	clientHandler := &handler.ClientHandler{Service: clientSvc, Logger: logger}
	clientHandler.Register(engine)
	motorHandler := &handler.MotorHandler{Purchases: purchaseSvc, Rebalance: rebalanceSvc, Logger: logger}
	motorHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Settings: settingsSvc, Logger: logger}
	settingsHandler.Register(engine)
	fiscalHandler := &handler.FiscalStreamHandler{Hub: hub, Settings: settingsSvc, Enabled: cfg.Fiscal.Websocket, Logger: logger}
	fiscalHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := &service.PurchaseScheduler{
		Purchases:      purchaseSvc,
		Flags:          settingsSvc,
		Clock:          clock,
		Logger:         logger.Named("scheduler"),
		AttemptTimeout: cfg.Engine.AttemptTimeout,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		id, err := cronRunner.Add("purchase-engine", cfg.Cron.PurchaseEngine, scheduler.RunOnce)
		if err != nil {
			logger.Fatal("register purchase engine failed", zap.Error(err), zap.String("spec", cfg.Cron.PurchaseEngine))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
		logger.Info("purchase engine scheduled", zap.Time("next", cronRunner.Next(id)))

		if cfg.Cron.RunOnStart {
			go scheduler.RunOnce(ctx)
		}
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
