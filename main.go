package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apirest "github.com/gamegoo/socialgraph/api/rest"
	"github.com/gamegoo/socialgraph/api/sse"
	"github.com/gamegoo/socialgraph/audit"
	"github.com/gamegoo/socialgraph/cache"
	"github.com/gamegoo/socialgraph/config"
	dbadapter "github.com/gamegoo/socialgraph/db"
	"github.com/gamegoo/socialgraph/event"
	"github.com/gamegoo/socialgraph/metrics"
	mw "github.com/gamegoo/socialgraph/middleware"
	"github.com/gamegoo/socialgraph/model"
	"github.com/gamegoo/socialgraph/notification"
	"github.com/gamegoo/socialgraph/scheduler"
	"github.com/gamegoo/socialgraph/social"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database, logger)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	c, pubsub, err := cache.Open(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		KeyPrefix:       cfg.Cache.KeyPrefix,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Metrics ----
	if cfg.Metrics.Enabled {
		metrics.InitMetrics()
	}

	// ---- Audit ----
	auditSvc := audit.New(db, logger)

	// ---- Events ----
	notifySvc := notification.NewService(db, pubsub, logger)
	sinks := []event.Sink{notifySvc, event.NewPubSubSink(pubsub, cfg.Events.PubSubChannel)}
	if cfg.Events.NATSURL != "" {
		nc, err := event.ConnectNATS(cfg.Events.NATSURL, logger)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer nc.Close()
		sinks = append(sinks, event.NewNATSSink(nc, cfg.Events.NATSSubjectPrefix))
		logger.Info("NATS connected", zap.String("url", nc.ConnectedUrl()))
	}
	dispatcher := event.NewDispatcher(event.Options{
		QueueSize:      cfg.Events.QueueSize,
		Attempts:       cfg.Events.DeliveryAttempts,
		Backoff:        cfg.Events.DeliveryBackoff,
		EnqueueTimeout: cfg.Events.EnqueueTimeout,
	}, logger, sinks...)

	// ---- Relationship engine ----
	directory := social.NewCachedDirectory(social.NewDBDirectory(db), c, cfg.Social.MemberCacheTTL, logger)
	store := social.NewStore(db, cfg.Social.TxTimeout)
	socialSvc := social.NewService(store, directory, dispatcher, cfg.Social, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger, time.Minute)
	if cfg.Social.RequestTTL > 0 {
		sched.AddTicker("expire_friend_requests", cfg.Social.MaintenanceInterval, func(ctx context.Context) error {
			_, err := socialSvc.ExpireStaleRequests(ctx, cfg.Social.RequestTTL)
			return err
		})
	}
	sched.AddTicker("cleanup_notifications", cfg.Social.MaintenanceInterval, func(ctx context.Context) error {
		_, err := notifySvc.Cleanup(ctx, cfg.Events.NotificationTTL)
		return err
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	sseH := sse.NewHandler(pubsub, logger)
	socialH := apirest.NewSocialHandler(socialSvc, auditSvc, cfg.Social)
	notifyH := apirest.NewNotificationHandler(notifySvc)
	adminH := apirest.NewAdminHandler(socialSvc, auditSvc, sched, sseH, logger)

	api := r.Group("/api")
	{
		authed := api.Group("")
		authed.Use(mw.Auth(cfg.Security, directory))
		socialH.Register(authed)
		notifyH.Register(authed)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminH.Register(adminG)
	}

	// ---- SSE ----
	r.GET("/sse", mw.Auth(cfg.Security, directory), sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	sched.Stop()
	dispatcher.Stop()
	auditSvc.Stop(ctx)
}
