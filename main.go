package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tobbedansen/config"
	"tobbedansen/db"
	"tobbedansen/intake"
	"tobbedansen/middlewares"
	"tobbedansen/models"
	"tobbedansen/routes"
	"tobbedansen/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sqldb, err := db.Open(bootCtx, cfg.PGDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer sqldb.Close()
	if err := db.CreateTables(bootCtx, sqldb); err != nil {
		log.Fatal(err)
	}

	// Mongo
	mg, err := mongo.Connect(bootCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("mongo.Connect error:", err)
	}
	if err := mg.Ping(bootCtx, nil); err != nil {
		log.Fatal("Mongo ping error:", err)
	}
	defer func() { _ = mg.Disconnect(context.Background()) }()
	submissions := mg.Database(cfg.MongoDatabase).Collection("submissions")

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	events := models.NewSQLEventRepository(sqldb, cfg.StoreTimeout)
	admins := models.NewSQLAdminRepository(sqldb, cfg.StoreTimeout)
	if cfg.BootstrapAdmin() {
		if err := admins.Ensure(bootCtx, &models.Admin{Email: cfg.AdminEmail, Password: cfg.AdminPassword}); err != nil {
			log.Fatal("ensure admin:", err)
		}
	}

	unset := models.UnsetStartClosed
	if cfg.UnsetStartPolicy == "open" {
		unset = models.UnsetStartOpen
	}
	svc := intake.NewService(
		intake.NewGate(events, unset, nil),
		models.NewSQLRegistrationRepository(sqldb, cfg.StoreTimeout),
		models.NewMongoSubmissionJournal(submissions, cfg.StoreTimeout),
	)

	// Gin + middlewares
	server := gin.Default()
	server.Use(middlewares.ResponseCache(rdb, cfg.CacheTTL))

	stopLimiters := routes.RegisterRoutes(server, routes.Deps{
		Events:      events,
		VesselTypes: models.NewSQLVesselTypeRepository(sqldb, cfg.StoreTimeout),
		Admins:      admins,
		Intake:      svc,
		Tokens:      utils.NewTokens(cfg.JWTSecret, 2*time.Hour),
		Invalidator: utils.NewCacheInvalidator(rdb),
		Location:    loc,
	}, rdb, routes.DefaultLimits(cfg.SubmissionQuota))
	defer stopLimiters()

	srv := &http.Server{Addr: cfg.Addr, Handler: server, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen error:", err)
		}
	}()
	log.Printf("listening on %s", cfg.Addr)

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
