package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	contacthandler "contactdir/internal/contact/handler"
	contactmetrics "contactdir/internal/contact/metrics"
	contactservice "contactdir/internal/contact/service"
	contactstore "contactdir/internal/contact/store/contact"
	httpapi "contactdir/internal/http"
	"contactdir/internal/platform/config"
	"contactdir/internal/platform/httpserver"
	"contactdir/internal/platform/logger"
	platformredis "contactdir/internal/platform/redis"
	cachehandler "contactdir/internal/searchcache/handler"
	cacheservice "contactdir/internal/searchcache/service"
	searchstore "contactdir/internal/searchcache/store/search"
	taghandler "contactdir/internal/tag/handler"
	tagservice "contactdir/internal/tag/service"
	tagstore "contactdir/internal/tag/store/tag"
)

// main wires stores, services, and handlers, then runs the HTTP server
// until a shutdown signal arrives. Business logic lives in the internal
// service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var (
		db       *sql.DB
		contacts contactservice.ContactStore
		searches cacheservice.SearchStore
		tags     tagservice.TagStore
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open postgres failed", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		contacts = contactstore.NewPostgres(db)
		searches = searchstore.NewPostgres(db)
		tags = tagstore.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		contacts = contactstore.NewInMemory()
		searches = searchstore.NewInMemory()
		tags = tagstore.NewInMemory()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}

	m := contactmetrics.New()

	tagSvc := tagservice.New(tags, tagservice.WithLogger(log))
	contactSvc := contactservice.New(contacts,
		contactservice.WithLogger(log),
		contactservice.WithTagger(tagSvc),
		contactservice.WithMetrics(m),
	)
	cacheSvc := cacheservice.New(searches, contactSvc,
		cacheservice.WithLogger(log),
		cacheservice.WithCountCache(redisClient, cfg.Redis.CountTTL),
	)

	router := httpapi.New(httpapi.Deps{
		Logger:   log,
		Contacts: contacthandler.New(contactSvc, log, m, cfg.DefaultPageSize),
		Caches:   cachehandler.New(cacheSvc, log, cfg.DefaultPageSize),
		Tags:     taghandler.New(tagSvc, log),
		DB:       db,
		Redis:    redisClient,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting contactdir", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if db != nil {
		_ = db.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
