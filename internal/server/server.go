package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bazaar-market/apiserver/config"
	"github.com/bazaar-market/apiserver/internal/db"
	"github.com/bazaar-market/apiserver/internal/feed"
	"github.com/bazaar-market/apiserver/internal/handlers"
	"github.com/bazaar-market/apiserver/internal/mq"
	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/bazaar-market/apiserver/internal/storage"
	"github.com/bazaar-market/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	hub        *feed.Hub
	stopFeed   context.CancelFunc
	feedDone   chan struct{}
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	profileRepo := store.NewProfileRepository(dbConn)
	listingRepo := store.NewListingRepository(dbConn)
	messageRepo := store.NewMessageRepository(dbConn)
	offerRepo := store.NewOfferRepository(dbConn)
	savedRepo := store.NewSavedListingRepository(dbConn)
	reportRepo := store.NewReportRepository(dbConn)

	events := feed.NewPublisher(queue, cfg.MQ.FeedChannel)
	hub := feed.NewHub(queue, cfg.MQ.FeedChannel)

	userService := services.NewUserService(userRepo)
	profileService := services.NewProfileService(profileRepo, objects)
	listingService := services.NewListingService(listingRepo, profileRepo, objects)
	messageService := services.NewMessageService(messageRepo, profileRepo, events)
	offerService := services.NewOfferService(offerRepo, listingRepo, profileRepo, events)
	savedService := services.NewSavedService(savedRepo, listingRepo)
	reportService := services.NewReportService(reportRepo, listingRepo, profileRepo)

	authMiddleware := handlers.RequireAuth(cfg.JWTSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	router.Get("/healthz", handlers.Healthz)
	// The feed is long-lived and must not inherit the request timeout.
	router.Method(http.MethodGet, "/feed", handlers.NewFeedHandler(hub, messageService, cfg.JWTSecret))

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, profileService, cfg.JWTSecret)
		})
		r.Route("/profiles", func(r chi.Router) {
			handlers.ProfileRouter(r, profileService, authMiddleware)
		})
		r.Route("/listings", func(r chi.Router) {
			handlers.ListingRouter(r, listingService, offerService, savedService, reportService, authMiddleware)
		})
		r.Route("/offers", func(r chi.Router) {
			handlers.OfferRouter(r, offerService, authMiddleware)
		})
		r.Route("/saved", func(r chi.Router) {
			handlers.SavedRouter(r, savedService, authMiddleware)
		})
		r.Route("/reports", func(r chi.Router) {
			handlers.ReportRouter(r, reportService, profileService, authMiddleware)
		})
		handlers.MessageRouter(r, messageService, authMiddleware)
	})

	feedCtx, stopFeed := context.WithCancel(context.Background())
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if err := hub.Run(feedCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("feed: subscription ended: %v", err)
		}
	}()

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         queue,
		hub:        hub,
		stopFeed:   stopFeed,
		feedDone:   feedDone,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, closes live feed connections and
// releases the broker and database. Feed sessions are ended first because
// http.Server.Shutdown does not track hijacked connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	err := s.httpServer.Shutdown(ctx)
	if s.stopFeed != nil {
		s.stopFeed()
		select {
		case <-s.feedDone:
		case <-ctx.Done():
		}
	}
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
