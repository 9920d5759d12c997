package server

import (
	"fmt"
	"net/http"
	"time"

	"heritage-atlas/internal/cache"
	"heritage-atlas/internal/config"
	"heritage-atlas/internal/database"
	custommiddleware "heritage-atlas/internal/middleware"
	"heritage-atlas/internal/repository"
	"heritage-atlas/internal/service"
	"heritage-atlas/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	db          *database.Service
	cache       cache.Cache
	redisClient *redis.Client
}

// NewServer wires the verification API. redisClient may be nil, in which
// case the verify endpoint is not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Service, c cache.Cache, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(custommiddleware.TrustedRealIP(custommiddleware.ParseTrustedProxies(cfg.Server.TrustedProxies, logger)))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "healthy" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	productRepo := repository.NewProductRepository(db.DB())

	verificationService := service.NewVerificationService(productRepo, c, cfg.Cache.TTL, logger)
	productService := service.NewProductService(productRepo, verificationService)

	productHandler := transport.NewProductHandler(verificationService, productService, logger)
	catalogueHandler := transport.NewCatalogueHandler(
		service.NewCatalogueService(repository.NewCatalogueRepository(db.DB())),
		logger,
	)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	var verifyLimiter func(http.Handler) http.Handler
	if redisClient != nil {
		verifyLimiter = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "verify_rate_limit",
		}, logger)
	}

	transport.RegisterRootRoutes(router)
	productHandler.RegisterRoutes(router, authMiddleware, adminMiddleware, verifyLimiter)
	catalogueHandler.RegisterRoutes(router)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:      cfg,
		logger:      logger,
		db:          db,
		cache:       c,
		redisClient: redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Stops the in-memory janitor; the redis cache shares redisClient.
	if closer, ok := s.cache.(interface{ Close() }); ok {
		closer.Close()
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
