package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"smarthub-backend/internal/admins"
	"smarthub-backend/internal/auth"
	"smarthub-backend/internal/cache"
	"smarthub-backend/internal/config"
	"smarthub-backend/internal/db"
	"smarthub-backend/internal/handlers"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/models"
	"smarthub-backend/internal/notifications"
	"smarthub-backend/internal/profile"
	"smarthub-backend/internal/projects"
	"smarthub-backend/internal/requests"
	"smarthub-backend/internal/services"
	"smarthub-backend/internal/uploads"
	"smarthub-backend/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected", slog.String("database", cfg.MongoDB))
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisCache.Close()
		logger.Info("redis connected")
		cacheStore = redisCache
	}
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	storage, err := uploads.NewStorage(cfg)
	if err != nil {
		logger.Error("upload storage failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("upload storage ready", slog.String("mode", storage.Mode()))

	mailer := notifications.NewMailerFromConfig(cfg, logger)
	openCtx, openCancel := context.WithTimeout(context.Background(), 30*time.Second)
	mailer.Open(openCtx)
	openCancel()

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL, "smarthub-backend")
	pinger := db.NewPinger(client)
	val := validation.New()

	server := &handlers.Server{
		Cfg:      cfg,
		Contacts: handlers.NewContactStore(cols.ContactMessages),
		Pinger:   pinger,
		Val:      val,
		Log:      logger,
		Cache:    cacheStore,
		Mailer:   mailer,
	}

	adminService := admins.NewService(admins.NewRepository(cols.Admins), tokens, pinger, admins.SetupDefaults{
		Email:    cfg.SetupAdminEmail,
		Password: cfg.SetupAdminPassword,
	}, cfg.Timezone)
	adminHandler := admins.NewHandler(adminService, val, logger)

	projectService := projects.NewService(projects.NewRepository(cols.Projects), cfg.Timezone)
	projectHandler := projects.NewHandler(projectService, storage, cfg.MaxUploadBytes, cacheStore, cacheTTL, val, logger)

	serviceManager := services.NewManager(services.NewRepository(cols.Services), cfg.Timezone)
	serviceHandler := services.NewHandler(serviceManager, cacheStore, cacheTTL, val, logger)

	profileService := profile.NewService(profile.NewRepository(cols.Profiles), cfg.Timezone)
	profileHandler := profile.NewHandler(profileService, cfg.MaxUploadBytes, cacheStore, cacheTTL, val, logger)

	requestService := requests.NewService(requests.NewRepository(cols.ServiceRequests), cfg.Timezone, requests.NewMailNotifier(mailer, logger))
	requestHandler := requests.NewHandler(requestService, cfg.MaxUploadBytes, val, logger)

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	contactLimiter := middleware.NewRateLimiter(cfg.RateLimitContact, window)
	requestsLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, window)
	loginLimiter := middleware.NewRateLimiter(cfg.RateLimitLogin, window)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigins))
	r.NotFound(middleware.NotFound)
	r.MethodNotAllowed(middleware.MethodNotAllowed)

	if cfg.UploadMode == config.UploadModeDisk {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	requireToken := middleware.RequireAuth(tokens)
	requireActive := middleware.RequireActive(adminService.ActiveRole)
	requireAdmin := func(next http.Handler) http.Handler {
		return requireToken(requireActive(next))
	}

	r.Route("/api", func(api chi.Router) {
		// status updates wait on a synchronous email, so they get a longer budget
		api.With(requireAdmin, chiMiddleware.Timeout(90*time.Second)).
			Put("/service-requests/{id}/status", requestHandler.UpdateStatus)

		api.Group(func(api chi.Router) {
			api.Use(chiMiddleware.Timeout(30 * time.Second))

			api.Get("/health", server.Health)

			api.Route("/auth", func(a chi.Router) {
				a.Post("/setup", adminHandler.Setup)
				a.With(loginLimiter.Middleware).Post("/login", adminHandler.Login)
				a.Post("/logout", adminHandler.Logout)
				a.With(requireAdmin).Get("/verify", adminHandler.Verify)
				a.With(requireAdmin, middleware.RequireRole(models.RoleAdmin)).Post("/register", adminHandler.Register)
			})

			api.Group(func(public chi.Router) {
				public.Use(middleware.OptionalAuth(tokens))
				public.Get("/projects", projectHandler.List)
				public.Get("/projects/{id}", projectHandler.Get)
				public.Get("/services", serviceHandler.List)
				public.Get("/services/{id}", serviceHandler.Get)
			})
			api.Get("/profile", profileHandler.Get)
			api.With(contactLimiter.Middleware).Post("/contact", server.CreateContact)
			api.With(requestsLimiter.Middleware).Post("/service-requests", requestHandler.Submit)

			api.Group(func(protected chi.Router) {
				protected.Use(requireAdmin)
				protected.Post("/projects", projectHandler.Create)
				protected.Put("/projects/{id}", projectHandler.Update)
				protected.Delete("/projects/{id}", projectHandler.Delete)
				protected.Post("/services", serviceHandler.Create)
				protected.Put("/services/{id}", serviceHandler.Update)
				protected.Delete("/services/{id}", serviceHandler.Delete)
				protected.Put("/profile", profileHandler.Update)
				protected.Get("/service-requests", requestHandler.List)
				protected.Get("/service-requests/stats", requestHandler.Stats)
				protected.Get("/service-requests/{id}", requestHandler.Get)

				protected.Get("/admin/settings", server.AdminSettings)
				protected.Get("/admin/settings/email-status", server.AdminEmailStatus)
				protected.Post("/admin/settings/test-email", server.AdminTestEmail)
				protected.Get("/admin/contacts", server.AdminListContacts)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := mailer.Close(shutdownCtx); err != nil {
		logger.Warn("mailer shutdown incomplete", slog.String("error", err.Error()))
	}
}
