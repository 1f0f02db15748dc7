package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskboard/internal/config"
	v1 "taskboard/internal/delivery/http/v1"
	"taskboard/internal/services"
)

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{httpCfg.AllowedOrigin},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Location"},
		MaxAge:        12 * time.Hour,
	}))
	registerRoutes(router)

	server := &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	// Wait for the interrupt signal to gracefully
	// shut down the server with a timeout.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

func registerRoutes(router gin.IRouter) {
	jwtCfg := config.Global().JWT

	tokenService := services.NewTokenService(
		jwtCfg.Issuer,
		jwtCfg.Audience,
		jwtCfg.SigningKey,
		jwtCfg.TokenTTL,
	)
	authService := services.NewAuthService(globalLogger, globalPostgresPool, tokenService)
	taskService := services.NewTaskService(globalLogger, globalPostgresPool, globalRelay)

	v1Handler := v1.New(
		globalLogger,
		authService,
		tokenService,
		taskService,
		globalBroker,
	)

	api := router.Group("/api")
	api.POST("/auth/login", v1Handler.HandleLogin)

	// EventSource cannot send an Authorization header, so the stream
	// endpoint authenticates inside the handler via a query parameter.
	api.GET("/events/stream", v1Handler.HandleStreamEvents)

	tasksRouter := api.Group("/tasks")
	tasksRouter.Use(v1Handler.HandleAuthMiddleware)
	tasksRouter.GET("", v1Handler.HandleListTasks)
	tasksRouter.GET("/:id", v1Handler.HandleGetTask)
	tasksRouter.POST("", v1Handler.HandleCreateTask)
	tasksRouter.PUT("/:id", v1Handler.HandleUpdateTask)
	tasksRouter.PUT("/:id/assign", v1Handler.HandleAssignTask)
	tasksRouter.PUT("/:id/status", v1Handler.HandleSetTaskStatus)
	tasksRouter.DELETE("/:id", v1Handler.HandleDeleteTask)
}
