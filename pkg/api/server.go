package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JayJamieson/csv-sql/pkg/config"
	"github.com/JayJamieson/csv-sql/pkg/db"
	"github.com/JayJamieson/csv-sql/pkg/handlers"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
)

type Server struct {
	config *config.Config
	router *echo.Echo
	db     *db.DB
}

// New opens the configured database and builds the server around it.
func New(cfg *config.Config) (*Server, error) {
	database, err := db.New(cfg.Server.DatabaseURL, cfg.DBOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	server, err := NewWithDB(cfg, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return server, nil
}

// NewWithDB builds the server around an already opened database.
func NewWithDB(cfg *config.Config, database *db.DB) (*Server, error) {
	doc, err := loadSpec()
	if err != nil {
		return nil, fmt.Errorf("failed to load swagger: %w", err)
	}

	validator, err := validateRequests(doc)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLogLevel(cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true

	server := &Server{
		config: cfg,
		router: e,
		db:     database,
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if cfg.Server.CORS {
		e.Use(middleware.CORS())
	}
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", cfg.Server.MaxUploadBytes)))
	e.Use(validator)

	e.Logger.SetLevel(level)

	RegisterHandlers(e, handlers.NewHandler(database))
	server.setupDefaultRoutes()
	return server, nil
}

func (s *Server) setupDefaultRoutes() {
	s.router.GET("/doc.yml", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/yaml", apiSpec)
	})
	s.router.GET("/swagger/*", echoSwagger.EchoWrapHandlerV3(func(c *echoSwagger.Config) {
		c.URLs = []string{"/doc.yml"}
	}))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	go func() {
		addr := fmt.Sprintf(":%d", s.config.Server.Port)
		if err := s.router.Start(addr); err != nil && err != http.ErrServerClosed {
			s.router.Logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.router.Logger.Info("Shutting down")

	if err := s.router.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
