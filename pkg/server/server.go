package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/denysvitali/fm-connector/internal/models"
	"github.com/denysvitali/fm-connector/pkg/config"
	"github.com/denysvitali/fm-connector/pkg/connector"
	"github.com/denysvitali/fm-connector/pkg/i18n"
	"github.com/denysvitali/fm-connector/pkg/imageproc"
	"github.com/denysvitali/fm-connector/pkg/metrics"
	"github.com/denysvitali/fm-connector/pkg/storage/local"
	"github.com/denysvitali/fm-connector/pkg/telemetry"
)

// APIKeyHeader carries the API key when one is configured
const APIKeyHeader = "X-Connector-API-Key"

// Server represents the HTTP server
type Server struct {
	config       *config.Config
	logger       *logrus.Logger
	backend      *local.Backend
	dispatcher   *connector.Dispatcher
	engine       *gin.Engine
	server       *http.Server
	startTime    time.Time
	clientConfig func() models.ClientConfig
}

// New creates a new server instance
func New(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	backend, err := local.New(local.Config{
		RootPath:        cfg.Storage.Root,
		CreateRoot:      cfg.Storage.CreateRoot,
		ImageExtensions: cfg.Filemanager.Images.Extensions,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	catalog, err := i18n.New(cfg.Filemanager.Culture)
	if err != nil {
		return nil, fmt.Errorf("failed to load message catalog: %w", err)
	}

	resizer, err := imageproc.NewResizer(cfg.Filemanager.Cache.ImageEntries)
	if err != nil {
		return nil, err
	}

	var report connector.Reporter
	if cfg.Telemetry.Enabled {
		report = func(ctx context.Context, operation string, data any) {
			telemetry.ReportJSON(ctx, logger, operation, data)
		}
	}

	fm := &cfg.Filemanager
	dispatcher, err := connector.New(connector.Options{
		Backend:      backend,
		Translator:   connector.PrefixTranslator{Prefix: cfg.Storage.PathPrefix},
		Messages:     catalog,
		Configs:      connector.StaticConfig{Config: fm},
		Resizer:      resizer,
		ConnectorURL: cfg.Server.ConnectorPath,
		Logger:       logger,
		Report:       report,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	// Set gin mode based on log level
	if logger.Level == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create gin engine
	engine := gin.New()

	// Add middleware
	engine.Use(gin.Recovery())
	engine.Use(ginLogger(logger))
	engine.Use(metricsMiddleware())

	// Add OpenTelemetry middleware if telemetry is enabled
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware("fm-connector"))
	}

	// Add CORS middleware
	engine.Use(corsMiddleware())

	server := &Server{
		config:     cfg,
		logger:     logger,
		backend:    backend,
		dispatcher: dispatcher,
		engine:     engine,
		startTime:  time.Now(),
	}
	server.clientConfig = sync.OnceValue(server.buildClientConfig)

	// Setup routes
	server.setupRoutes()

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Server.Port),
		Handler: s.engine,
	}

	s.logger.Infof("Starting server on port %d, serving %s at %s", s.config.Server.Port, s.backend.Root(), s.config.Server.ConnectorPath)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Engine returns the gin engine for testing purposes
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check
	s.engine.GET("/alive", s.handleAlive)

	// Prometheus metrics
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Everything else may require the API key
	api := s.engine.Group("/")
	if s.config.Server.APIKey != "" {
		api.Use(authMiddleware(s.config.Server.APIKey))
	}

	// Server info
	api.GET("/server_info", s.handleServerInfo)

	// Widget configuration
	api.GET("/filemanager.config.json", s.handleClientConfig)

	// Connector protocol
	connectorHandler := gin.WrapH(s.dispatcher)
	api.GET(s.config.Server.ConnectorPath, connectorHandler)
	api.POST(s.config.Server.ConnectorPath, connectorHandler)
}

// handleAlive handles health check requests
func (s *Server) handleAlive(c *gin.Context) {
	if s.dispatcher == nil {
		c.JSON(http.StatusOK, gin.H{"status": "not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleServerInfo handles server info requests
func (s *Server) handleServerInfo(c *gin.Context) {
	uptime := time.Since(s.startTime).Seconds()

	response := models.ServerInfoResponse{
		Uptime:  uptime,
		Backend: s.backend.Type(),
		Disk:    s.diskStats(s.backend.Root()),
		Process: s.processStats(),
	}

	s.logger.Debugf("Server info endpoint response: uptime=%.2fs, disk=%.1f%%", uptime, response.Disk.Percent)
	c.JSON(http.StatusOK, response)
}

// handleClientConfig serves the configuration the widget starts with
func (s *Server) handleClientConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.clientConfig())
}

func (s *Server) buildClientConfig() models.ClientConfig {
	fm := s.config.Filemanager
	return models.ClientConfig{
		Options: models.ClientOptions{
			Culture:      fm.Culture,
			FileSorting:  fm.FileSorting,
			ShowThumbs:   fm.ShowThumbs,
			Capabilities: fm.Capabilities,
		},
		API: models.ClientAPI{
			ConnectorURL: s.config.Server.ConnectorPath,
		},
		Upload: models.ClientUpload{
			Overwrite:     fm.Upload.Overwrite,
			ImagesOnly:    fm.Upload.ImagesOnly,
			FileSizeLimit: fm.Upload.FileSizeLimit,
		},
		Images: models.ClientImages{
			ImagesExt: fm.Images.Extensions,
		},
		Edit: models.ClientEdit{
			Enabled: fm.Edit.Enabled,
			EditExt: fm.Edit.Extensions,
		},
	}
}

// ginLogger creates a gin logger middleware using logrus
func ginLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status":     statusCode,
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency":    latency,
			"user_agent": c.Request.UserAgent(),
		})

		if raw != "" {
			entry = entry.WithField("query", raw)
		}

		// Log based on status code
		if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request completed")
		}
	}
}

// metricsMiddleware records request metrics by route
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Accept-Language, X-CSRF-Token, Authorization, "+APIKeyHeader)
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authMiddleware validates API key
func authMiddleware(expectedAPIKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey != expectedAPIKey {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid API Key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
