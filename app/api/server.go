package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vilaverde/imovelhub/app/cfg"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	c := cfg.Get()

	// Pipeline trigger and status. The trigger requires a key only in
	// production so local runs stay curl-friendly.
	r.POST("/crawler", handler.TriggerCrawler)
	r.GET("/crawler", handler.CrawlerStatus)

	// Public listing queries
	r.GET("/properties", handler.ListProperties)
	r.GET("/properties/:code", handler.GetPropertyByCode)

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if c.APIAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(c.APIAccessKey))
		{
			api.POST("/properties", handler.APICreateProperty)
			api.POST("/leads", handler.APICreateLead)
			api.POST("/maintenance/reset-links", handler.APIResetLinks)
			api.POST("/maintenance/backfill", handler.APIBackfillCaptures)
			api.GET("/maintenance/audit-dates", handler.APIAuditDates)
			api.GET("/maintenance/captures", handler.APIListCaptures)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"crawler":    "/crawler (POST to trigger, GET ?action=status)",
			"properties": "/properties?type=&city=&min_price=&max_price=&q=",
			"property":   "/properties/<code>",
			"health":     "/health",
			"stats":      "/stats",
		}

		if cfg.Get().APIAccessKey != "" {
			endpoints["create_property"] = "/api/properties (POST, requires X-API-Key header)"
			endpoints["create_lead"] = "/api/leads (POST, requires X-API-Key header)"
			endpoints["maintenance"] = "/api/maintenance/* (requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "ImovelHub",
			"version":     cfg.Get().Version,
			"description": "Real estate listing ingestion pipeline with portal crawling, normalization, and search",
			"endpoints":   endpoints,
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		// Also check Authorization header with Bearer prefix
		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
