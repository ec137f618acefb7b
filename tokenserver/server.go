// Package tokenserver is the local control plane that exchanges the
// long-lived API key for ephemeral realtime session tokens.
package tokenserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openai/openai-go/v3"
)

// Error messages returned to clients.
const (
	msgNoAPIKey        = "Server configuration error: API key not found"
	msgAPIError        = "Error from OpenAI API"
	msgInvalidResponse = "Invalid response format from OpenAI"
	msgMintFailed      = "Failed to retrieve ephemeral session token"
)

// Server serves GET /session.
type Server struct {
	cfg    Config
	minter Minter
}

// New creates a server. A nil minter is built from cfg.
func New(cfg Config, minter Minter) *Server {
	if minter == nil && cfg.APIKey != "" {
		minter = NewOpenAIMinter(cfg)
	}
	return &Server{cfg: cfg, minter: minter}
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORS(s.cfg.CORSAllowedOrigins))
	router.Use(Logger())

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/session", s.Session)
	return router
}

// Session mints an ephemeral token.
func (s *Server) Session(c *gin.Context) {
	if s.cfg.APIKey == "" || s.minter == nil {
		slog.Error("OPENAI_API_KEY is not set")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgNoAPIKey})
		return
	}

	slog.Info("fetching session token", "model", s.cfg.Model, "voice", s.cfg.Voice)
	data, err := s.minter.Mint(c.Request.Context())
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = msgAPIError
			}
			slog.Error("openai api error", "status", apiErr.StatusCode, "message", apiErr.Message)
			c.JSON(http.StatusBadRequest, gin.H{
				"error": msg,
				"details": gin.H{
					"message": apiErr.Message,
					"type":    apiErr.Type,
					"code":    apiErr.Code,
				},
			})
			return
		}
		slog.Error("mint session token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgMintFailed, "details": err.Error()})
		return
	}

	if e, ok := data["error"]; ok && e != nil {
		msg := msgAPIError
		if m, ok := e.(map[string]any); ok {
			if text, ok := m["message"].(string); ok && text != "" {
				msg = text
			}
		}
		slog.Error("openai api error in body", "error", e)
		c.JSON(http.StatusBadRequest, gin.H{"error": msg, "details": e})
		return
	}

	if !hasClientSecret(data) {
		slog.Error("no client_secret.value in response")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInvalidResponse, "details": data})
		return
	}

	c.JSON(http.StatusOK, data)
}

func hasClientSecret(data map[string]any) bool {
	cs, ok := data["client_secret"].(map[string]any)
	if !ok {
		return false
	}
	v, ok := cs["value"].(string)
	return ok && v != ""
}

// Run serves on cfg.Addr() until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "apiKeyPresent", s.cfg.APIKey != "")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// CORS sets cross-origin headers. allowedOrigins is "*" or a comma-separated
// list.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowOrigin := ""
		if len(origins) == 0 || origins["*"] {
			allowOrigin = "*"
		} else if origin != "" && origins[origin] {
			allowOrigin = origin
		}
		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func parseOrigins(s string) map[string]bool {
	m := make(map[string]bool)
	for _, o := range strings.Split(strings.TrimSpace(s), ",") {
		if o = strings.TrimSpace(o); o != "" {
			m[o] = true
		}
	}
	return m
}

// Logger logs each request with slog.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		slog.Info("request",
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"method", c.Request.Method,
			"path", path,
			"client_ip", c.ClientIP(),
		)
	}
}
