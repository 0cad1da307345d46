package api

import (
	"net/http"
	"os"
	"time"

	"github.com/boostlocal/boost-api/pkg/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// NewServer returns the HTTP server cmd/api listens with. PORT overrides the
// configured port when the platform injects one.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              Addr(cfg),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Addr resolves the listen address.
func Addr(cfg *config.Config) string {
	port := os.Getenv("PORT")
	if port == "" && cfg != nil {
		port = cfg.App.Port
	}
	if port == "" {
		port = "8080"
	}
	return ":" + port
}
