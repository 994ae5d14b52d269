// Package framework is a minimal web framework over gin.
package framework

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/affinity-network/exchange-service/config"
)

// Server wraps the http server behind the application's gin router
type Server struct {
	*http.Server
}

// NewServer creates a Server that handles a set of routes for the application
func NewServer(cfg config.ServerConfig, handler *gin.Engine) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              cfg.APIHost,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
	}
}
