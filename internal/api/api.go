// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/activity"
	"github.com/good-yellow-bee/taskforge/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address          string
	JWTSecret        []byte
	HTTPTLSEnabled   bool   // Enable HTTPS for API server
	HTTPTLSCertFile  string // HTTPS certificate file
	HTTPTLSKeyFile   string // HTTPS private key file
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RateLimitPerIP   int // requests per minute on public auth routes
	RateLimitPerUser int // requests per minute on authenticated routes
	LockoutThreshold int
	LockoutDuration  time.Duration
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 10
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 100
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = 5
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = 30 * time.Minute
	}
}

// Server is the HTTP API server.
type Server struct {
	config   *Config
	storage  storage.Storage
	recorder *activity.Recorder
	server   *http.Server
}

// New creates a new API server. archive can be nil when the activity
// archive is disabled.
func New(cfg *Config, store storage.Storage, archive *storage.ArchiveBuffer) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT secret is required")
	}

	cfg.SetDefaults()

	// A nil *ArchiveBuffer must become a nil interface, not a typed nil.
	var archiver activity.Archiver
	if archive != nil {
		archiver = archive
	}

	s := &Server{
		config:   cfg,
		storage:  store,
		recorder: activity.NewRecorder(store.Activities(), archiver),
	}

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}
