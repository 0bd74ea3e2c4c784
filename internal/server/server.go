package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"patchvault/internal/blobstore"
	"patchvault/internal/store"
	"patchvault/internal/vault"
)

const (
	allowRemoteEnvKey = "PATCHVAULT_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	// Builds stream tens of thousands of files; give them room.
	writeTimeout = 15 * time.Minute
	idleTimeout  = 60 * time.Second

	buildConcurrencyLimit = 2
)

// Server exposes the archive's resolve and build surface over HTTP.
type Server struct {
	addr     string
	store    *store.Store
	objects  blobstore.ObjectStore
	resolver *vault.Resolver
	builder  *vault.Builder
	logger   *slog.Logger

	buildLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, st *store.Store, objects blobstore.ObjectStore, resolver *vault.Resolver, builder *vault.Builder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:         addr,
		store:        st,
		objects:      objects,
		resolver:     resolver,
		builder:      builder,
		logger:       logger,
		buildLimiter: make(chan struct{}, buildConcurrencyLimit),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		s.writeError(w, r, http.StatusTooManyRequests, fmt.Errorf("too many concurrent %s requests", name), nil)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
