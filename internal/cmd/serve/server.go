package serve

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/accesslog"
	"github.com/chirino/chat-history/internal/config"
	"github.com/chirino/chat-history/internal/history"
	internalmetrics "github.com/chirino/chat-history/internal/metrics"
	routesystem "github.com/chirino/chat-history/internal/plugin/route/system"
	registryroute "github.com/chirino/chat-history/internal/registry/route"
	"github.com/chirino/chat-history/internal/session"
	"github.com/chirino/chat-history/internal/stores"
	"github.com/gin-gonic/gin"
)

// managementPaths are left out of the access log unless AccessLogAll is set.
var managementPaths = []string{"/health", "/ready", "/metrics"}

// Server holds the running server and its subsystems.
type Server struct {
	Config  *config.Config
	Service *history.Service
	Router  *gin.Engine
	// Port is the bound API port.
	Port int
	// ManagementPort is the bound management port, or 0 when health and
	// metrics are served on Port.
	ManagementPort int

	listeners []*listener
	stores    *stores.Stores
}

// Shutdown marks the server not ready, drains every listener and releases
// the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	routesystem.MarkNotReady()
	var errs []error
	for _, l := range s.listeners {
		if err := l.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s listener: %w", l.name, err))
		}
	}
	if err := s.stores.Close(); err != nil {
		log.Warn("Failed to close stores", "err", err)
	}
	return errors.Join(errs...)
}

// StartServer opens the stores, loads the active user's conversation index
// and starts the listeners. A port of 0 binds a free port; the bound ports
// are reported on the returned Server.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting chat history service",
		"httpPort", cfg.Listener.Port,
		"user", cfg.UserID,
		"bundled", cfg.Bundled.Kind,
		"local", cfg.Local.Kind,
		"cache", cfg.CacheType,
	)

	metricsLabels, err := internalmetrics.ParseLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	internalmetrics.Init(metricsLabels)

	ctx = config.WithContext(ctx, cfg)
	st, err := stores.Open(ctx)
	if err != nil {
		return nil, err
	}
	srv := &Server{Config: cfg, stores: st}
	fail := func(err error) (*Server, error) {
		_ = srv.Shutdown(context.Background())
		return nil, err
	}

	srv.Service, err = history.New(ctx, session.New(cfg.UserID), st.Bundled, st.Local, history.Options{
		MaxMessagesPerPage: cfg.MaxMessagesPerPage,
		MinDisplayCount:    cfg.MinDisplayCount,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to load conversation index: %w", err))
	}

	gin.SetMode(gin.ReleaseMode)
	srv.Router = newRouter(cfg.AccessLogAll)
	srv.Router.Use(internalmetrics.Middleware())
	srv.Router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		srv.Router.Use(corsMiddleware(newOriginPolicy(cfg.CORSOrigins)))
	}
	if err := mountRoutes(srv.Router, registryroute.RouteTypeMain, srv.Service); err != nil {
		return fail(err)
	}

	// Management routes share the API router unless they have their own port.
	mgmtRouter := srv.Router
	if cfg.ManagementListenerEnabled {
		mgmtRouter = newRouter(cfg.AccessLogAll)
	}
	if err := mountRoutes(mgmtRouter, registryroute.RouteTypeManagement, srv.Service); err != nil {
		return fail(err)
	}
	if cfg.ManagementListenerEnabled {
		mgmtCfg := cfg.ManagementListener
		mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
		mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
		mgmt, err := startListener("management", mgmtCfg, mgmtRouter)
		if err != nil {
			return fail(err)
		}
		srv.listeners = append(srv.listeners, mgmt)
		srv.ManagementPort = mgmt.port
	}

	api, err := startListener("api", cfg.Listener, srv.Router)
	if err != nil {
		return fail(err)
	}
	srv.listeners = append(srv.listeners, api)
	srv.Port = api.port

	log.Info("Server listening",
		"port", srv.Port,
		"managementPort", srv.ManagementPort,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
	)
	routesystem.MarkReady()
	return srv, nil
}

func newRouter(accessLogAll bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if accessLogAll {
		r.Use(accesslog.Middleware())
	} else {
		r.Use(accesslog.Middleware(managementPaths...))
	}
	return r
}

func mountRoutes(r gin.IRouter, typ registryroute.RouteType, svc *history.Service) error {
	for _, loader := range registryroute.Loaders(typ) {
		if err := loader(r, svc); err != nil {
			return fmt.Errorf("failed to load routes: %w", err)
		}
	}
	return nil
}
