package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/sims/pkg/auth"
	"github.com/platinummonkey/sims/pkg/directory"
	"github.com/platinummonkey/sims/pkg/httputil"
	"github.com/platinummonkey/sims/pkg/importer"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/rbac"
	"github.com/platinummonkey/sims/pkg/records"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// AccessResolver resolves and forgets access records
type AccessResolver interface {
	rbac.AccessResolver
	rbac.Invalidator
}

// Deps are the services the router dispatches to. Directory, Import and
// Login are optional; their routes are skipped when nil.
type Deps struct {
	Records   records.Store
	Resolver  AccessResolver
	Verifier  auth.TokenVerifier
	Directory *directory.Directory
	Import    importer.Service
	Login     auth.LoginFlow

	// AuthOptional lets requests without a bearer token reach handlers,
	// which then answer 401 themselves
	AuthOptional bool

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Server is the SIMS HTTP API
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer assembles the router:
//
//	/auth/login, /auth/callback           public
//	/api/v1/...                           bearer token, then access resolution
//
// Every route runs request logging, panic recovery and HTTP metrics, and
// the whole router is traced with otelhttp.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	router := mux.NewRouter()
	router.Use(observability.RequestLoggingMiddleware(logger))
	router.Use(httputil.Recovery)
	router.Use(httputil.MaxBytes(maxBodyBytes))
	if deps.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	if deps.Login != nil {
		auth.NewHandlers(deps.Login).RegisterRoutes(router)
	}

	protected := router.NewRoute().Subrouter()
	protected.Use(auth.NewMiddleware(deps.Verifier, deps.AuthOptional).Handler)
	protected.Use(rbac.NewAccessMiddleware(deps.Resolver).Handler)

	NewRecordHandlers(deps.Records).RegisterRoutes(protected)
	rbac.NewHandlers(deps.Resolver).RegisterRoutes(protected)
	if deps.Directory != nil {
		directory.NewHandlers(deps.Directory).RegisterRoutes(protected)
	}
	if deps.Import != nil {
		importer.NewHandlers(deps.Import).RegisterRoutes(protected)
	}

	return &Server{
		router:  router,
		handler: otelhttp.NewHandler(router, "sims-api"),
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router for extra registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// NewHealthRouter serves liveness, readiness and Prometheus metrics on the
// separate health port
func NewHealthRouter(checker *observability.HealthChecker, registry *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(router, registry)
	}
	return router
}
