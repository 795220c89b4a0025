package routes

import (
	"hostwatch/internal/controllers"
	"hostwatch/internal/logging"
	"hostwatch/internal/middleware"
	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Dependencies are the services the HTTP layer calls into
type Dependencies struct {
	Auth      *services.SessionAuthenticator
	Tickets   *services.StreamTicketIssuer
	History   *services.MetricHistory
	Evaluator *services.ThresholdEvaluator
	Store     services.AlertStore
	Loop      *services.CollectionLoop
	Hub       *services.WebSocketHub
	HostCache *services.HostStatusCache
	Telemetry *services.Telemetry
	Log       logrus.FieldLogger
}

// RouterOptions holds the HTTP-facing configuration
type RouterOptions struct {
	AllowedOrigins []string
	AllowedIPs     []string
	RateLimitRPS   float64
	RateLimitBurst int
	// RequestLog enables gin's access log
	RequestLog bool
}

// NewRouter builds the gin engine with middleware and every route registered
func NewRouter(deps Dependencies, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.RequestLog {
		r.Use(gin.Logger())
	}
	r.MaxMultipartMemory = 10 << 20

	sl := middleware.NewSecurityLogger(logging.Component(deps.Log, "security"))

	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))
	r.Use(middleware.IPWhitelistMiddleware(middleware.NewIPWhitelist(opts.AllowedIPs), sl))
	if opts.RateLimitRPS > 0 {
		r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst), sl))
	}

	requireSession := middleware.RequireSession(deps.Auth, sl)

	ac := controllers.NewAuthController(deps.Auth, deps.Tickets, sl)
	sc := controllers.NewStreamController(deps.Hub, deps.Tickets, sl, opts.AllowedOrigins, logging.Component(deps.Log, "ws"))
	mc := controllers.NewMonitorController(deps.History, deps.Evaluator, deps.Store)
	tc := controllers.NewThresholdController(deps.Evaluator)
	hc := controllers.NewHostController(deps.HostCache, deps.Loop, deps.History, deps.Hub)

	RegisterAuthRoutes(r, ac, sc, requireSession, loginLimiter(sl))
	RegisterMonitorRoutes(r, mc, tc, hc, requireSession)
	RegisterLogRoutes(r)
	if deps.Telemetry != nil {
		RegisterTelemetryRoutes(r, deps.Telemetry.Handler())
	}

	return r
}
