package routes

import (
	"hostwatch/internal/controllers"
	"hostwatch/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes registers account, session and stream routes. The
// websocket endpoint authenticates with a stream ticket, not a session.
func RegisterAuthRoutes(r *gin.Engine, ac *controllers.AuthController, sc *controllers.StreamController, requireSession, loginLimit gin.HandlerFunc) {
	r.POST("/register", loginLimit, ac.Register)
	r.POST("/login", loginLimit, ac.Login)
	r.POST("/validate-session", ac.ValidateSession)

	r.GET("/api/stream/ticket", requireSession, ac.StreamTicket)
	r.GET("/ws", sc.HandleWebSocket)
}

// loginLimiter wraps the stricter per-IP limiter used on credential endpoints
func loginLimiter(sl *middleware.SecurityLogger) gin.HandlerFunc {
	return middleware.RateLimitMiddleware(middleware.NewLoginRateLimiter(), sl)
}
