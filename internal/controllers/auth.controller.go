package controllers

import (
	"errors"
	"net/http"

	"hostwatch/internal/middleware"
	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=64,username"`
	// bcrypt ignores input beyond 72 bytes
	Password string `json:"password" validate:"required,max=72"`
}

type validateSessionRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
}

// AuthController serves registration, login and session checks
type AuthController struct {
	auth    *services.SessionAuthenticator
	tickets *services.StreamTicketIssuer
	sl      *middleware.SecurityLogger
}

// NewAuthController creates the handlers
func NewAuthController(auth *services.SessionAuthenticator, tickets *services.StreamTicketIssuer, sl *middleware.SecurityLogger) *AuthController {
	return &AuthController{auth: auth, tickets: tickets, sl: sl}
}

// Register creates a user account
func (ac *AuthController) Register(c *gin.Context) {
	var req credentialsRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	userID, err := ac.auth.Register(req.Username, req.Password)
	switch {
	case errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrEmptyCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User registered", "user_id": userID})
}

// Login exchanges credentials for a session token
func (ac *AuthController) Login(c *gin.Context) {
	var req credentialsRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	token, err := ac.auth.Login(req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		ac.sl.LogFailedAuth(c.ClientIP(), "invalid credentials")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	ac.sl.LogLogin(c.ClientIP(), req.Username, token)
	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"session_token": token,
		"expires_in":    int64(ac.auth.TTL().Seconds()),
	})
}

// ValidateSession reports whether a token is still live
func (ac *AuthController) ValidateSession(c *gin.Context) {
	var req validateSessionRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": ac.auth.Validate(req.SessionToken)})
}

// StreamTicket issues a short-lived websocket ticket for the session user.
// Must run behind RequireSession.
func (ac *AuthController) StreamTicket(c *gin.Context) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "must be authenticated"})
		return
	}

	ticket, expiresAt, err := ac.tickets.Issue(session.UserID, session.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue ticket"})
		return
	}

	ac.sl.LogTicketIssued(c.ClientIP(), session.Username)

	scheme := "ws"
	if c.Request.TLS != nil {
		scheme = "wss"
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket":     ticket,
		"url":        scheme + "://" + c.Request.Host + "/ws?ticket=" + ticket,
		"expires_at": expiresAt,
	})
}
