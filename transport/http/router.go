package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/renown/service"
	"github.com/rs/zerolog"
)

// SetupRouter sets up the Gin router
func SetupRouter(rendezvous *service.Rendezvous, credentials *service.CredentialService, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), RequestLogger(logger))

	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	// Create handlers
	sessions := NewSessionHandlers(rendezvous, logger)
	creds := NewCredentialHandlers(credentials, logger)

	// Console rendezvous routes
	session := router.Group("/session")
	{
		session.POST("/:sessionId", sessions.Create)
		session.GET("/:sessionId", sessions.Poll)
		session.PUT("/:sessionId", sessions.Complete)
		session.DELETE("/:sessionId", sessions.Cancel)
	}

	// Credential routes
	router.POST("/verify", creds.Verify)
	router.GET("/status/:address", creds.Status)
	router.POST("/credentials", creds.Register)

	// Bearer protected routes
	auth := AuthMiddleware(credentials.Verifier())
	router.GET("/me", auth, creds.Me)
	router.DELETE("/credentials/:id", auth, creds.Revoke)

	return router
}
