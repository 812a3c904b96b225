package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type API struct {
	notifier Notifier
}

func NewAPI(notifier Notifier) *API {
	return &API{notifier: notifier}
}

func registerRoutes(r *gin.Engine, api *API) {
	r.GET("/health", api.handleHealth)
	r.GET("/webhook", api.handleVerifyWebhook)
	r.POST("/webhook", api.handleWebhook)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleVerifyWebhook answers the Dropbox endpoint-verification handshake
// by echoing the challenge back as plain text.
func (a *API) handleVerifyWebhook(c *gin.Context) {
	challenge := c.Query("challenge")
	if challenge == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no challenge provided"})
		return
	}

	slog.Info("received webhook verification challenge")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/plain", []byte(challenge))
}

// handleWebhook acknowledges the notification immediately and processes the
// folder changes in the background. Dropbox retries deliveries that do not
// get a fast 200, so processing must never block the response.
func (a *API) handleWebhook(c *gin.Context) {
	go a.notifier.HandleNotification()
	c.JSON(http.StatusOK, gin.H{"success": true})
}
