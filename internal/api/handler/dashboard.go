package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/shareledger/internal/api/middleware"
)

// Dashboard handles GET / and greets the authenticated caller.
func Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Hello user %s, you accessed the dashboard successfully!", middleware.Identity(c)),
	})
}
