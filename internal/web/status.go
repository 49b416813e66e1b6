package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleStatus answers the root liveness probe.
func HandleStatus(serviceName string) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"message": serviceName + " API is running"})
	}
}
