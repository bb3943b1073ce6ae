package handler

import (
	"ledger-core/internal/handler/response"

	"github.com/gin-gonic/gin"
)

// HealthCheck 服务存活检查
func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"version": "1.0.0",
		"service": "ledger-server",
	})
}
