package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/affinity-network/exchange-service/pkg/server/framework"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// Health is a simple handler that always responds with a 200 OK
func Health(c *gin.Context) {
	framework.Respond(c, HealthResponse{Status: "OK"}, http.StatusOK)
}
