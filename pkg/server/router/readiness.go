package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	framework "github.com/affinity-network/exchange-service/pkg/server/framework"
	svcframework "github.com/affinity-network/exchange-service/pkg/service/framework"
)

type ReadinessResponse struct {
	Status          svcframework.Status                      `json:"status"`
	ServiceStatuses map[svcframework.Type]svcframework.Status `json:"serviceStatuses"`
}

// Readiness reports whether all relied-upon services are ready. Returns a 503
// when any of them is not.
func Readiness(services []svcframework.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		readyServices := 0
		statuses := make(map[svcframework.Type]svcframework.Status)
		for _, s := range services {
			status := s.Status()
			statuses[s.Type()] = status
			if status.IsReady() {
				readyServices++
			}
		}

		status := svcframework.Status{Status: svcframework.StatusReady, Message: "all services ready"}
		httpStatus := http.StatusOK
		if readyServices < len(services) {
			status = svcframework.Status{
				Status:  svcframework.StatusNotReady,
				Message: fmt.Sprintf("out of [%d] services, [%d] are ready", len(services), readyServices),
			}
			httpStatus = http.StatusServiceUnavailable
		}
		framework.Respond(c, ReadinessResponse{Status: status, ServiceStatuses: statuses}, httpStatus)
	}
}
