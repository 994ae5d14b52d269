package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/pkg/server/framework"
	"github.com/affinity-network/exchange-service/pkg/service/common"
)

// respondServiceError maps typed protocol failures to HTTP statuses and sends
// their stable code to the client. Untyped errors become a generic 500.
func respondServiceError(c *gin.Context, err error) {
	var typed *common.Error
	if errors.As(err, &typed) {
		framework.RespondError(c, &framework.SafeError{
			Err:        errors.New(typed.Error()),
			Code:       string(typed.Code),
			StatusCode: statusForCode(typed.Code),
		})
		return
	}
	framework.RespondError(c, err)
}

func statusForCode(code common.ErrorCode) int {
	switch code {
	case common.CapabilityUnavailable:
		return http.StatusServiceUnavailable
	case common.IdentifierAlreadyRegistered:
		return http.StatusConflict
	case common.TooManyAttempts:
		return http.StatusTooManyRequests
	case common.WrongConfirmationCode, common.SessionExpired, common.MalformedToken,
		common.SignatureInvalid, common.UnknownSigner, common.RequirementUnsatisfied:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
