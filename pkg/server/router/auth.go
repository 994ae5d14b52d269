package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/pkg/server/framework"
	"github.com/affinity-network/exchange-service/pkg/service/auth"
	svcframework "github.com/affinity-network/exchange-service/pkg/service/framework"
)

// AuthRouter exposes the passwordless authentication flows over HTTP
type AuthRouter struct {
	service *auth.Service
}

func NewAuthRouter(s svcframework.Service) (*AuthRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	authService, ok := s.(*auth.Service)
	if !ok {
		return nil, fmt.Errorf("could not create auth router with service type: %s", s.Type())
	}
	return &AuthRouter{service: authService}, nil
}

func (ar AuthRouter) InitiateSignUp(c *gin.Context) {
	var request auth.InitiateSignUpRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := ar.service.InitiateSignUp(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (ar AuthRouter) CompleteSignUp(c *gin.Context) {
	var request auth.CompleteRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := ar.service.CompleteSignUp(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusOK)
}

func (ar AuthRouter) InitiateSignIn(c *gin.Context) {
	var request auth.InitiateSignInRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := ar.service.InitiateSignIn(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (ar AuthRouter) CompleteSignIn(c *gin.Context) {
	var request auth.CompleteRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := ar.service.CompleteSignIn(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusOK)
}

func (ar AuthRouter) ResendCode(c *gin.Context) {
	var request auth.ResendCodeRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	if err := ar.service.ResendCode(c, request); err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, nil, http.StatusNoContent)
}

func (ar AuthRouter) InitiateForgotPassword(c *gin.Context) {
	var request auth.InitiateForgotPasswordRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := ar.service.InitiateForgotPassword(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (ar AuthRouter) CompleteForgotPassword(c *gin.Context) {
	var request auth.CompleteForgotPasswordRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	if err := ar.service.CompleteForgotPassword(c, request); err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, nil, http.StatusNoContent)
}

func (ar AuthRouter) InitiateChangeEmailOrPhone(c *gin.Context) {
	var request auth.InitiateChangeEmailOrPhoneRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := ar.service.InitiateChangeEmailOrPhone(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (ar AuthRouter) CompleteChangeEmailOrPhone(c *gin.Context) {
	var request auth.CompleteRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := ar.service.CompleteChangeEmailOrPhone(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusOK)
}
