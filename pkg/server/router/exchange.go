package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/pkg/server/framework"
	"github.com/affinity-network/exchange-service/pkg/service/exchange"
	svcframework "github.com/affinity-network/exchange-service/pkg/service/framework"
)

// ExchangeRouter exposes the credential exchange protocol over HTTP
type ExchangeRouter struct {
	service *exchange.Service
}

func NewExchangeRouter(s svcframework.Service) (*ExchangeRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	exchangeService, ok := s.(*exchange.Service)
	if !ok {
		return nil, fmt.Errorf("could not create exchange router with service type: %s", s.Type())
	}
	return &ExchangeRouter{service: exchangeService}, nil
}

func (er ExchangeRouter) GenerateOfferRequest(c *gin.Context) {
	var request exchange.GenerateOfferRequestRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := er.service.GenerateOfferRequest(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (er ExchangeRouter) CreateOfferResponse(c *gin.Context) {
	var request exchange.CreateOfferResponseRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := er.service.CreateOfferResponse(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (er ExchangeRouter) VerifyOfferResponse(c *gin.Context) {
	var request exchange.VerifyOfferResponseRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	verdict, err := er.service.VerifyOfferResponse(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, verdict, http.StatusOK)
}

func (er ExchangeRouter) SignCredential(c *gin.Context) {
	var request exchange.SignCredentialRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := er.service.SignCredential(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (er ExchangeRouter) GetCredential(c *gin.Context) {
	id := c.Param(IDParam)
	response, err := er.service.GetCredential(c, exchange.GetCredentialRequest{ID: id})
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(errors.Errorf("could not get credential: %s", id), http.StatusNotFound))
		return
	}
	framework.Respond(c, response, http.StatusOK)
}

func (er ExchangeRouter) GenerateShareRequest(c *gin.Context) {
	var request exchange.GenerateShareRequestRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := er.service.GenerateShareRequest(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (er ExchangeRouter) SelectShareCredentials(c *gin.Context) {
	var request exchange.SelectShareCredentialsRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := er.service.SelectShareCredentials(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusOK)
}

func (er ExchangeRouter) CreateShareResponse(c *gin.Context) {
	var request exchange.CreateShareResponseRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := er.service.CreateShareResponse(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (er ExchangeRouter) VerifyShareResponse(c *gin.Context) {
	var request exchange.VerifyShareResponseRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	verdict, err := er.service.VerifyShareResponse(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, verdict, http.StatusOK)
}

func (er ExchangeRouter) GeneratePresentationChallenge(c *gin.Context) {
	var request exchange.GeneratePresentationChallengeRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := er.service.GeneratePresentationChallenge(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (er ExchangeRouter) CreatePresentation(c *gin.Context) {
	var request exchange.CreatePresentationRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := er.service.CreatePresentationFromChallenge(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (er ExchangeRouter) VerifyPresentation(c *gin.Context) {
	var request exchange.VerifyPresentationRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	verdict, err := er.service.VerifyPresentation(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, verdict, http.StatusOK)
}
