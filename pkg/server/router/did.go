package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/pkg/server/framework"
	"github.com/affinity-network/exchange-service/pkg/service/did"
	svcframework "github.com/affinity-network/exchange-service/pkg/service/framework"
)

const IDParam = "id"

// DIDRouter exposes the did service over HTTP
type DIDRouter struct {
	service *did.Service
}

func NewDIDRouter(s svcframework.Service) (*DIDRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	didService, ok := s.(*did.Service)
	if !ok {
		return nil, fmt.Errorf("could not create DID router with service type: %s", s.Type())
	}
	return &DIDRouter{service: didService}, nil
}

func (dr DIDRouter) CreateDID(c *gin.Context) {
	var request did.CreateDIDRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		framework.RespondError(c, err)
		return
	}
	response, err := dr.service.CreateDID(c, request)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusCreated)
}

func (dr DIDRouter) GetDID(c *gin.Context) {
	id := c.Param(IDParam)
	response, err := dr.service.GetDID(c, did.GetDIDRequest{DID: id})
	if err != nil {
		framework.RespondError(c, framework.NewRequestError(errors.Errorf("could not get did: %s", id), http.StatusNotFound))
		return
	}
	framework.Respond(c, response, http.StatusOK)
}

func (dr DIDRouter) ListDIDs(c *gin.Context) {
	response, err := dr.service.ListDIDs(c)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusOK)
}

func (dr DIDRouter) ResolveDID(c *gin.Context) {
	id := c.Param(IDParam)
	response, err := dr.service.ResolveDID(c, did.ResolveDIDRequest{DID: id})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	framework.Respond(c, response, http.StatusOK)
}
