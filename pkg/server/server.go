// Package server contains the full set of handler functions and routes
// supported by the http api
package server

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/affinity-network/exchange-service/config"
	"github.com/affinity-network/exchange-service/internal/util"
	"github.com/affinity-network/exchange-service/pkg/server/framework"
	"github.com/affinity-network/exchange-service/pkg/server/middleware"
	"github.com/affinity-network/exchange-service/pkg/server/router"
	"github.com/affinity-network/exchange-service/pkg/service"
	"github.com/affinity-network/exchange-service/pkg/service/auth"
	"github.com/affinity-network/exchange-service/pkg/service/did"
	"github.com/affinity-network/exchange-service/pkg/service/exchange"
	svcframework "github.com/affinity-network/exchange-service/pkg/service/framework"
)

const (
	HealthPrefix    = "/health"
	ReadinessPrefix = "/readiness"
	V1Prefix        = "/v1"

	DIDsPrefix          = "/dids"
	ResolverPrefix      = "/resolver"
	ExchangePrefix      = "/exchange"
	OffersPrefix        = "/offers"
	SharesPrefix        = "/shares"
	CredentialsPrefix   = "/credentials"
	PresentationsPrefix = "/presentations"
	AuthPrefix          = "/auth"

	RequestPath      = "/request"
	ResponsePath     = "/response"
	VerificationPath = "/verification"
	SelectionPath    = "/selection"
	ChallengePath    = "/challenge"
	ConfirmationPath = "/confirmation"
)

// ExchangeServer exposes all dependencies needed to run the http server and its services
type ExchangeServer struct {
	*config.ServerConfig
	*service.ExchangeService
	*framework.Server
}

// NewExchangeServer instantiates all services and registers their HTTP bindings
func NewExchangeServer(shutdown chan os.Signal, cfg config.ExchangeServiceConfig) (*ExchangeServer, error) {
	engine := setUpEngine(cfg.Server, shutdown)
	httpServer := framework.NewServer(cfg.Server, engine)
	svc, err := service.InstantiateExchangeService(cfg.Services)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate exchange service")
	}

	// make service paths available for services that mint externally visible identifiers
	config.SetAPIBase(cfg.Services.ServiceEndpoint)
	config.SetServicePath(svcframework.DID, DIDsPrefix)
	config.SetServicePath(svcframework.Exchange, ExchangePrefix)
	config.SetServicePath(svcframework.Auth, AuthPrefix)

	// service-level routers
	engine.GET(HealthPrefix, router.Health)
	engine.GET(ReadinessPrefix, router.Readiness(svc.GetServices()))

	// register all v1 routers
	v1 := engine.Group(V1Prefix)
	if err = DecentralizedIdentityAPI(v1, svc.DID); err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate DID API")
	}
	if err = ExchangeAPI(v1, svc.Exchange); err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate Exchange API")
	}
	if err = AuthAPI(v1, svc.Auth); err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate Auth API")
	}

	return &ExchangeServer{
		Server:          httpServer,
		ExchangeService: svc,
		ServerConfig:    &cfg.Server,
	}, nil
}

// setUpEngine creates the gin engine and sets up the middleware based on config
func setUpEngine(cfg config.ServerConfig, shutdown chan os.Signal) *gin.Engine {
	middlewares := gin.HandlersChain{
		gin.Recovery(),
		middleware.Errors(shutdown),
		middleware.Logger(logrus.StandardLogger()),
	}
	if cfg.EnableCORS {
		middlewares = append(middlewares, middleware.CORS())
	}

	engine := gin.New()
	engine.Use(middlewares...)
	return engine
}

// DecentralizedIdentityAPI registers all HTTP routes for the DID service
func DecentralizedIdentityAPI(rg *gin.RouterGroup, svc *did.Service) (err error) {
	didRouter, err := router.NewDIDRouter(svc)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating DID router")
	}

	didAPI := rg.Group(DIDsPrefix)
	didAPI.PUT("", didRouter.CreateDID)
	didAPI.GET("", didRouter.ListDIDs)
	didAPI.GET("/:id", didRouter.GetDID)
	didAPI.GET(ResolverPrefix+"/:id", didRouter.ResolveDID)
	return
}

// ExchangeAPI registers all HTTP routes for the credential exchange service
func ExchangeAPI(rg *gin.RouterGroup, svc *exchange.Service) (err error) {
	exchangeRouter, err := router.NewExchangeRouter(svc)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating exchange router")
	}

	exchangeAPI := rg.Group(ExchangePrefix)

	offerAPI := exchangeAPI.Group(OffersPrefix)
	offerAPI.PUT(RequestPath, exchangeRouter.GenerateOfferRequest)
	offerAPI.PUT(ResponsePath, exchangeRouter.CreateOfferResponse)
	offerAPI.PUT(VerificationPath, exchangeRouter.VerifyOfferResponse)

	credentialAPI := exchangeAPI.Group(CredentialsPrefix)
	credentialAPI.PUT("", exchangeRouter.SignCredential)
	credentialAPI.GET("/:id", exchangeRouter.GetCredential)

	shareAPI := exchangeAPI.Group(SharesPrefix)
	shareAPI.PUT(RequestPath, exchangeRouter.GenerateShareRequest)
	shareAPI.PUT(SelectionPath, exchangeRouter.SelectShareCredentials)
	shareAPI.PUT(ResponsePath, exchangeRouter.CreateShareResponse)
	shareAPI.PUT(VerificationPath, exchangeRouter.VerifyShareResponse)

	presentationAPI := exchangeAPI.Group(PresentationsPrefix)
	presentationAPI.PUT(ChallengePath, exchangeRouter.GeneratePresentationChallenge)
	presentationAPI.PUT("", exchangeRouter.CreatePresentation)
	presentationAPI.PUT(VerificationPath, exchangeRouter.VerifyPresentation)
	return
}

// AuthAPI registers all HTTP routes for the passwordless authentication service
func AuthAPI(rg *gin.RouterGroup, svc *auth.Service) (err error) {
	authRouter, err := router.NewAuthRouter(svc)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating auth router")
	}

	authAPI := rg.Group(AuthPrefix)
	authAPI.PUT("/sign-up", authRouter.InitiateSignUp)
	authAPI.PUT("/sign-up"+ConfirmationPath, authRouter.CompleteSignUp)
	authAPI.PUT("/sign-in", authRouter.InitiateSignIn)
	authAPI.PUT("/sign-in"+ConfirmationPath, authRouter.CompleteSignIn)
	authAPI.PUT("/code/resend", authRouter.ResendCode)
	authAPI.PUT("/password/forgot", authRouter.InitiateForgotPassword)
	authAPI.PUT("/password/forgot"+ConfirmationPath, authRouter.CompleteForgotPassword)
	authAPI.PUT("/identifier/change", authRouter.InitiateChangeEmailOrPhone)
	authAPI.PUT("/identifier/change"+ConfirmationPath, authRouter.CompleteChangeEmailOrPhone)
	return
}
