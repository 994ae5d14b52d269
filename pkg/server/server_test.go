package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affinity-network/exchange-service/config"
	didint "github.com/affinity-network/exchange-service/internal/did"
	"github.com/affinity-network/exchange-service/pkg/registry"
	"github.com/affinity-network/exchange-service/pkg/server/framework"
	"github.com/affinity-network/exchange-service/pkg/server/router"
	"github.com/affinity-network/exchange-service/pkg/service/auth"
	"github.com/affinity-network/exchange-service/pkg/service/common"
	"github.com/affinity-network/exchange-service/pkg/service/did"
	svcframework "github.com/affinity-network/exchange-service/pkg/service/framework"
	"github.com/affinity-network/exchange-service/pkg/service/keystore"
	"github.com/affinity-network/exchange-service/pkg/storage"
	"github.com/affinity-network/exchange-service/pkg/testutil"
)

const testCode = "123456"

type fakeRegistry struct {
	documents map[string]didint.Document
	anchored  []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{documents: make(map[string]didint.Document)}
}

func (f *fakeRegistry) Resolve(_ context.Context, id string) (*didint.Document, error) {
	document, ok := f.documents[id]
	if !ok {
		return nil, common.NewErrorf(common.UnknownSigner, "did<%s> is not anchored", id)
	}
	return &document, nil
}

func (f *fakeRegistry) PutDocument(_ context.Context, document any) (string, error) {
	doc, ok := document.(didint.Document)
	if !ok {
		return "", fmt.Errorf("unexpected document type: %T", document)
	}
	f.documents[doc.ID] = doc
	return "addr-" + doc.ID, nil
}

func (f *fakeRegistry) TransactionCount(_ context.Context, _ string) (int64, error) {
	return int64(len(f.anchored)), nil
}

func (f *fakeRegistry) CreateAnchorTransaction(_ context.Context, id string, nonce int64, _ string) (string, error) {
	return fmt.Sprintf("digest-%s-%d", id, nonce), nil
}

func (f *fakeRegistry) AnchorDID(_ context.Context, request registry.AnchorDIDRequest) (string, error) {
	f.anchored = append(f.anchored, request.DID)
	return "tx-" + request.DID, nil
}

type fakeProvider struct {
	accounts map[string]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: make(map[string]bool)}
}

func (f *fakeProvider) AccountExists(_ context.Context, identifier string) (bool, error) {
	return f.accounts[identifier], nil
}

func (f *fakeProvider) Register(_ context.Context, identifier, _ string) error {
	if _, ok := f.accounts[identifier]; !ok {
		f.accounts[identifier] = false
	}
	return nil
}

func (f *fakeProvider) ConfirmAccount(_ context.Context, identifier string) error {
	f.accounts[identifier] = true
	return nil
}

func (f *fakeProvider) SendCode(_ context.Context, _ string, _ *auth.MessageTemplate) error {
	return nil
}

func (f *fakeProvider) VerifyCode(_ context.Context, _, code string) (bool, error) {
	return code == testCode, nil
}

func (f *fakeProvider) HasPassword(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (f *fakeProvider) SetPassword(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeProvider) ChangeIdentifier(_ context.Context, oldIdentifier, newIdentifier string) error {
	confirmed := f.accounts[oldIdentifier]
	delete(f.accounts, oldIdentifier)
	f.accounts[newIdentifier] = confirmed
	return nil
}

func testKeyStoreService(t *testing.T, db storage.ServiceStorage) *keystore.Service {
	cfg := config.KeyStoreServiceConfig{
		BaseServiceConfig:  &config.BaseServiceConfig{Name: "keystore"},
		ServiceKeyPassword: "test-password",
	}
	keyStoreService, err := keystore.NewKeyStoreService(cfg, db)
	require.NoError(t, err)
	return keyStoreService
}

func testDIDService(t *testing.T, db storage.ServiceStorage, keyStoreService *keystore.Service) *did.Service {
	cfg := config.DIDServiceConfig{
		BaseServiceConfig: &config.BaseServiceConfig{Name: "did"},
		Methods:           []string{"elem"},
	}
	didService, err := did.NewDIDService(cfg, db, keyStoreService, newFakeRegistry())
	require.NoError(t, err)
	return didService
}

func testAuthService(t *testing.T, db storage.ServiceStorage, didService *did.Service) *auth.Service {
	cfg := config.AuthServiceConfig{
		BaseServiceConfig: &config.BaseServiceConfig{Name: "auth"},
		CodeAttemptLimit:  3,
		SessionTTL:        10 * time.Minute,
	}
	authService, err := auth.NewAuthService(cfg, db, newFakeProvider(), didService, nil)
	require.NoError(t, err)
	return authService
}

func testServerEngine(t *testing.T, db storage.ServiceStorage) *gin.Engine {
	gin.SetMode(gin.TestMode)
	keyStoreService := testKeyStoreService(t, db)
	didService := testDIDService(t, db, keyStoreService)
	authService := testAuthService(t, db, didService)

	engine := gin.New()
	engine.GET(HealthPrefix, router.Health)
	engine.GET(ReadinessPrefix, router.Readiness([]svcframework.Service{keyStoreService, didService, authService}))

	v1 := engine.Group(V1Prefix)
	require.NoError(t, DecentralizedIdentityAPI(v1, didService))
	require.NoError(t, AuthAPI(v1, authService))
	return engine
}

func newRequestValue(t *testing.T, data any) io.Reader {
	dataBytes, err := json.Marshal(data)
	require.NoError(t, err)
	require.NotEmpty(t, dataBytes)
	return bytes.NewReader(dataBytes)
}

func put(engine *gin.Engine, target string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPut, target, body))
	return w
}

func get(engine *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealthAndReadinessAPI(t *testing.T) {
	engine := testServerEngine(t, testutil.TestDatabases[0].ServiceStorage(t))

	w := get(engine, "https://exchange-service.com/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var health router.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "OK", health.Status)

	w = get(engine, "https://exchange-service.com/readiness")
	assert.Equal(t, http.StatusOK, w.Code)

	var readiness router.ReadinessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.True(t, readiness.Status.IsReady())
	assert.Len(t, readiness.ServiceStatuses, 3)
}

func TestDIDAPI(t *testing.T) {
	engine := testServerEngine(t, testutil.TestDatabases[0].ServiceStorage(t))

	// missing required field: method
	w := put(engine, "https://exchange-service.com/v1/dids", newRequestValue(t, map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// good request
	w = put(engine, "https://exchange-service.com/v1/dids", newRequestValue(t, did.CreateDIDRequest{Method: didint.ElemMethod}))
	assert.Equal(t, http.StatusCreated, w.Code)

	var created did.CreateDIDResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.NotEmpty(t, created.DID)
	assert.Equal(t, created.DID, created.Document.ID)

	// fetch it back by id
	w = get(engine, "https://exchange-service.com/v1/dids/"+created.DID)
	assert.Equal(t, http.StatusOK, w.Code)

	var got did.GetDIDResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, created.DID, got.DID)

	// a locally stored did resolves without the registry
	w = get(engine, "https://exchange-service.com/v1/dids/resolver/"+created.DID)
	assert.Equal(t, http.StatusOK, w.Code)

	// unknown did is a 404
	w = get(engine, "https://exchange-service.com/v1/dids/did:elem:unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthAPI(t *testing.T) {
	engine := testServerEngine(t, testutil.TestDatabases[0].ServiceStorage(t))

	w := put(engine, "https://exchange-service.com/v1/auth/sign-up",
		newRequestValue(t, auth.InitiateSignUpRequest{Identifier: "member@example.com"}))
	assert.Equal(t, http.StatusCreated, w.Code)

	var initiated auth.InitiateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&initiated))
	assert.NotEmpty(t, initiated.SessionToken)

	// a wrong code surfaces the stable error code
	w = put(engine, "https://exchange-service.com/v1/auth/sign-up/confirmation",
		newRequestValue(t, auth.CompleteRequest{SessionToken: initiated.SessionToken, Code: "999999"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp framework.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.Equal(t, string(common.WrongConfirmationCode), errResp.Code)

	// the right code completes and mints a member did
	w = put(engine, "https://exchange-service.com/v1/auth/sign-up/confirmation",
		newRequestValue(t, auth.CompleteRequest{SessionToken: initiated.SessionToken, Code: testCode}))
	assert.Equal(t, http.StatusOK, w.Code)

	var completed auth.CompleteResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&completed))
	assert.True(t, completed.IsNew)
	assert.Equal(t, "member@example.com", completed.Identity.Identifier)
	assert.Contains(t, completed.Identity.DID, "did:elem:")
}
