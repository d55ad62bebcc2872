package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo"
	"github.com/qqdog1/ws/internal/application/services"
	"github.com/qqdog1/ws/internal/config"
	"github.com/qqdog1/ws/internal/crypto"
	"github.com/qqdog1/ws/internal/domain/entities"
	"github.com/qqdog1/ws/internal/infrastructure/database/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	registry, err := services.NewContractRegistry(nil)
	require.NoError(t, err)
	wallet := services.NewWalletService(services.WalletConfig{Chain: "ETH"}, services.WalletServiceDeps{
		Addresses:    memory.NewUserAddressRepository(),
		Transactions: memory.NewUserTransactionRepository(),
		Blocks:       memory.NewBlockRepository(),
		Registry:     registry,
		Keys:         crypto.NewKeyFactory("ETH", nil),
	})
	return NewServer(&config.Config{}, wallet)
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(s, http.MethodPost, "/api/v1/addresses")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pkey")
	var created entities.UserAddress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 1, created.ID)
	assert.Regexp(t, `^0x[0-9a-f]{40}$`, created.Address)

	rec = serve(s, http.MethodGet, "/api/v1/addresses/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.Address)

	rec = serve(s, http.MethodGet, "/api/v1/users/1/deposits")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/api/v1/users/9/withdrawals")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, http.MethodGet, "/api/v1/blocks/eth")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, http.MethodGet, "/api/v1/currencies")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chain":"ETH","currencies":[]}`, rec.Body.String())
}
