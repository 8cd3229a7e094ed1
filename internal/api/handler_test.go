package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/auth"
	"github.com/shambasmart/marketplace/internal/chat"
	"github.com/shambasmart/marketplace/internal/escrow"
	"github.com/shambasmart/marketplace/internal/listing"
	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/model"
)

type testServer struct {
	app  *fiber.App
	auth *auth.Service
	st   *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemory()
	logger := zap.NewNop()

	authSvc := auth.NewService(st, []byte("test-secret"), time.Hour, logger)
	listingSvc := listing.NewService(st, nil, logger)
	chatSvc := chat.NewService(st, logger)
	coordinator := escrow.NewCoordinator(st, nil, logger)

	app := fiber.New()
	handler := NewHandler(logger, authSvc, listingSvc, nil)
	escrowHandler := NewEscrowHandler(logger, coordinator)
	chatHandler := NewChatHandler(logger, chatSvc)
	analysisHandler := NewAnalysisHandler(logger, nil)

	RegisterRoutes(app, nil, st, authSvc, handler, escrowHandler, chatHandler, analysisHandler)

	return &testServer{app: app, auth: authSvc, st: st}
}

func (ts *testServer) registerAndLogin(t *testing.T, email string, role model.Role) string {
	t.Helper()
	_, err := ts.auth.Register(context.Background(), auth.RegisterParams{
		Name:     strings.Split(email, "@")[0],
		Email:    email,
		Password: "strongpassword",
		Role:     role,
	})
	require.NoError(t, err)

	token, _, err := ts.auth.Login(context.Background(), email, "strongpassword")
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest))
}

func (ts *testServer) createListing(t *testing.T, farmerToken string, quantity, currentBid int64) string {
	t.Helper()
	body := `{
		"crop_name": "maize",
		"quantity": ` + int64Str(quantity) + `,
		"base_price": ` + int64Str(currentBid) + `,
		"current_bid": ` + int64Str(currentBid) + `,
		"location": {"name": "Nakuru", "lat": -0.3, "lng": 36.07}
	}`
	resp := ts.do(t, http.MethodPost, "/api/v1/listings", farmerToken, body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var l model.Listing
	decodeBody(t, resp, &l)
	return l.ID
}

func int64Str(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestRegisterEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", `{
		"name": "Wanjiku",
		"email": "wanjiku@example.com",
		"password": "strongpassword",
		"role": "FARMER",
		"location": "Nakuru"
	}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var u model.User
	decodeBody(t, resp, &u)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, model.RoleFarmer, u.Role)
}

func TestRegisterEndpoint_DuplicateEmailConflicts(t *testing.T) {
	ts := newTestServer(t)
	body := `{
		"name": "Wanjiku",
		"email": "wanjiku@example.com",
		"password": "strongpassword",
		"role": "FARMER"
	}`

	resp := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestLoginEndpoint_BadPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t, "wanjiku@example.com", model.RoleFarmer)

	resp := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", `{
		"email": "wanjiku@example.com",
		"password": "wrong"
	}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateListing_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/listings", "", `{"crop_name": "maize", "quantity": 10}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateListing_BuyerForbidden(t *testing.T) {
	ts := newTestServer(t)
	buyerToken := ts.registerAndLogin(t, "otieno@example.com", model.RoleBuyer)

	resp := ts.do(t, http.MethodPost, "/api/v1/listings", buyerToken, `{
		"crop_name": "maize",
		"quantity": 100,
		"location": {"name": "Nakuru"}
	}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestEscrowLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)
	farmerToken := ts.registerAndLogin(t, "wanjiku@example.com", model.RoleFarmer)
	buyerToken := ts.registerAndLogin(t, "otieno@example.com", model.RoleBuyer)

	listingID := ts.createListing(t, farmerToken, 20, 50)

	// start with explicit amount
	resp := ts.do(t, http.MethodPost, "/api/v1/escrow/"+listingID+"/start", buyerToken, `{
		"quantity": 20,
		"amount": 1000
	}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var started EscrowResponse
	decodeBody(t, resp, &started)
	assert.Equal(t, int64(1000), started.Amount)
	assert.Equal(t, int64(20), started.PlatformFee)
	assert.Equal(t, string(model.EscrowPending), started.Status)

	// listing is negotiating
	resp = ts.do(t, http.MethodGet, "/api/v1/listings/"+listingID, "", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var l model.Listing
	decodeBody(t, resp, &l)
	assert.Equal(t, model.ListingNegotiating, l.Status)

	// release before verify conflicts
	resp = ts.do(t, http.MethodPost, "/api/v1/escrow/"+listingID+"/release", buyerToken, "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// verify
	resp = ts.do(t, http.MethodPost, "/api/v1/escrow/"+listingID+"/verify", buyerToken, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// release settles payout
	resp = ts.do(t, http.MethodPost, "/api/v1/escrow/"+listingID+"/release", buyerToken, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var released EscrowResponse
	decodeBody(t, resp, &released)
	assert.Equal(t, int64(980), released.Payout)
	assert.Equal(t, string(model.EscrowReleased), released.Status)

	// second release conflicts
	resp = ts.do(t, http.MethodPost, "/api/v1/escrow/"+listingID+"/release", buyerToken, "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// listing is sold out
	resp = ts.do(t, http.MethodGet, "/api/v1/listings/"+listingID, "", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &l)
	assert.Equal(t, model.ListingSold, l.Status)
	assert.Equal(t, int64(0), l.Quantity)
}

func TestEscrowStart_FarmerRejected(t *testing.T) {
	ts := newTestServer(t)
	farmerToken := ts.registerAndLogin(t, "wanjiku@example.com", model.RoleFarmer)
	listingID := ts.createListing(t, farmerToken, 100, 10)

	resp := ts.do(t, http.MethodPost, "/api/v1/escrow/"+listingID+"/start", farmerToken, "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestEscrowStart_OverRequestRejected(t *testing.T) {
	ts := newTestServer(t)
	farmerToken := ts.registerAndLogin(t, "wanjiku@example.com", model.RoleFarmer)
	buyerToken := ts.registerAndLogin(t, "otieno@example.com", model.RoleBuyer)
	listingID := ts.createListing(t, farmerToken, 100, 10)

	resp := ts.do(t, http.MethodPost, "/api/v1/escrow/"+listingID+"/start", buyerToken, `{"quantity": 101}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEscrowVerify_NoEscrowNotFound(t *testing.T) {
	ts := newTestServer(t)
	farmerToken := ts.registerAndLogin(t, "wanjiku@example.com", model.RoleFarmer)
	buyerToken := ts.registerAndLogin(t, "otieno@example.com", model.RoleBuyer)
	listingID := ts.createListing(t, farmerToken, 100, 10)

	resp := ts.do(t, http.MethodPost, "/api/v1/escrow/"+listingID+"/verify", buyerToken, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestChatEndpoints(t *testing.T) {
	ts := newTestServer(t)
	farmerToken := ts.registerAndLogin(t, "wanjiku@example.com", model.RoleFarmer)
	buyerToken := ts.registerAndLogin(t, "otieno@example.com", model.RoleBuyer)
	listingID := ts.createListing(t, farmerToken, 100, 10)

	resp := ts.do(t, http.MethodPost, "/api/v1/listings/"+listingID+"/messages", buyerToken, `{
		"text": "is this still available?"
	}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/listings/"+listingID+"/messages", farmerToken, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Messages []model.Message `json:"messages"`
		Count    int             `json:"count"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "is this still available?", out.Messages[0].Text)
}

func TestHeatmapEndpoint(t *testing.T) {
	ts := newTestServer(t)
	farmerToken := ts.registerAndLogin(t, "wanjiku@example.com", model.RoleFarmer)
	ts.createListing(t, farmerToken, 3000, 10)

	resp := ts.do(t, http.MethodGet, "/api/v1/heatmap", "", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Points []model.HeatPoint `json:"points"`
	}
	decodeBody(t, resp, &out)
	require.Len(t, out.Points, 1)
	assert.Equal(t, 1.0, out.Points[0].Weight)
}

func TestAnalyzeEndpoint_DisabledReturnsNotFound(t *testing.T) {
	ts := newTestServer(t)
	buyerToken := ts.registerAndLogin(t, "otieno@example.com", model.RoleBuyer)

	resp := ts.do(t, http.MethodPost, "/api/v1/listings/analyze", buyerToken, `{"description": "50 bags of maize"}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestMeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t, "wanjiku@example.com", model.RoleFarmer)

	resp := ts.do(t, http.MethodGet, "/api/v1/auth/me", token, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var u model.User
	decodeBody(t, resp, &u)
	assert.Equal(t, "wanjiku@example.com", u.Email)
	assert.Equal(t, model.RoleFarmer, u.Role)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
