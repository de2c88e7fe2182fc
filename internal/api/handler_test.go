package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/api"
	"github.com/ayo6706/concert-ticketing/internal/api/middleware"
	"github.com/ayo6706/concert-ticketing/internal/cache"
	"github.com/ayo6706/concert-ticketing/internal/config"
	"github.com/ayo6706/concert-ticketing/internal/gateway"
	"github.com/ayo6706/concert-ticketing/internal/models"
	"github.com/ayo6706/concert-ticketing/internal/repository"
	"github.com/ayo6706/concert-ticketing/internal/repository/memory"
	"github.com/ayo6706/concert-ticketing/internal/ticketnumber"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "concert-ticketing-test"
	testJWTAudience = "concerts-api-test"
	testAdminID     = "admin-1"
)

func TestMain(m *testing.M) {
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	os.Exit(m.Run())
}

type testAPI struct {
	router chi.Router
	store  *memory.Store
	repo   *repository.ConcertRepository
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	repo := repository.NewConcertRepository(store, cache.NewMemoryStore(), ticketnumber.NewUUIDGenerator())
	t.Cleanup(func() { _ = repo.Close() })

	cfg := &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		AdminUserIDs:       []string{testAdminID},
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
		UpcomingCacheTTL:   time.Hour,
	}
	gw := gateway.NewMockGateway().WithoutLatency().WithFailureRate(0)
	router := api.NewRouter(cfg, zap.NewNop(), nil, nil, repo, gw)
	return &testAPI{router: router.Routes(), store: store, repo: repo}
}

func generateTestToken(userID string) string {
	return generateTokenWithRole(userID, "user")
}

func generateTokenWithRole(userID, role string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"iss":     testJWTIssuer,
		"aud":     testJWTAudience,
		"sub":     userID,
		"iat":     now.Unix(),
		"nbf":     now.Add(-30 * time.Second).Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
	tokenString, _ := token.SignedString(middleware.JWTSecret())
	return tokenString
}

func (a *testAPI) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func concertPayload(title string, start time.Time) map[string]any {
	return map[string]any{
		"title":      title,
		"artist":     "The Band",
		"genre":      "Rock",
		"location":   "Arena",
		"price":      "59.50",
		"start_time": start.Format(time.RFC3339),
		"is_visible": true,
	}
}

func (a *testAPI) createConcert(t *testing.T, title string, start time.Time) models.Concert {
	t.Helper()
	w := a.do(t, http.MethodPost, "/v1/concerts", generateTokenWithRole(testAdminID, "admin"), concertPayload(title, start))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c models.Concert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	return c
}

// sell issues n tickets for the concert to userID using unsold ticket numbers.
func (a *testAPI) sell(t *testing.T, concertID int64, userID string, n int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.store.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.UpsertUser(ctx, models.User{ID: userID, DisplayName: userID}); err != nil {
			return err
		}
		unsold, err := q.ListUnsoldTicketNumbers(ctx, concertID)
		if err != nil {
			return err
		}
		for _, num := range unsold[:n] {
			ticketID, err := q.CreateTicket(ctx, repository.CreateTicketParams{ConcertID: concertID, UserID: userID})
			if err != nil {
				return err
			}
			if _, err := q.AssignTicketNumber(ctx, repository.AssignTicketNumberParams{ID: num.ID, TicketID: ticketID}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestRFC7807ProblemDetails(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodGet, "/v1/tickets", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["type"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/tickets", body["instance"])
	assert.NotEmpty(t, body["request_id"])
}

func TestAuthLogin(t *testing.T) {
	a := setupAPI(t)

	cases := []struct {
		name     string
		userID   string
		wantRole string
	}{
		{name: "user", userID: "ext|42", wantRole: "user"},
		{name: "admin", userID: testAdminID, wantRole: "admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"user_id": tc.userID})
			require.Equal(t, http.StatusOK, w.Code)

			var resp struct {
				Token string `json:"token"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			parsed, err := jwt.Parse(resp.Token, func(token *jwt.Token) (interface{}, error) {
				return middleware.JWTSecret(), nil
			}, jwt.WithIssuer(testJWTIssuer), jwt.WithAudience(testJWTAudience))
			require.NoError(t, err)
			claims, ok := parsed.Claims.(jwt.MapClaims)
			require.True(t, ok)
			assert.Equal(t, tc.wantRole, claims["role"])
			assert.Equal(t, tc.userID, claims["user_id"])

			// the issued token is accepted by the protected routes
			w = a.do(t, http.MethodGet, "/v1/tickets/count", resp.Token, nil)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}

	w := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"user_id": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConcertAdminRoutesRequireAdmin(t *testing.T) {
	a := setupAPI(t)
	start := time.Now().Add(24 * time.Hour)

	w := a.do(t, http.MethodPost, "/v1/concerts", "", concertPayload("x", start))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodPost, "/v1/concerts", generateTestToken("u-1"), concertPayload("x", start))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPut, "/v1/concerts/1/ticket-numbers", generateTestToken("u-1"), map[string]int{"number_of_tickets": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestConcertCRUD(t *testing.T) {
	a := setupAPI(t)
	admin := generateTokenWithRole(testAdminID, "admin")
	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	created := a.createConcert(t, "Opening", start)
	assert.NotZero(t, created.ID)
	assert.Equal(t, testAdminID, created.CreatedBy)
	path := "/v1/concerts/" + strconv.FormatInt(created.ID, 10)

	w := a.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Concert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Opening", got.Title)
	assert.Equal(t, "59.5", got.Price.String())
	assert.True(t, start.Equal(got.StartTime))

	update := concertPayload("Renamed", start)
	w = a.do(t, http.MethodPut, path, admin, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodGet, path, "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Renamed", got.Title)

	w = a.do(t, http.MethodPut, "/v1/concerts/9999", admin, update)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code, "delete is idempotent")

	w = a.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/v1/concerts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateConcertValidation(t *testing.T) {
	a := setupAPI(t)
	admin := generateTokenWithRole(testAdminID, "admin")

	w := a.do(t, http.MethodPost, "/v1/concerts", admin, map[string]any{"title": "", "price": "-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Errors, "title is required")
	assert.Contains(t, body.Errors, "price must not be negative")
}

func TestListConcertsByIDs(t *testing.T) {
	a := setupAPI(t)
	c1 := a.createConcert(t, "One", time.Now().Add(time.Hour))
	c2 := a.createConcert(t, "Two", time.Now().Add(2*time.Hour))

	w := a.do(t, http.MethodGet, "/v1/concerts?ids="+strconv.FormatInt(c1.ID, 10)+",404,"+strconv.FormatInt(c2.ID, 10), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Concert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	w = a.do(t, http.MethodGet, "/v1/concerts?ids=1,x", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.do(t, http.MethodGet, "/v1/concerts", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpcomingConcerts(t *testing.T) {
	a := setupAPI(t)
	later := a.createConcert(t, "Later", time.Now().Add(72*time.Hour))
	sooner := a.createConcert(t, "Sooner", time.Now().Add(24*time.Hour))
	a.createConcert(t, "Past", time.Now().Add(-24*time.Hour))

	w := a.do(t, http.MethodGet, "/v1/concerts/upcoming?count=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Concert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, sooner.ID, got[0].ID)
	assert.Equal(t, later.ID, got[1].ID)

	w = a.do(t, http.MethodGet, "/v1/concerts/upcoming?count=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTicketNumbersEndpoint(t *testing.T) {
	a := setupAPI(t)
	admin := generateTokenWithRole(testAdminID, "admin")
	c := a.createConcert(t, "Gig", time.Now().Add(time.Hour))
	path := "/v1/concerts/" + strconv.FormatInt(c.ID, 10) + "/ticket-numbers"

	w := a.do(t, http.MethodPut, path, admin, map[string]int{"number_of_tickets": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	a.sell(t, c.ID, "buyer", 3)

	w = a.do(t, http.MethodPut, path, admin, map[string]int{"number_of_tickets": 1})
	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["type"], "ticket-numbers/insufficient-unsold")

	w = a.do(t, http.MethodPut, path, admin, map[string]int{"number_of_tickets": 3})
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodPut, path, admin, map[string]int{"number_of_tickets": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.do(t, http.MethodPut, path, admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPut, "/v1/concerts/9999/ticket-numbers", admin, map[string]int{"number_of_tickets": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserProfile(t *testing.T) {
	a := setupAPI(t)
	token := generateTestToken("ext-7")

	w := a.do(t, http.MethodPut, "/v1/users/me", token, map[string]string{"display_name": "Grace"})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/v1/users/ext-7", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var u models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "Grace", u.DisplayName)

	w = a.do(t, http.MethodGet, "/v1/users/ext-7", generateTestToken("someone-else"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodGet, "/v1/users/ghost", generateTokenWithRole(testAdminID, "admin"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPut, "/v1/users/me", token, map[string]string{"display_name": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTicketsPagingAndOwnership(t *testing.T) {
	a := setupAPI(t)
	admin := generateTokenWithRole(testAdminID, "admin")
	c := a.createConcert(t, "Gig", time.Now().Add(time.Hour))
	w := a.do(t, http.MethodPut, "/v1/concerts/"+strconv.FormatInt(c.ID, 10)+"/ticket-numbers", admin, map[string]int{"number_of_tickets": 10})
	require.Equal(t, http.StatusOK, w.Code)
	a.sell(t, c.ID, "alice", 5)
	a.sell(t, c.ID, "bob", 1)

	alice := generateTestToken("alice")

	w = a.do(t, http.MethodGet, "/v1/tickets/count", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":5}`, w.Body.String())

	w = a.do(t, http.MethodGet, "/v1/tickets?skip=1&take=2", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.PagedResult[models.Ticket]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 5, page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Greater(t, page.Items[0].ID, page.Items[1].ID)
	require.NotNil(t, page.Items[0].Concert)
	assert.Equal(t, c.ID, page.Items[0].Concert.ID)

	ticketPath := "/v1/tickets/" + strconv.FormatInt(page.Items[0].ID, 10)
	w = a.do(t, http.MethodGet, ticketPath, alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, ticketPath, generateTestToken("bob"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(t, http.MethodGet, ticketPath, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/v1/tickets?skip=2147483648&take=5", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var far models.PagedResult[models.Ticket]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &far))
	assert.Empty(t, far.Items)
	assert.Equal(t, 5, far.TotalCount)

	w = a.do(t, http.MethodGet, "/v1/tickets?skip=-1", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentGatewayRoutes(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodGet, "/v1/payments/currencies", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"currencies":["USD"]}`, w.Body.String())

	w = a.do(t, http.MethodPost, "/v1/payments/preauthorize", "", map[string]string{"amount": "10.00", "currency": "eur"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/v1/payments/preauthorize", "", map[string]string{"amount": "0", "currency": "USD"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/v1/payments/preauthorize", "", map[string]string{"amount": "59.50", "currency": "usd"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var auth struct {
		Reference string `json:"reference"`
		Amount    struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auth))
	assert.Equal(t, "59.50", auth.Amount.Amount)
	assert.Equal(t, "USD", auth.Amount.Currency)

	w = a.do(t, http.MethodPost, "/v1/payments/capture", "", map[string]string{"reference": auth.Reference})
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/v1/payments/capture", "", map[string]string{"reference": auth.Reference})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = a.do(t, http.MethodPost, "/v1/payments/capture", "", map[string]string{"reference": "MOCK-unknown"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := setupAPI(t)

	cases := []struct {
		name string
		path string
	}{
		{name: "live", path: "/health/live"},
		{name: "ready", path: "/health/ready"},
		{name: "metrics", path: "/metrics"},
		{name: "openapi", path: "/openapi.yaml"},
		{name: "swagger", path: "/swagger/index.html"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			w := httptest.NewRecorder()
			a.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestClosedRepositoryIsUnavailable(t *testing.T) {
	a := setupAPI(t)
	require.NoError(t, a.repo.Close())

	w := a.do(t, http.MethodGet, "/v1/concerts/upcoming", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
